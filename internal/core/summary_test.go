package core

import (
	"reflect"
	"testing"
)

func tx(id string, cents int64, cat Category, kind Kind) Transaction {
	return Transaction{ID: id, Description: id, Amount: Money{Cents: cents}, Category: cat, Type: kind}
}

func TestSummarizeEmpty(t *testing.T) {
	if got := Summarize(nil); got != (Summary{}) {
		t.Fatalf("nil list: %+v", got)
	}
	if got := Summarize([]Transaction{}); got != (Summary{}) {
		t.Fatalf("empty list: %+v", got)
	}
}

func TestSummarizeBalance(t *testing.T) {
	lists := [][]Transaction{
		{tx("a", 100000, Salary, Income)},
		{tx("a", 100000, Salary, Income), tx("b", 40000, Housing, Expense)},
		{tx("b", 40000, Housing, Expense)},
		{tx("a", 1, Other, Income), tx("b", 2, Other, Income), tx("c", 99, Food, Expense)},
	}
	for i, l := range lists {
		s := Summarize(l)
		if s.Balance.Cents != s.Income.Cents-s.Expenses.Cents {
			t.Fatalf("case %d: balance %d != %d - %d", i, s.Balance.Cents, s.Income.Cents, s.Expenses.Cents)
		}
	}

	s := Summarize(lists[1])
	want := Summary{Income: Money{Cents: 100000}, Expenses: Money{Cents: 40000}, Balance: Money{Cents: 60000}}
	if s != want {
		t.Fatalf("got %+v, want %+v", s, want)
	}
}

func TestSummarizeDoesNotMutate(t *testing.T) {
	in := []Transaction{tx("a", 500, Food, Expense), tx("b", 700, Salary, Income)}
	cp := append([]Transaction(nil), in...)
	Summarize(in)
	if !reflect.DeepEqual(in, cp) {
		t.Fatalf("input mutated")
	}
}

func TestByCategory(t *testing.T) {
	in := []Transaction{
		tx("a", 500, Food, Expense),
		tx("b", 300, Transport, Expense),
		tx("c", 400, Food, Expense),
		tx("d", 900, Housing, Expense),
		tx("e", 100000, Salary, Income),
	}
	got := ByCategory(in, Expense)
	want := []CategoryAmount{
		{Category: Food, Amount: Money{Cents: 900}},
		{Category: Housing, Amount: Money{Cents: 900}},
		{Category: Transport, Amount: Money{Cents: 300}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if len(ByCategory(nil, Income)) != 0 {
		t.Fatalf("expected empty result for empty input")
	}
}
