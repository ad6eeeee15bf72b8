package core

import "sort"

// Summary holds totals derived from a transaction list. It is never stored.
type Summary struct {
	Income   Money
	Expenses Money
	Balance  Money
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Category Category
	Amount   Money
}

// Summarize totals income and expenses. It does not modify its input.
func Summarize(transactions []Transaction) Summary {
	var s Summary
	for _, t := range transactions {
		switch t.Type {
		case Income:
			s.Income = s.Income.Add(t.Amount)
		case Expense:
			s.Expenses = s.Expenses.Add(t.Amount)
		}
	}
	s.Balance = s.Income.Sub(s.Expenses)
	return s
}

// ByCategory totals transactions of the given kind per category, largest
// first. Ties are ordered by category name.
func ByCategory(transactions []Transaction, kind Kind) []CategoryAmount {
	totals := map[Category]Money{}
	for _, t := range transactions {
		if t.Type != kind {
			continue
		}
		totals[t.Category] = totals[t.Category].Add(t.Amount)
	}

	out := make([]CategoryAmount, 0, len(totals))
	for c, m := range totals {
		out = append(out, CategoryAmount{Category: c, Amount: m})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}
