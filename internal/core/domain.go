package core

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDescriptionLength is the longest description accepted, in characters.
const MaxDescriptionLength = 100

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

const (
	Food        Category = "Food"
	Transport   Category = "Transport"
	Housing     Category = "Housing"
	Health      Category = "Health"
	Education   Category = "Education"
	Leisure     Category = "Leisure"
	Salary      Category = "Salary"
	Investments Category = "Investments"
	Other       Category = "Other"
)

type (
	// Kind says whether a transaction adds to or subtracts from the balance.
	Kind string

	Category string

	// Transaction is a single income or expense record. Amount is always
	// positive; the sign comes from Type.
	Transaction struct {
		ID          string    `json:"id"`
		Description string    `json:"description"`
		Amount      Money     `json:"amount"`
		Category    Category  `json:"category"`
		Type        Kind      `json:"type"`
		Date        time.Time `json:"date"`
	}

	// Fields is the user-editable part of a transaction.
	Fields struct {
		Description string
		Amount      Money
		Category    Category
		Type        Kind
	}
)

// Categories lists the accepted categories in display order.
var Categories = []Category{
	Food, Transport, Housing, Health, Education, Leisure, Salary, Investments, Other,
}

func (k Kind) Valid() bool {
	return k == Income || k == Expense
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory matches s against the known categories ignoring case.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, known := range Categories {
		if strings.EqualFold(s, string(known)) {
			return known, true
		}
	}
	return "", false
}

func (f Fields) Validate() error {
	desc := strings.TrimSpace(f.Description)
	if desc == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyDescription)
	}
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return fmt.Errorf("%w: %w", ErrValidation, ErrDescriptionTooLong)
	}
	if err := f.Amount.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if !f.Category.Valid() {
		return fmt.Errorf("%w: %w %q", ErrValidation, ErrInvalidCategory, f.Category)
	}
	if !f.Type.Valid() {
		return fmt.Errorf("%w: %w %q", ErrValidation, ErrInvalidKind, f.Type)
	}
	return nil
}

// Fields returns the editable part of t.
func (t Transaction) Fields() Fields {
	return Fields{
		Description: t.Description,
		Amount:      t.Amount,
		Category:    t.Category,
		Type:        t.Type,
	}
}

// Apply returns t with the editable fields replaced. ID and Date are kept.
func (t Transaction) Apply(f Fields) Transaction {
	t.Description = strings.TrimSpace(f.Description)
	t.Amount = f.Amount
	t.Category = f.Category
	t.Type = f.Type
	return t
}

// Signed returns the amount with the sign implied by Type, for display.
func (t Transaction) Signed() Money {
	if t.Type == Expense {
		return Money{Cents: -t.Amount.Cents}
	}
	return t.Amount
}
