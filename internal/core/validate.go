package core

import (
	"strings"
	"unicode/utf8"
)

// RawFields is the unparsed form input for a transaction.
type RawFields struct {
	Description string
	Amount      string
	Category    string
	Type        string
}

// Validate normalizes raw form input. It returns either the typed fields or
// a FieldErrors value listing every rejected field.
func Validate(raw RawFields) (Fields, error) {
	errs := FieldErrors{}
	var f Fields

	f.Description = strings.TrimSpace(raw.Description)
	switch {
	case f.Description == "":
		errs["description"] = "description is required"
	case utf8.RuneCountInString(f.Description) > MaxDescriptionLength:
		errs["description"] = "description is too long"
	}

	if strings.TrimSpace(raw.Amount) == "" {
		errs["amount"] = "amount is required"
	} else if m, err := ParseAmount(raw.Amount); err != nil {
		errs["amount"] = "amount must be greater than zero"
	} else {
		f.Amount = m
	}

	if strings.TrimSpace(raw.Category) == "" {
		errs["category"] = "category is required"
	} else if c, ok := ParseCategory(raw.Category); !ok {
		errs["category"] = "unknown category"
	} else {
		f.Category = c
	}

	switch k := Kind(strings.ToLower(strings.TrimSpace(raw.Type))); {
	case k == "":
		errs["type"] = "type is required"
	case !k.Valid():
		errs["type"] = "type must be income or expense"
	default:
		f.Type = k
	}

	if len(errs) > 0 {
		return Fields{}, errs
	}
	return f, nil
}
