package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrEmptyName       = errors.New("name cannot be empty")
	ErrInvalidPrice    = errors.New("price must be a non-negative number")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidHostStep = fmt.Errorf("host step must be between %d and %d", MinHostStep, MaxHostStep)
)

// ItemPatch is a partial item update. Nil fields are left untouched.
type ItemPatch struct {
	Name     *string
	Price    *float64
	Quantity *int
	Mode     *ItemMode
}

// ModeOnly reports whether the patch changes nothing but the mode.
// Mode changes are allowed without owner credentials.
func (p ItemPatch) ModeOnly() bool {
	return p.Mode != nil && p.Name == nil && p.Price == nil && p.Quantity == nil
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p.Mode == nil && p.Name == nil && p.Price == nil && p.Quantity == nil
}

// Apply writes the patch onto it.
func (p ItemPatch) Apply(it *Item) {
	if p.Name != nil {
		it.Name = strings.TrimSpace(*p.Name)
	}
	if p.Price != nil {
		it.Price = *p.Price
	}
	if p.Quantity != nil {
		it.Quantity = *p.Quantity
	}
	if p.Mode != nil {
		it.Mode = *p.Mode
	}
}

// Validate checks the fields the patch sets.
func (p ItemPatch) Validate() error {
	if p.Name != nil {
		if err := ValidateName(*p.Name); err != nil {
			return err
		}
	}
	if p.Price != nil && !validAmount(*p.Price) {
		return ErrInvalidPrice
	}
	if p.Quantity != nil && *p.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if p.Mode != nil && !p.Mode.Valid() {
		return fmt.Errorf("unknown item mode %q", *p.Mode)
	}
	return nil
}

// Valid reports whether m is a known mode.
func (m ItemMode) Valid() bool {
	return m == ModeIndividual || m == ModeGrouped
}

// ValidateName rejects blank names.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	return nil
}

// ValidateItem checks a full item.
func ValidateItem(it Item) error {
	if err := ValidateName(it.Name); err != nil {
		return err
	}
	if !validAmount(it.Price) {
		return ErrInvalidPrice
	}
	if it.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if it.Mode != "" && !it.Mode.Valid() {
		return fmt.Errorf("unknown item mode %q", it.Mode)
	}
	return nil
}

// ValidateCharge checks a charge definition.
func ValidateCharge(c Charge) error {
	if err := ValidateName(c.Name); err != nil {
		return fmt.Errorf("charge: %w", err)
	}
	if !validAmount(c.Value) {
		return fmt.Errorf("charge %q: value must be a non-negative number", c.Name)
	}
	switch c.ValueType {
	case ValuePercent, ValueFixed:
	default:
		return fmt.Errorf("charge %q: unknown value type %q", c.Name, c.ValueType)
	}
	switch c.Distribution {
	case DistributeProportional, DistributePerPerson, DistributeFixedPerPerson:
	default:
		return fmt.Errorf("charge %q: unknown distribution %q", c.Name, c.Distribution)
	}
	return nil
}

// ValidateHostStep checks the host step range.
func ValidateHostStep(step int) error {
	if step < MinHostStep || step > MaxHostStep {
		return ErrInvalidHostStep
	}
	return nil
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
