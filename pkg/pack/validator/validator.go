package validator

import (
	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
)

// Validator runs the structural and semantic passes.
type Validator struct {
	structural *StructuralValidator
	semantic   *SemanticValidator
}

// NewValidator creates a validator bound to lat. A nil lattice means
// lattice.Default().
func NewValidator(lat *lattice.Lattice) *Validator {
	if lat == nil {
		lat = lattice.Default()
	}
	return &Validator{
		structural: NewStructuralValidator(),
		semantic:   NewSemanticValidator(lat),
	}
}

// Validate returns nil or a *pack.ErrorList describing every problem.
func (v *Validator) Validate(p *pack.Pack) error {
	if err := v.structural.Validate(p); err != nil {
		return err
	}
	return v.semantic.Validate(p)
}
