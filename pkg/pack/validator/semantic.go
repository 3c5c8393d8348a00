package validator

import (
	"fmt"

	"skuldbot/compliance/pkg/lattice"
	"skuldbot/compliance/pkg/pack"
)

// SemanticValidator checks a pack against the classification lattice.
type SemanticValidator struct {
	lattice *lattice.Lattice
}

// NewSemanticValidator creates a semantic validator for lat.
func NewSemanticValidator(lat *lattice.Lattice) *SemanticValidator {
	return &SemanticValidator{lattice: lat}
}

// Validate reports every classification in p that lat does not know.
func (v *SemanticValidator) Validate(p *pack.Pack) error {
	var errs pack.ErrorList
	unknown := func(ruleID, field string, c lattice.Classification) {
		errs.Add(&pack.RuleError{
			PackID:  p.ID,
			RuleID:  ruleID,
			Field:   field,
			Message: fmt.Sprintf("classification %s is not part of the lattice", c),
			Cause:   &lattice.ClassificationError{Classification: c},
		})
	}

	for class := range p.DataClassifications {
		if !v.lattice.Known(class) {
			unknown("", "dataClassifications", class)
		}
	}

	for _, r := range p.Rules {
		pack.Walk(r.When, func(pred pack.Predicate) bool {
			switch m := pred.(type) {
			case pack.DataContainsMatch:
				for _, c := range m.Classifications {
					if !v.lattice.Known(c) {
						unknown(r.ID, "when.dataContains", c)
					}
				}
			case pack.ClassificationAtLeastMatch:
				if !v.lattice.Known(m.Level) {
					unknown(r.ID, "when.classificationAtLeast", m.Level)
				}
			}
			return true
		})
	}

	return errs.Err()
}
