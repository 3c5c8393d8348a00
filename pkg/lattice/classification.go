package lattice

import (
	"fmt"
	"regexp"
	"strings"
)

// Classification is a sensitivity tag for a unit of data (PII, PHI, PCI...).
// Values are upper-case identifiers; their order comes from a Lattice.
type Classification string

// Built-in classifications.
const (
	None   Classification = "NONE"
	Public Classification = "PUBLIC"
	PII    Classification = "PII"
	PHI    Classification = "PHI"
	PCI    Classification = "PCI"
)

var classificationPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// ParseClassification normalizes s and checks that it is a well-formed
// classification key. It does not check lattice membership.
func ParseClassification(s string) (Classification, error) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if !classificationPattern.MatchString(key) {
		return "", fmt.Errorf("invalid classification key %q", s)
	}
	return Classification(key), nil
}

// String returns the classification key.
func (c Classification) String() string {
	return string(c)
}
