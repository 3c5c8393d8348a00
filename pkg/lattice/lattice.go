package lattice

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Lattice is a total order over classifications, least sensitive first.
type Lattice struct {
	levels []Classification
	rank   map[Classification]int
}

// DefaultLevels is the built-in classification order.
var DefaultLevels = []Classification{None, Public, PII, PHI, PCI}

// New builds a lattice from levels in ascending sensitivity. NONE is
// prepended when missing so that empty sets always have a bottom element.
func New(levels ...Classification) (*Lattice, error) {
	if len(levels) == 0 {
		levels = DefaultLevels
	}

	ordered := make([]Classification, 0, len(levels)+1)
	if levels[0] != None {
		ordered = append(ordered, None)
	}
	ordered = append(ordered, levels...)

	rank := make(map[Classification]int, len(ordered))
	for i, c := range ordered {
		parsed, err := ParseClassification(string(c))
		if err != nil {
			return nil, err
		}
		if parsed != c {
			return nil, fmt.Errorf("classification %q must be upper case", c)
		}
		if _, dup := rank[c]; dup {
			return nil, fmt.Errorf("classification %q declared twice", c)
		}
		rank[c] = i
	}

	return &Lattice{levels: ordered, rank: rank}, nil
}

// MustNew is like New but panics on error. Intended for package-level
// fixtures and tests.
func MustNew(levels ...Classification) *Lattice {
	l, err := New(levels...)
	if err != nil {
		panic(err)
	}
	return l
}

// Known reports whether c belongs to the lattice.
func (l *Lattice) Known(c Classification) bool {
	_, ok := l.rank[c]
	return ok
}

// Levels returns a copy of the classifications in ascending order.
func (l *Lattice) Levels() []Classification {
	out := make([]Classification, len(l.levels))
	copy(out, l.levels)
	return out
}

// Rank returns the position of c, or an error if c is unknown.
func (l *Lattice) Rank(c Classification) (int, error) {
	r, ok := l.rank[c]
	if !ok {
		return 0, &ClassificationError{Classification: c}
	}
	return r, nil
}

// Compare returns -1, 0 or 1 when a is less, equally or more sensitive
// than b.
func (l *Lattice) Compare(a, b Classification) (int, error) {
	ra, err := l.Rank(a)
	if err != nil {
		return 0, err
	}
	rb, err := l.Rank(b)
	if err != nil {
		return 0, err
	}
	switch {
	case ra < rb:
		return -1, nil
	case ra > rb:
		return 1, nil
	default:
		return 0, nil
	}
}

// MaxOf returns the most sensitive classification in set. An empty set
// yields NONE.
func (l *Lattice) MaxOf(set []Classification) (Classification, error) {
	top := None
	topRank := l.rank[None]
	for _, c := range set {
		r, err := l.Rank(c)
		if err != nil {
			return "", err
		}
		if r > topRank {
			top, topRank = c, r
		}
	}
	return top, nil
}

// Validate returns the first unknown classification in set as an error.
func (l *Lattice) Validate(set []Classification) error {
	for _, c := range set {
		if !l.Known(c) {
			return &ClassificationError{Classification: c}
		}
	}
	return nil
}

var (
	processLattice atomic.Pointer[Lattice]
	initOnce       sync.Once
	builtin        = MustNew(DefaultLevels...)
)

// Init declares the process-wide lattice. It may succeed only once; later
// calls return ErrAlreadyInitialized.
func Init(levels ...Classification) error {
	l, err := New(levels...)
	if err != nil {
		return err
	}

	applied := false
	initOnce.Do(func() {
		processLattice.Store(l)
		applied = true
	})
	if !applied {
		return ErrAlreadyInitialized
	}
	return nil
}

// Default returns the process-wide lattice, or the built-in order when
// Init was never called.
func Default() *Lattice {
	if l := processLattice.Load(); l != nil {
		return l
	}
	return builtin
}
