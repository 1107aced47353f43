// Package taxonomy maps classifier output indices to ELAsTiCC class ids.
package taxonomy

import (
	"fmt"
	"sort"

	"github.com/mwvgroup/pittgoogle-user/internal/events"
)

// Class is one classifier output mapped to a taxonomy id.
type Class struct {
	Index   int
	ClassID int32
	Label   string
}

// Mapping is a versioned index→class table for one classifier family.
type Mapping struct {
	Name    string
	Version string
	Classes []Class
}

var builtin = map[string]Mapping{
	"supernnova/v1": {
		Name:    "supernnova",
		Version: "v1",
		Classes: []Class{
			{Index: 0, ClassID: 2222, Label: "SN Ia"},
			{Index: 1, ClassID: 2220, Label: "SN (non-Ia)"},
		},
	},
	"microlia/v1": {
		Name:    "microlia",
		Version: "v1",
		Classes: []Class{
			{Index: 0, ClassID: 2321, Label: "CV/Nova"},
			{Index: 1, ClassID: 2326, Label: "constant"},
			{Index: 2, ClassID: 2235, Label: "microlensing"},
			{Index: 3, ClassID: 2323, Label: "variable"},
		},
	},
}

// ID returns "name/version".
func (m Mapping) ID() string {
	return m.Name + "/" + m.Version
}

// Len returns the number of classes.
func (m Mapping) Len() int {
	return len(m.Classes)
}

// Lookup returns a copy of a built-in mapping by id, e.g. "microlia/v1".
func Lookup(id string) (Mapping, error) {
	m, ok := builtin[id]
	if !ok {
		return Mapping{}, fmt.Errorf("unknown taxonomy %q (known: %v)", id, Known())
	}
	m.Classes = append([]Class(nil), m.Classes...)
	return m, nil
}

// Known lists the built-in mapping ids.
func Known() []string {
	ids := make([]string, 0, len(builtin))
	for id := range builtin {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks that the mapping covers indices 0..n-1 exactly once.
func (m Mapping) Validate(n int) error {
	if len(m.Classes) != n {
		return fmt.Errorf("taxonomy %s has %d classes, classifier emits %d", m.ID(), len(m.Classes), n)
	}
	seen := make([]bool, n)
	for _, c := range m.Classes {
		if c.Index < 0 || c.Index >= n {
			return fmt.Errorf("taxonomy %s: index %d out of range", m.ID(), c.Index)
		}
		if seen[c.Index] {
			return fmt.Errorf("taxonomy %s: duplicate index %d", m.ID(), c.Index)
		}
		seen[c.Index] = true
	}
	return nil
}

// Map pairs each probability with its class id, in index order.
func (m Mapping) Map(probs []float64) ([]events.Classification, error) {
	if err := m.Validate(len(probs)); err != nil {
		return nil, err
	}
	out := make([]events.Classification, len(probs))
	for _, c := range m.Classes {
		out[c.Index] = events.Classification{ClassID: c.ClassID, Probability: float32(probs[c.Index])}
	}
	return out, nil
}

// ClassID returns the taxonomy id for an output index.
func (m Mapping) ClassID(index int) (int32, bool) {
	for _, c := range m.Classes {
		if c.Index == index {
			return c.ClassID, true
		}
	}
	return 0, false
}
