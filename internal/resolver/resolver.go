// Package resolver matches entity names referenced by the model against the
// entities stored in a session.
package resolver

import (
	"strings"

	"github.com/muhammadolammi/careercards/internal/entity"
	"golang.org/x/text/cases"
)

type MatchKind string

const (
	MatchExact MatchKind = "Exact"
	MatchFuzzy MatchKind = "Fuzzy"
	MatchNone  MatchKind = "None"
)

// MatchResult is the resolution of one referenced name. EntityID is empty when
// Kind is MatchNone.
type MatchResult struct {
	ReferencedName string    `json:"referencedName"`
	EntityID       string    `json:"matchedEntityId,omitempty"`
	Kind           MatchKind `json:"matchKind"`
}

func (m MatchResult) Matched() bool { return m.Kind != MatchNone }

type Report struct {
	Matches []MatchResult `json:"matches"`
	Matched int           `json:"matched"`
	Total   int           `json:"total"`
}

// MatchRate is Matched/Total, or 0 for an empty report.
func (r Report) MatchRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Matched) / float64(r.Total)
}

// KindCounts tallies matches by kind.
func (r Report) KindCounts() map[string]int {
	counts := map[string]int{string(MatchExact): 0, string(MatchFuzzy): 0, string(MatchNone): 0}
	for _, m := range r.Matches {
		counts[string(m.Kind)]++
	}
	return counts
}

// Resolve returns one MatchResult per name, in input order. A name first
// matches a pool entry with an identical preview name; failing that, the first
// pool entry (in pool order) whose name contains it or is contained by it,
// ignoring case.
func Resolve(names []string, pool []entity.Entity) Report {
	report := Report{Matches: make([]MatchResult, 0, len(names)), Total: len(names)}

	folded := make([]string, len(pool))
	fold := cases.Fold()
	for i, e := range pool {
		folded[i] = strings.TrimSpace(fold.String(e.Preview.Name))
	}

	for _, name := range names {
		res := MatchResult{ReferencedName: name, Kind: MatchNone}
		if id, ok := exact(name, pool); ok {
			res.EntityID, res.Kind = id, MatchExact
		} else if id, ok := fuzzy(strings.TrimSpace(fold.String(name)), pool, folded); ok {
			res.EntityID, res.Kind = id, MatchFuzzy
		}
		if res.Matched() {
			report.Matched++
		}
		report.Matches = append(report.Matches, res)
	}
	return report
}

func exact(name string, pool []entity.Entity) (string, bool) {
	if name == "" {
		return "", false
	}
	for _, e := range pool {
		if e.Preview.Name == name {
			return e.ID, true
		}
	}
	return "", false
}

// fuzzy skips empty strings on either side: "" is a substring of everything.
func fuzzy(name string, pool []entity.Entity, folded []string) (string, bool) {
	if name == "" {
		return "", false
	}
	for i, candidate := range folded {
		if candidate == "" {
			continue
		}
		if strings.Contains(name, candidate) || strings.Contains(candidate, name) {
			return pool[i].ID, true
		}
	}
	return "", false
}
