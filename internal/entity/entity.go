// Package entity holds the experience card model shared by the store, the
// resolver and the inference pipeline.
package entity

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type Category string

const (
	CategoryFocusMatch       Category = "FocusMatch"
	CategoryGrowthPotential  Category = "GrowthPotential"
	CategoryFoundationSkills Category = "FoundationSkills"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryFocusMatch, CategoryGrowthPotential, CategoryFoundationSkills}

type SourceKind string

const (
	SourceUploadedDocument SourceKind = "UploadedDocument"
	SourceUserInput        SourceKind = "UserInput"
	SourceGenerated        SourceKind = "Generated"
)

var SourceKinds = []SourceKind{SourceUploadedDocument, SourceUserInput, SourceGenerated}

type CompletionLevel string

const (
	CompletionIncomplete CompletionLevel = "Incomplete"
	CompletionPartial    CompletionLevel = "Partial"
	CompletionComplete   CompletionLevel = "Complete"
)

type Preview struct {
	Name           string `json:"name"`
	TimeLocation   string `json:"timeLocation"`
	OneLineSummary string `json:"oneLineSummary"`
}

type Detail struct {
	Background  string `json:"background"`
	Role        string `json:"role"`
	TaskDetails string `json:"taskDetails"`
	Reflection  string `json:"reflection"`
	Highlight   string `json:"highlight"`
}

// Entity is one experience card.
type Entity struct {
	ID              string          `json:"id"`
	Category        Category        `json:"category"`
	Preview         Preview         `json:"preview"`
	Detail          Detail          `json:"detail"`
	CompletionLevel CompletionLevel `json:"completionLevel"`
	SourceKind      SourceKind      `json:"sourceKind"`
	// Synthetic marks cards produced by fallback synthesis rather than by the model.
	Synthetic bool      `json:"synthetic,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Completion derives the completion level from the share of non-empty content fields.
func (e Entity) Completion() CompletionLevel {
	fields := []string{
		e.Preview.Name, e.Preview.TimeLocation, e.Preview.OneLineSummary,
		e.Detail.Background, e.Detail.Role, e.Detail.TaskDetails, e.Detail.Reflection, e.Detail.Highlight,
	}
	filled := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			filled++
		}
	}
	ratio := float64(filled) / float64(len(fields))
	switch {
	case ratio >= 1:
		return CompletionComplete
	case ratio >= 0.5:
		return CompletionPartial
	default:
		return CompletionIncomplete
	}
}

// IdentityKey is the dedup key: normalized name and time/location joined by "|".
// It is never shown to users.
func IdentityKey(e Entity) string {
	return Normalize(e.Preview.Name) + "|" + Normalize(e.Preview.TimeLocation)
}

// Normalize trims, collapses whitespace, applies NFKC and case folds s.
func Normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = norm.NFKC.String(s)
	// Casers are stateful; one per call keeps Normalize safe for concurrent use.
	return cases.Fold().String(s)
}

// ParseCategory maps model spellings such as "Focus Match", "focus_match" or
// "focusMatch" onto a Category.
func ParseCategory(s string) (Category, bool) {
	switch Squash(s) {
	case "focusmatch":
		return CategoryFocusMatch, true
	case "growthpotential":
		return CategoryGrowthPotential, true
	case "foundationskills", "foundationskill", "foundation":
		return CategoryFoundationSkills, true
	}
	return "", false
}

func ParseSourceKind(s string) (SourceKind, bool) {
	switch Squash(s) {
	case "uploadeddocument", "document", "upload":
		return SourceUploadedDocument, true
	case "userinput", "user":
		return SourceUserInput, true
	case "generated", "ai":
		return SourceGenerated, true
	}
	return "", false
}

// Squash lowercases s and drops everything but letters and digits, so
// "one_line_summary", "oneLineSummary" and "One Line Summary" compare equal.
func Squash(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
