package pipeline

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/muhammadolammi/careercards/internal/entity"
	"github.com/muhammadolammi/careercards/internal/extract"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, ok := entity.ParseCategory(fl.Field().String())
		return ok
	})
	if err != nil {
		panic(err)
	}
	return v
}

// Keys are compared after entity.Squash, so each alias is listed once.
var (
	entityContainers = []string{"entities", "cards", "experiences", "experiencecards", "items"}
	nestedSections   = []string{"preview", "detail", "details"}

	nameKeys       = []string{"name", "title", "experiencename"}
	categoryKeys   = []string{"category", "type"}
	timeKeys       = []string{"timelocation", "timeandlocation", "period", "when"}
	summaryKeys    = []string{"onelinesummary", "oneliner", "summary"}
	backgroundKeys = []string{"background", "context"}
	roleKeys       = []string{"role", "position"}
	taskKeys       = []string{"taskdetails", "tasks", "task"}
	reflectionKeys = []string{"reflection", "learnings", "lessons"}
	highlightKeys  = []string{"highlight", "highlights", "achievement"}
)

type entityPayload struct {
	Name           string `validate:"required"`
	Category       string `validate:"omitempty,category"`
	TimeLocation   string
	OneLineSummary string
	Background     string
	Role           string
	TaskDetails    string
	Reflection     string
	Highlight      string
}

// DecodeEntities validates a generated entity batch. The payload may be a bare
// array or an object holding the array under any container alias. Every
// entity needs a name; a missing category becomes FoundationSkills and an
// unknown one rejects the payload.
func DecodeEntities(res extract.Result) ([]entity.Entity, error) {
	items, err := entityItems(res.Payload)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no entities in payload", ErrSchemaValidation)
	}

	out := make([]entity.Entity, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: entity %d is not an object", ErrSchemaValidation, i)
		}
		f := flatten(obj, nestedSections...)
		p := entityPayload{
			Name:           f.text(nameKeys...),
			Category:       f.text(categoryKeys...),
			TimeLocation:   f.text(timeKeys...),
			OneLineSummary: f.text(summaryKeys...),
			Background:     f.text(backgroundKeys...),
			Role:           f.text(roleKeys...),
			TaskDetails:    f.text(taskKeys...),
			Reflection:     f.text(reflectionKeys...),
			Highlight:      f.text(highlightKeys...),
		}
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("%w: entity %d: %w", ErrSchemaValidation, i, err)
		}

		category := entity.CategoryFoundationSkills
		if p.Category != "" {
			category, _ = entity.ParseCategory(p.Category)
		}
		out = append(out, entity.Entity{
			Category: category,
			Preview: entity.Preview{
				Name:           p.Name,
				TimeLocation:   p.TimeLocation,
				OneLineSummary: p.OneLineSummary,
			},
			Detail: entity.Detail{
				Background:  p.Background,
				Role:        p.Role,
				TaskDetails: p.TaskDetails,
				Reflection:  p.Reflection,
				Highlight:   p.Highlight,
			},
		})
	}
	return out, nil
}

func entityItems(payload any) ([]any, error) {
	switch p := payload.(type) {
	case []any:
		return p, nil
	case map[string]any:
		f := flatten(p)
		for _, k := range entityContainers {
			v, ok := f[k]
			if !ok {
				continue
			}
			list, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: %q is not a list", ErrSchemaValidation, k)
			}
			return list, nil
		}
	}
	return nil, fmt.Errorf("%w: no entity list in payload", ErrSchemaValidation)
}

type profilePayload struct {
	Summary        string   `validate:"required"`
	ReadinessScore *float64 `validate:"required,gte=0,lte=100"`
	KeyExperiences []string
	Strengths      []string
	Gaps           []string
	Recommendation string
}

// decodeProfile validates an analysis payload. Summary and a 0-100 readiness
// score are required; the lists and the recommendation default to empty.
func decodeProfile(res extract.Result) (ProfileReport, error) {
	obj, ok := res.Object()
	if !ok {
		return ProfileReport{}, fmt.Errorf("%w: analysis payload is not an object", ErrSchemaValidation)
	}
	f := flatten(obj)
	p := profilePayload{
		Summary:        f.text("summary", "overview"),
		ReadinessScore: f.number("readinessscore", "score", "matchscore"),
		KeyExperiences: f.list("keyexperiences", "relevantexperiences", "experiences"),
		Strengths:      f.list("strengths"),
		Gaps:           f.list("gaps", "missingskills", "weaknesses"),
		Recommendation: f.text("recommendation", "recommendations", "nextsteps"),
	}
	if err := validate.Struct(p); err != nil {
		return ProfileReport{}, fmt.Errorf("%w: %w", ErrSchemaValidation, err)
	}
	return ProfileReport{
		Summary:        p.Summary,
		ReadinessScore: int(math.Round(*p.ReadinessScore)),
		KeyExperiences: p.KeyExperiences,
		Strengths:      p.Strengths,
		Gaps:           p.Gaps,
		Recommendation: p.Recommendation,
	}, nil
}

// fields indexes a payload object by squashed key.
type fields map[string]any

// flatten indexes obj by squashed key, lifting the members of the named nested
// objects to the top level. Top-level members win over lifted ones.
func flatten(obj map[string]any, nested ...string) fields {
	out := make(fields, len(obj))
	keys := slices.Sorted(maps.Keys(obj))
	for _, k := range keys {
		inner, ok := obj[k].(map[string]any)
		if !ok || !slices.Contains(nested, entity.Squash(k)) {
			continue
		}
		for _, ik := range slices.Sorted(maps.Keys(inner)) {
			if _, taken := out[entity.Squash(ik)]; !taken {
				out[entity.Squash(ik)] = inner[ik]
			}
		}
	}
	top := make(fields, len(obj))
	for _, k := range keys {
		v := obj[k]
		if _, isObj := v.(map[string]any); isObj && slices.Contains(nested, entity.Squash(k)) {
			continue
		}
		if _, taken := top[entity.Squash(k)]; !taken {
			top[entity.Squash(k)] = v
		}
	}
	maps.Copy(out, top)
	return out
}

// text returns the first non-blank value among aliases, rendered as a string.
func (f fields) text(aliases ...string) string {
	for _, a := range aliases {
		if s := stringify(f[a]); s != "" {
			return s
		}
	}
	return ""
}

func (f fields) list(aliases ...string) []string {
	for _, a := range aliases {
		switch v := f[a].(type) {
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				if s := stringify(item); s != "" {
					out = append(out, s)
				}
			}
			return out
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return []string{s}
			}
		}
	}
	return []string{}
}

func (f fields) number(aliases ...string) *float64 {
	for _, a := range aliases {
		switch v := f[a].(type) {
		case float64:
			return &v
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "%")), 64)
			if err == nil {
				return &n
			}
		}
	}
	return nil
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}
