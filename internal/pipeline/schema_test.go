package pipeline

import (
	"errors"
	"testing"

	"github.com/muhammadolammi/careercards/internal/entity"
	"github.com/muhammadolammi/careercards/internal/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustExtract(t *testing.T, raw string) extract.Result {
	t.Helper()
	res, err := extract.Extract(raw)
	require.NoError(t, err)
	return res
}

func TestDecodeEntitiesToleratesAliases(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want entity.Entity
	}{
		{
			name: "bare array",
			raw:  `[{"name":"Barista","category":"FoundationSkills","timeLocation":"2021 Busan"}]`,
			want: entity.Entity{
				Category: entity.CategoryFoundationSkills,
				Preview:  entity.Preview{Name: "Barista", TimeLocation: "2021 Busan"},
			},
		},
		{
			name: "snake case under cards",
			raw:  `{"cards":[{"Name":"Tutor","category":"growth_potential","one_line_summary":"Taught math","task_details":"Weekly lessons"}]}`,
			want: entity.Entity{
				Category: entity.CategoryGrowthPotential,
				Preview:  entity.Preview{Name: "Tutor", OneLineSummary: "Taught math"},
				Detail:   entity.Detail{TaskDetails: "Weekly lessons"},
			},
		},
		{
			name: "nested preview and detail",
			raw: `{"experiences":[{"category":"Focus Match",
				"preview":{"name":"Data Intern","timeLocation":"2023 Seoul","oneLineSummary":"Built dashboards"},
				"detail":{"background":"Startup","role":"Intern","taskDetails":"SQL","reflection":"Learned a lot","highlight":"Shipped v1"}}]}`,
			want: entity.Entity{
				Category: entity.CategoryFocusMatch,
				Preview:  entity.Preview{Name: "Data Intern", TimeLocation: "2023 Seoul", OneLineSummary: "Built dashboards"},
				Detail: entity.Detail{
					Background: "Startup", Role: "Intern", TaskDetails: "SQL",
					Reflection: "Learned a lot", Highlight: "Shipped v1",
				},
			},
		},
		{
			name: "missing category and non-string values",
			raw:  `{"ENTITIES":[{"title":"Marathon","period":2019,"highlights":["sub 4h","charity"]}]}`,
			want: entity.Entity{
				Category: entity.CategoryFoundationSkills,
				Preview:  entity.Preview{Name: "Marathon", TimeLocation: "2019"},
				Detail:   entity.Detail{Highlight: "sub 4h; charity"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEntities(mustExtract(t, tt.raw))
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestDecodeEntitiesRejects(t *testing.T) {
	tests := map[string]string{
		"no container":       `{"foo":[{"name":"x"}]}`,
		"container not list": `{"entities":{"name":"x"}}`,
		"item not object":    `{"entities":["x"]}`,
		"blank name":         `{"entities":[{"name":"  ","category":"FocusMatch"}]}`,
		"unknown category":   `[{"name":"x","category":"Leisure"}]`,
		"one bad entity":     `[{"name":"ok"},{"category":"FocusMatch"}]`,
		"empty list":         `[]`,
		"scalar payload":     `42`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := DecodeEntities(mustExtract(t, raw))
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, ErrSchemaValidation), "got %v", err)
		})
	}
}

func TestDecodeProfileDefaultsOptionalFields(t *testing.T) {
	got, err := decodeProfile(mustExtract(t, `{"Summary":"Solid","ReadinessScore":"64.6%"}`))
	require.NoError(t, err)
	assert.Equal(t, "Solid", got.Summary)
	assert.Equal(t, 65, got.ReadinessScore)
	assert.Equal(t, []string{}, got.KeyExperiences)
	assert.Equal(t, []string{}, got.Strengths)
	assert.Equal(t, []string{}, got.Gaps)
	assert.Equal(t, "", got.Recommendation)
}

func TestDecodeProfileAcceptsLegacyNames(t *testing.T) {
	got, err := decodeProfile(mustExtract(t, `{
		"summary": "Close",
		"match_score": 80,
		"relevant_experiences": ["A", "", "B"],
		"missing_skills": "Cloud"
	}`))
	require.NoError(t, err)
	assert.Equal(t, 80, got.ReadinessScore)
	assert.Equal(t, []string{"A", "B"}, got.KeyExperiences)
	assert.Equal(t, []string{"Cloud"}, got.Gaps)
}

func TestFlattenPrefersTopLevel(t *testing.T) {
	f := flatten(map[string]any{
		"name":    "outer",
		"preview": map[string]any{"name": "inner", "timeLocation": "2020"},
	}, nestedSections...)
	assert.Equal(t, "outer", f.text("name"))
	assert.Equal(t, "2020", f.text("timelocation"))
	assert.Nil(t, f["preview"])
}
