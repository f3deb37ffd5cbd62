package pipeline

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/muhammadolammi/careercards/internal/entity"
)

// SyntheticEntities builds the substitute batch served when generation fails:
// one entity per category, derived only from goal and industry, so the same
// inputs always produce the same ids and text. Every entity is marked Synthetic.
func SyntheticEntities(goal, industryLabel string) []entity.Entity {
	goal = strings.TrimSpace(goal)
	industryLabel = strings.TrimSpace(industryLabel)

	templates := []struct {
		category entity.Category
		name     string
		summary  string
		task     string
	}{
		{
			category: entity.CategoryFocusMatch,
			name:     fmt.Sprintf("%s project", goal),
			summary:  fmt.Sprintf("A hands-on project that applies %s to a real %s problem.", goal, industryLabel),
			task:     fmt.Sprintf("Pick a problem from %s, scope it, and ship a small working result.", industryLabel),
		},
		{
			category: entity.CategoryGrowthPotential,
			name:     fmt.Sprintf("%s industry exploration", industryLabel),
			summary:  fmt.Sprintf("Experience that shows how you learn about the %s industry.", industryLabel),
			task:     fmt.Sprintf("Interview practitioners or follow a course that connects your background to %s.", goal),
		},
		{
			category: entity.CategoryFoundationSkills,
			name:     "Collaboration and communication",
			summary:  "Teamwork, writing and presenting skills that support any path.",
			task:     "Describe a time you coordinated work with others and explained results.",
		},
	}

	out := make([]entity.Entity, 0, len(templates))
	for _, t := range templates {
		e := entity.Entity{
			ID:       fallbackID(goal, industryLabel, t.category),
			Category: t.category,
			Preview: entity.Preview{
				Name:           t.name,
				OneLineSummary: t.summary,
			},
			Detail: entity.Detail{
				TaskDetails: t.task,
			},
			SourceKind: entity.SourceGenerated,
			Synthetic:  true,
		}
		e.CompletionLevel = e.Completion()
		out = append(out, e)
	}
	return out
}

func fallbackID(goal, industryLabel string, category entity.Category) string {
	name := strings.Join([]string{"careercards", "fallback", goal, industryLabel, string(category)}, "|")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
