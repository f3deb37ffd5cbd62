package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/muhammadolammi/careercards/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyPort wraps a MemoryPort and fails writes or deletes on demand.
type flakyPort struct {
	*MemoryPort
	failSet    bool
	failDelete bool
	failGet    bool
	sets       int
}

func (p *flakyPort) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if p.failGet {
		return nil, false, errors.New("read timeout")
	}
	return p.MemoryPort.Get(ctx, key)
}

func (p *flakyPort) Set(ctx context.Context, key string, value []byte) error {
	if p.failSet {
		return errors.New("disk full")
	}
	p.sets++
	return p.MemoryPort.Set(ctx, key, value)
}

func (p *flakyPort) Delete(ctx context.Context, key string) error {
	if p.failDelete {
		return errors.New("permission denied")
	}
	return p.MemoryPort.Delete(ctx, key)
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *flakyPort) {
	t.Helper()
	port := &flakyPort{MemoryPort: NewMemoryPort()}
	ids := 0
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	base := []Option{
		WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		}),
		WithClock(func() time.Time { return clock }),
	}
	return New(port, append(base, opts...)...), port
}

func card(name, when string, category entity.Category) entity.Entity {
	return entity.Entity{Category: category, Preview: entity.Preview{Name: name, TimeLocation: when}}
}

func TestStateMachine(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	assert.Equal(t, StateUninitialized, store.State(ctx))
	assert.False(t, store.ValidateSession(ctx))

	id, err := store.StartSession(ctx, "data science", "Analytics")
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)
	assert.Equal(t, StateActive, store.State(ctx))

	_, err = store.AddEntities(ctx, []entity.Entity{card("X", "", entity.CategoryFocusMatch)}, entity.SourceGenerated)
	require.NoError(t, err)
	assert.Equal(t, StateActive, store.State(ctx))

	require.NoError(t, store.ClearSession(ctx))
	assert.Equal(t, StateUninitialized, store.State(ctx))

	_, err = store.AddEntities(ctx, []entity.Entity{card("Y", "", "")}, entity.SourceGenerated)
	assert.True(t, errors.Is(err, ErrSessionValidation))
	assert.True(t, errors.Is(err, ErrNoSession))

	_, err = store.StartSession(ctx, "design", "Media")
	require.NoError(t, err)
	assert.True(t, store.ValidateSession(ctx))
}

func TestStartSessionRequiresGoalAndIndustry(t *testing.T) {
	store, port := newTestStore(t)

	_, err := store.StartSession(context.Background(), " ", "Analytics")
	assert.True(t, errors.Is(err, ErrSessionValidation))
	_, err = store.StartSession(context.Background(), "goal", "")
	assert.True(t, errors.Is(err, ErrSessionValidation))
	assert.Zero(t, port.sets)
}

func TestStartSessionResetsEntities(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.StartSession(ctx, "goal1", "industry1")
	require.NoError(t, err)
	batch := make([]entity.Entity, 0, 5)
	for i := range 5 {
		batch = append(batch, card(fmt.Sprintf("card %d", i), "", entity.CategoryGrowthPotential))
	}
	res, err := store.AddEntities(ctx, batch, entity.SourceUserInput)
	require.NoError(t, err)
	require.Equal(t, 5, res.Added)

	_, err = store.StartSession(ctx, "goal2", "industry2")
	require.NoError(t, err)

	sess, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Empty(t, sess.Entities)
	assert.NotNil(t, sess.Entities)
	assert.Equal(t, "goal2", sess.Goal)
	assert.Equal(t, "industry2", sess.IndustryLabel)
}

func TestStartAndClearWipeLegacyKeys(t *testing.T) {
	ctx := context.Background()
	store, port := newTestStore(t)

	for _, k := range DefaultLegacyKeys {
		require.NoError(t, port.Set(ctx, k, []byte(`"stale"`)))
	}
	_, err := store.StartSession(ctx, "goal", "industry")
	require.NoError(t, err)
	for _, k := range DefaultLegacyKeys {
		_, found, _ := port.Get(ctx, k)
		assert.False(t, found, k)
	}

	require.NoError(t, port.Set(ctx, "career_cards", []byte(`[]`)))
	require.NoError(t, store.ClearSession(ctx))
	_, found, _ := port.Get(ctx, "career_cards")
	assert.False(t, found)
	_, found, _ = port.Get(ctx, DefaultKey)
	assert.False(t, found)
}

func TestAddEntitiesDeduplicates(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	_, err := store.StartSession(ctx, "goal", "industry")
	require.NoError(t, err)

	first := []entity.Entity{
		card("Data Intern", "2023 Seoul", entity.CategoryFocusMatch),
		card("Hackathon", "2022", entity.CategoryGrowthPotential),
		card("data intern", " 2023  seoul", entity.CategoryFoundationSkills),
	}
	res, err := store.AddEntities(ctx, first, entity.SourceUploadedDocument)
	require.NoError(t, err)
	assert.Equal(t, AddResult{Added: 2, Duplicates: 1}, res)

	second := []entity.Entity{
		card("DATA INTERN", "2023 Seoul", entity.CategoryGrowthPotential),
		card("Tutoring", "2021", ""),
	}
	res, err = store.AddEntities(ctx, second, entity.SourceGenerated)
	require.NoError(t, err)
	assert.Equal(t, AddResult{Added: 1, Duplicates: 1}, res)

	entities, err := store.Entities(ctx)
	require.NoError(t, err)
	require.Len(t, entities, 3)
	// The stored entity wins over the later duplicate.
	assert.Equal(t, "Data Intern", entities[0].Preview.Name)
	assert.Equal(t, entity.CategoryFocusMatch, entities[0].Category)
	assert.Equal(t, entity.SourceUploadedDocument, entities[0].SourceKind)
	assert.Equal(t, entity.CategoryFoundationSkills, entities[2].Category)
	assert.Equal(t, entity.SourceGenerated, entities[2].SourceKind)
	assert.Equal(t, entity.CompletionIncomplete, entities[2].CompletionLevel)
	assert.NotEmpty(t, entities[2].ID)
	assert.False(t, entities[2].CreatedAt.IsZero())
}

func TestAddEntitiesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, port := newTestStore(t)
	_, err := store.StartSession(ctx, "goal", "industry")
	require.NoError(t, err)

	e1 := []entity.Entity{card("A", "", ""), card("B", "", "")}
	e2 := []entity.Entity{card("B", "", ""), card("C", "", "")}

	_, err = store.AddEntities(ctx, e1, entity.SourceUserInput)
	require.NoError(t, err)
	_, err = store.AddEntities(ctx, e2, entity.SourceUserInput)
	require.NoError(t, err)

	entities, err := store.Entities(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(entities), len(e1)+len(e2))
	assert.Len(t, entities, 3)

	before, _, _ := port.Get(ctx, DefaultKey)
	sets := port.sets
	res, err := store.AddEntities(ctx, e1, entity.SourceUserInput)
	require.NoError(t, err)
	assert.Equal(t, AddResult{Added: 0, Duplicates: 2}, res)

	after, _, _ := port.Get(ctx, DefaultKey)
	assert.Equal(t, before, after)
	assert.Equal(t, sets, port.sets)
}

func TestAddEntitiesPersistenceFailureKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	store, port := newTestStore(t)
	_, err := store.StartSession(ctx, "goal", "industry")
	require.NoError(t, err)
	_, err = store.AddEntities(ctx, []entity.Entity{card("A", "", "")}, entity.SourceUserInput)
	require.NoError(t, err)
	before, _, _ := port.Get(ctx, DefaultKey)

	port.failSet = true
	res, err := store.AddEntities(ctx, []entity.Entity{card("B", "", "")}, entity.SourceUserInput)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.Equal(t, AddResult{}, res)

	port.failSet = false
	after, _, _ := port.Get(ctx, DefaultKey)
	assert.Equal(t, before, after)
	entities, err := store.Entities(ctx)
	require.NoError(t, err)
	assert.Len(t, entities, 1)
}

func TestPortFailuresSurfaceAsPersistence(t *testing.T) {
	ctx := context.Background()
	store, port := newTestStore(t)

	port.failDelete = true
	_, err := store.StartSession(ctx, "goal", "industry")
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.True(t, errors.Is(store.ClearSession(ctx), ErrPersistence))

	port.failDelete = false
	_, err = store.StartSession(ctx, "goal", "industry")
	require.NoError(t, err)

	port.failGet = true
	_, err = store.Entities(ctx)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.False(t, store.ValidateSession(ctx))
}

func TestAddEntitiesRejectsUnknownValues(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	_, err := store.StartSession(ctx, "goal", "industry")
	require.NoError(t, err)

	_, err = store.AddEntities(ctx, []entity.Entity{card("A", "", "Hobbies")}, entity.SourceUserInput)
	assert.True(t, errors.Is(err, ErrInvalidEntity))

	_, err = store.AddEntities(ctx, []entity.Entity{card("A", "", "")}, entity.SourceKind("Scraped"))
	assert.True(t, errors.Is(err, ErrInvalidEntity))

	entities, err := store.Entities(ctx)
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestCategorizedView(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	_, err := store.StartSession(ctx, "goal", "industry")
	require.NoError(t, err)

	_, err = store.AddEntities(ctx, []entity.Entity{
		card("A", "", entity.CategoryFocusMatch),
		card("B", "", entity.CategoryFocusMatch),
	}, entity.SourceGenerated)
	require.NoError(t, err)
	_, err = store.AddEntities(ctx, []entity.Entity{
		card("C", "", entity.CategoryFocusMatch),
		card("D", "", entity.CategoryGrowthPotential),
	}, entity.SourceUploadedDocument)
	require.NoError(t, err)

	view, err := store.CategorizedView(ctx)
	require.NoError(t, err)
	require.Len(t, view, 3)

	focus := view[entity.CategoryFocusMatch]
	assert.Equal(t, 3, focus.Count())
	assert.Equal(t, 2, focus.CountsBySource[entity.SourceGenerated])
	assert.Equal(t, 1, focus.CountsBySource[entity.SourceUploadedDocument])
	assert.Equal(t, 0, focus.CountsBySource[entity.SourceUserInput])

	assert.Equal(t, 1, view[entity.CategoryGrowthPotential].Count())
	assert.Equal(t, 0, view[entity.CategoryFoundationSkills].Count())

	// Counts always match the live list.
	entities, err := store.Entities(ctx)
	require.NoError(t, err)
	total := 0
	for _, v := range view {
		for _, n := range v.CountsBySource {
			total += n
		}
	}
	assert.Equal(t, len(entities), total)
}

func TestValidateSessionRejectsBrokenRecords(t *testing.T) {
	ctx := context.Background()
	records := map[string]string{
		"not json":         `{"sessionId":`,
		"null entities":    `{"sessionId":"s","goal":"g","industryLabel":"i","entities":null}`,
		"object entities":  `{"sessionId":"s","goal":"g","industryLabel":"i","entities":{}}`,
		"missing entities": `{"sessionId":"s","goal":"g","industryLabel":"i"}`,
		"empty session id": `{"sessionId":"","goal":"g","industryLabel":"i","entities":[]}`,
		"empty goal":       `{"sessionId":"s","goal":"","industryLabel":"i","entities":[]}`,
		"empty industry":   `{"sessionId":"s","goal":"g","industryLabel":" ","entities":[]}`,
	}
	for name, raw := range records {
		t.Run(name, func(t *testing.T) {
			store, port := newTestStore(t)
			require.NoError(t, port.Set(ctx, DefaultKey, []byte(raw)))
			assert.False(t, store.ValidateSession(ctx))
			assert.Equal(t, StateUninitialized, store.State(ctx))
		})
	}

	store, port := newTestStore(t)
	require.NoError(t, port.Set(ctx, DefaultKey, []byte(`{"sessionId":"s","goal":"g","industryLabel":"i","entities":[]}`)))
	assert.True(t, store.ValidateSession(ctx))
}

func TestForUserScopesKeys(t *testing.T) {
	ctx := context.Background()
	port := NewMemoryPort()
	alice := New(port, ForUser("alice"))
	bob := New(port, ForUser("bob"))

	_, err := alice.StartSession(ctx, "goal", "industry")
	require.NoError(t, err)
	assert.Equal(t, "career_session:alice", alice.Key())
	assert.True(t, alice.ValidateSession(ctx))
	assert.False(t, bob.ValidateSession(ctx))

	require.NoError(t, bob.ClearSession(ctx))
	assert.True(t, alice.ValidateSession(ctx))
}
