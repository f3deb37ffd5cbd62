// Package session owns the single active session of experience cards: one
// keyed record, read and rewritten whole on every mutation.
//
// A Store assumes one writer per key. Two processes calling AddEntities on the
// same key at the same time can lose one of the updates.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/muhammadolammi/careercards/internal/entity"
	"github.com/muhammadolammi/careercards/internal/metrics"
	"go.uber.org/zap"
)

const DefaultKey = "career_session"

// DefaultLegacyKeys are auxiliary records older clients kept beside the
// session. They are wiped together with it.
var DefaultLegacyKeys = []string{
	"career_cards",
	"experience_cards",
	"career_session_metadata",
	"career_goal",
}

type State string

const (
	StateUninitialized State = "Uninitialized"
	StateActive        State = "Active"
)

type Metadata struct {
	// Source names the last writer: a SourceKind, or "session_start".
	Source      string    `json:"source"`
	ProcessedAt time.Time `json:"processedAt"`
}

// Session is the persisted record.
type Session struct {
	SessionID     string          `json:"sessionId"`
	Timestamp     time.Time       `json:"timestamp"`
	Goal          string          `json:"goal"`
	IndustryLabel string          `json:"industryLabel"`
	Entities      []entity.Entity `json:"entities"`
	Metadata      Metadata        `json:"metadata"`
}

type AddResult struct {
	Added      int `json:"addedCount"`
	Duplicates int `json:"duplicateCount"`
}

type CategoryView struct {
	Entities       []entity.Entity           `json:"entities"`
	CountsBySource map[entity.SourceKind]int `json:"countsBySource"`
}

func (v CategoryView) Count() int { return len(v.Entities) }

type Store struct {
	port       Port
	key        string
	legacyKeys []string
	now        func() time.Time
	newID      func() string
	logger     *zap.Logger
	metrics    *metrics.Manager
}

func New(port Port, opts ...Option) *Store {
	s := &Store{
		port:       port,
		key:        DefaultKey,
		legacyKeys: DefaultLegacyKeys,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key is the record key this store reads and writes.
func (s *Store) Key() string { return s.key }

// StartSession wipes the current session and every legacy key, then persists a
// new empty session and returns its id.
func (s *Store) StartSession(ctx context.Context, goal, industryLabel string) (string, error) {
	if strings.TrimSpace(goal) == "" || strings.TrimSpace(industryLabel) == "" {
		return "", fmt.Errorf("%w: goal and industry label are required", ErrSessionValidation)
	}
	if err := s.wipe(ctx); err != nil {
		return "", err
	}

	now := s.now().UTC()
	sess := &Session{
		SessionID:     s.newID(),
		Timestamp:     now,
		Goal:          goal,
		IndustryLabel: industryLabel,
		Entities:      []entity.Entity{},
		Metadata:      Metadata{Source: "session_start", ProcessedAt: now},
	}
	if err := s.save(ctx, sess); err != nil {
		return "", err
	}
	s.logger.Info("session started",
		zap.String("key", s.key),
		zap.String("session_id", sess.SessionID),
		zap.String("goal", goal),
		zap.String("industry", industryLabel))
	return sess.SessionID, nil
}

// AddEntities merges incoming into the session. Identity keys are compared
// across existing and incoming entities and the first occurrence wins, so
// stored entities beat incoming duplicates. Accepted entities are stamped with
// source, id, timestamps and completion level. The whole snapshot is written
// once; if nothing new was accepted nothing is written.
func (s *Store) AddEntities(ctx context.Context, incoming []entity.Entity, source entity.SourceKind) (AddResult, error) {
	kind, ok := entity.ParseSourceKind(string(source))
	if !ok {
		return AddResult{}, fmt.Errorf("%w: unknown source kind %q", ErrInvalidEntity, source)
	}
	source = kind
	for i, e := range incoming {
		if e.Category == "" {
			continue
		}
		if _, ok := entity.ParseCategory(string(e.Category)); !ok {
			return AddResult{}, fmt.Errorf("%w: entity %d has unknown category %q", ErrInvalidEntity, i, e.Category)
		}
	}

	sess, err := s.active(ctx)
	if err != nil {
		return AddResult{}, err
	}

	seen := make(map[string]struct{}, len(sess.Entities)+len(incoming))
	for _, e := range sess.Entities {
		seen[entity.IdentityKey(e)] = struct{}{}
	}

	now := s.now().UTC()
	var res AddResult
	for _, e := range incoming {
		key := entity.IdentityKey(e)
		if _, dup := seen[key]; dup {
			res.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		if e.Category == "" {
			e.Category = entity.CategoryFoundationSkills
		} else {
			e.Category, _ = entity.ParseCategory(string(e.Category))
		}
		if e.ID == "" {
			e.ID = s.newID()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		e.UpdatedAt = now
		e.SourceKind = source
		e.CompletionLevel = e.Completion()

		sess.Entities = append(sess.Entities, e)
		res.Added++
	}

	if res.Added == 0 {
		s.metrics.EntitiesAdded(string(source), 0, res.Duplicates)
		return res, nil
	}

	sess.Metadata = Metadata{Source: string(source), ProcessedAt: now}
	if err := s.save(ctx, sess); err != nil {
		return AddResult{}, err
	}
	s.metrics.EntitiesAdded(string(source), res.Added, res.Duplicates)
	s.logger.Info("entities added",
		zap.String("session_id", sess.SessionID),
		zap.String("source", string(source)),
		zap.Int("added", res.Added),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("total", len(sess.Entities)))
	return res, nil
}

// Current returns the active session.
func (s *Store) Current(ctx context.Context) (*Session, error) {
	return s.active(ctx)
}

// Entities returns every stored entity in insertion order.
func (s *Store) Entities(ctx context.Context) ([]entity.Entity, error) {
	sess, err := s.active(ctx)
	if err != nil {
		return nil, err
	}
	return sess.Entities, nil
}

// CategorizedView groups the live entity list by category. Every category is
// present; counts are computed from the list on each call.
func (s *Store) CategorizedView(ctx context.Context) (map[entity.Category]CategoryView, error) {
	sess, err := s.active(ctx)
	if err != nil {
		return nil, err
	}
	return Categorize(sess.Entities), nil
}

// Categorize groups entities by category and counts each group by source.
func Categorize(entities []entity.Entity) map[entity.Category]CategoryView {
	view := make(map[entity.Category]CategoryView, len(entity.Categories))
	for _, c := range entity.Categories {
		view[c] = newCategoryView()
	}
	for _, e := range entities {
		v, ok := view[e.Category]
		if !ok {
			v = newCategoryView()
		}
		v.Entities = append(v.Entities, e)
		v.CountsBySource[e.SourceKind]++
		view[e.Category] = v
	}
	return view
}

func newCategoryView() CategoryView {
	counts := make(map[entity.SourceKind]int, len(entity.SourceKinds))
	for _, k := range entity.SourceKinds {
		counts[k] = 0
	}
	return CategoryView{Entities: []entity.Entity{}, CountsBySource: counts}
}

// ValidateSession reports whether an active session exists: non-empty id, goal
// and industry label, and a list-typed entities field.
func (s *Store) ValidateSession(ctx context.Context) bool {
	_, err := s.active(ctx)
	return err == nil
}

func (s *Store) State(ctx context.Context) State {
	if s.ValidateSession(ctx) {
		return StateActive
	}
	return StateUninitialized
}

// ClearSession deletes the session record and every legacy key.
func (s *Store) ClearSession(ctx context.Context) error {
	if err := s.wipe(ctx); err != nil {
		return err
	}
	s.logger.Info("session cleared", zap.String("key", s.key))
	return nil
}

func (s *Store) wipe(ctx context.Context) error {
	keys := append([]string{s.key}, s.legacyKeys...)
	for _, k := range keys {
		if err := s.port.Delete(ctx, k); err != nil {
			s.metrics.PersistenceError()
			return fmt.Errorf("%w: delete %s: %w", ErrPersistence, k, err)
		}
	}
	return nil
}

func (s *Store) save(ctx context.Context, sess *Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("%w: encode session: %w", ErrPersistence, err)
	}
	if err := s.port.Set(ctx, s.key, b); err != nil {
		s.metrics.PersistenceError()
		s.logger.Error("session write failed", zap.String("key", s.key), zap.Error(err))
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, s.key, err)
	}
	return nil
}

// active loads and validates the session record.
func (s *Store) active(ctx context.Context) (*Session, error) {
	raw, found, err := s.port.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrPersistence, s.key, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %w", ErrSessionValidation, ErrNoSession)
	}

	var probe struct {
		Entities json.RawMessage `json:"entities"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: undecodable record: %v", ErrSessionValidation, err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(probe.Entities), []byte("[")) {
		return nil, fmt.Errorf("%w: entities is not a list", ErrSessionValidation)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: undecodable record: %v", ErrSessionValidation, err)
	}
	switch {
	case strings.TrimSpace(sess.SessionID) == "":
		return nil, fmt.Errorf("%w: empty session id", ErrSessionValidation)
	case strings.TrimSpace(sess.Goal) == "":
		return nil, fmt.Errorf("%w: empty goal", ErrSessionValidation)
	case strings.TrimSpace(sess.IndustryLabel) == "":
		return nil, fmt.Errorf("%w: empty industry label", ErrSessionValidation)
	}
	return &sess, nil
}
