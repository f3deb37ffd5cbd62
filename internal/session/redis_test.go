package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/muhammadolammi/careercards/internal/entity"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements the Get/Set/Del subset of redis.Cmdable the port uses.
type fakeRedis struct {
	redis.Cmdable
	values  map[string][]byte
	expires map[string]time.Duration
	err     error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string][]byte{}, expires: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = append([]byte(nil), value.([]byte)...)
	f.expires[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisPort(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	port := NewRedisPort(rdb)

	_, found, err := port.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, port.Set(ctx, "k", []byte(`{"a":1}`)))
	assert.Zero(t, rdb.expires["k"])
	got, found, err := port.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"a":1}`, string(got))

	require.NoError(t, port.Delete(ctx, "k"))
	_, found, err = port.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, port.Delete(ctx, "k"))

	rdb.err = errors.New("connection refused")
	_, found, err = port.Get(ctx, "k")
	assert.Error(t, err)
	assert.False(t, found)
	assert.Error(t, port.Set(ctx, "k", []byte(`{}`)))
	assert.Error(t, port.Delete(ctx, "k"))
}

func TestStoreOverRedisPort(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	store := New(NewRedisPort(rdb), ForUser("u1"))

	_, err := store.StartSession(ctx, "data science", "Analytics")
	require.NoError(t, err)
	_, err = store.AddEntities(ctx, []entity.Entity{card("Data Intern", "2023", entity.CategoryFocusMatch)}, entity.SourceUserInput)
	require.NoError(t, err)

	entities, err := New(NewRedisPort(rdb), ForUser("u1")).Entities(ctx)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Data Intern", entities[0].Preview.Name)

	rdb.err = errors.New("connection refused")
	_, err = store.Current(ctx)
	assert.True(t, errors.Is(err, ErrPersistence))
}
