package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-soapmep/pkg/exchange"
)

func record(id, op, state string, created time.Time) exchange.Record {
	return exchange.Record{
		ID:        id,
		Operation: op,
		MEP:       "in-out",
		State:     state,
		Messages:  map[string]string{"in": id + "-in"},
		CreatedAt: created,
	}
}

func TestMemoryStore_ArchiveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	require.NoError(t, s.Archive(ctx, record("a", "echo", "cleanedUp", time.Now())))
	assert.Error(t, s.Archive(ctx, exchange.Record{}))

	r, err := s.GetExchange(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "echo", r.Operation)

	// returned records are copies
	r.Messages["out"] = "x"
	again, err := s.GetExchange(ctx, "a")
	require.NoError(t, err)
	assert.NotContains(t, again.Messages, "out")

	_, err = s.GetExchange(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Ping(ctx))
	assert.NoError(t, s.Close(ctx))
}

func TestMemoryStore_ArchiveReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	now := time.Now()

	require.NoError(t, s.Archive(ctx, record("a", "echo", "partial", now)))
	require.NoError(t, s.Archive(ctx, record("a", "echo", "cleanedUp", now)))

	n, err := s.CountExchanges(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	r, err := s.GetExchange(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "cleanedUp", r.State)
}

func TestMemoryStore_Capacity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Archive(ctx, record(fmt.Sprintf("r%d", i), "echo", "cleanedUp", now)))
	}

	_, err := s.GetExchange(ctx, "r0")
	assert.ErrorIs(t, err, ErrNotFound)
	n, err := s.CountExchanges(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMemoryStore_List(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	base := time.Now().Add(-time.Hour)

	require.NoError(t, s.Archive(ctx, record("old", "echo", "cleanedUp", base)))
	require.NoError(t, s.Archive(ctx, record("mid", "notify", "cleanedUp", base.Add(time.Minute))))
	require.NoError(t, s.Archive(ctx, record("new", "echo", "partial", base.Add(2*time.Minute))))

	all, err := s.ListExchanges(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})

	since := base.Add(30 * time.Second)
	tests := []struct {
		name   string
		filter *ExchangeFilter
		want   []string
	}{
		{"by operation", &ExchangeFilter{Operation: "echo"}, []string{"new", "old"}},
		{"by state", &ExchangeFilter{State: "partial"}, []string{"new"}},
		{"since", &ExchangeFilter{Since: &since}, []string{"new", "mid"}},
		{"limit", &ExchangeFilter{Limit: 1}, []string{"new"}},
		{"offset", &ExchangeFilter{Offset: 2}, []string{"old"}},
		{"offset past end", &ExchangeFilter{Offset: 5}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListExchanges(ctx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)

			if tt.filter.Limit == 0 && tt.filter.Offset == 0 {
				n, err := s.CountExchanges(ctx, tt.filter)
				require.NoError(t, err)
				assert.Equal(t, int64(len(tt.want)), n)
			}
		})
	}
}
