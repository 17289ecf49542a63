package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sirosfoundation/go-soapmep/internal/storage"
	"github.com/sirosfoundation/go-soapmep/pkg/exchange"
)

func TestQuery(t *testing.T) {
	assert.Empty(t, Query(nil))

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := Query(&storage.ExchangeFilter{Operation: "echo", State: "cleanedUp", Since: &since, Limit: 10})
	assert.Equal(t, "echo", q["operation"])
	assert.Equal(t, "cleanedUp", q["state"])
	assert.Equal(t, bson.M{"$gte": since}, q["created_at"])
	assert.NotContains(t, q, "limit")
}

func TestRecordDocument(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data, err := bson.Marshal(exchange.Record{
		ID:        "urn:uuid:1",
		Operation: "echo",
		State:     "cleanedUp",
		Messages:  map[string]string{"in": "urn:uuid:1"},
		CreatedAt: created,
	})
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(data, &doc))
	assert.Equal(t, "urn:uuid:1", doc["_id"])
	assert.Contains(t, doc, "created_at")
	assert.NotContains(t, doc, "completed_at")
}

// TestStore runs against a live server when MONGODB_TEST_URI is set
func TestStore(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := NewStore(ctx, &Config{URI: uri, Database: "soapmep_test", Collection: "exchanges_" + time.Now().Format("150405")})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.exchanges.Drop(context.Background())
		_ = s.Close(context.Background())
	})

	rec := exchange.Record{ID: "x1", Operation: "echo", State: "cleanedUp", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.Archive(ctx, rec))
	rec.State = "complete"
	require.NoError(t, s.Archive(ctx, rec))

	got, err := s.GetExchange(ctx, "x1")
	require.NoError(t, err)
	assert.Equal(t, "complete", got.State)

	_, err = s.GetExchange(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	list, err := s.ListExchanges(ctx, &storage.ExchangeFilter{Operation: "echo"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	n, err := s.CountExchanges(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
