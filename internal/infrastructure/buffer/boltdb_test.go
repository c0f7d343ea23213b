package buffer

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, maxSize int) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "buffer.db"), "audit", maxSize)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func auditItem(id string, priority int, at time.Time) Item {
	return Item{
		ID:        id,
		Entity:    EntityAudit,
		Operation: OperationAppend,
		Data:      json.RawMessage(`{"id":"` + id + `"}`),
		Priority:  priority,
		Timestamp: at,
	}
}

func TestBatchOrdersByPriorityThenAge(t *testing.T) {
	store := openStore(t, 0)
	base := time.Now()

	require.NoError(t, store.Enqueue(auditItem("late-normal", PriorityNormal, base.Add(time.Second))))
	require.NoError(t, store.Enqueue(auditItem("early-normal", PriorityNormal, base)))
	require.NoError(t, store.Enqueue(auditItem("high", PriorityHigh, base.Add(time.Minute))))

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "high", items[0].ID)
	assert.Equal(t, "early-normal", items[1].ID)
	assert.Equal(t, "late-normal", items[2].ID)
}

func TestEnqueueReplacesSameID(t *testing.T) {
	store := openStore(t, 0)

	require.NoError(t, store.Enqueue(auditItem("a1", PriorityNormal, time.Now())))
	require.NoError(t, store.Enqueue(auditItem("a1", PriorityHigh, time.Now())))

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	assert.Equal(t, PriorityHigh, items[0].Priority)
}

func TestEnqueueRespectsCapacity(t *testing.T) {
	store := openStore(t, 2)

	require.NoError(t, store.Enqueue(auditItem("a1", 0, time.Time{})))
	require.NoError(t, store.Enqueue(auditItem("a2", 0, time.Time{})))
	assert.ErrorIs(t, store.Enqueue(auditItem("a3", 0, time.Time{})), ErrFull)

	// replacing an existing id does not need a free slot
	assert.NoError(t, store.Enqueue(auditItem("a2", PriorityHigh, time.Time{})))
}

func TestNormalizeFillsDefaults(t *testing.T) {
	store := openStore(t, 0)

	require.NoError(t, store.Enqueue(Item{Entity: EntityAudit, Priority: 9}))
	items, err := store.GetBatch(1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ID)
	assert.Equal(t, PriorityNormal, items[0].Priority)
	assert.False(t, items[0].Timestamp.IsZero())
}

func TestRequeueKeepsSingleCopy(t *testing.T) {
	store := openStore(t, 0)
	old := time.Now().Add(-time.Hour)
	require.NoError(t, store.Enqueue(auditItem("a1", PriorityNormal, old)))

	items, err := store.GetBatch(1)
	require.NoError(t, err)
	item := items[0]
	item.Retries++
	require.NoError(t, store.Requeue(item))

	items, err = store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Retries)
	assert.True(t, items[0].Timestamp.After(old))
}

func TestRemoveWithoutKeyUsesID(t *testing.T) {
	store := openStore(t, 0)
	require.NoError(t, store.Enqueue(auditItem("a1", PriorityNormal, time.Now())))

	require.NoError(t, store.Remove(Item{ID: "a1"}))
	size, err := store.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestCleanupDropsOldItems(t *testing.T) {
	store := openStore(t, 0)
	now := time.Now()
	require.NoError(t, store.Enqueue(auditItem("old", PriorityNormal, now.Add(-100*time.Hour))))
	require.NoError(t, store.Enqueue(auditItem("fresh", PriorityNormal, now)))

	removed, err := store.Cleanup(now.Add(-72 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "fresh", items[0].ID)
}

func TestClosedStoreReportsNotOpen(t *testing.T) {
	var store *Store
	assert.Error(t, store.Enqueue(Item{}))
	_, err := store.Size()
	assert.Error(t, err)
	assert.NoError(t, store.Close())
}
