package docservice

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/jsonvault/internal/apperr"
	"github.com/starford/jsonvault/internal/index"
	"github.com/starford/jsonvault/internal/models"
	"github.com/starford/jsonvault/internal/testutil"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(kind string, tier models.Tier, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, kind+":"+tier.String()+":"+name)
}

func newService(t *testing.T) (*Service, *index.DB, *eventLog) {
	t.Helper()
	store, _ := testutil.TestStore(t)
	db := testutil.TestDB(t)
	log := &eventLog{}
	svc := NewService(store,
		WithCatalog(db),
		WithLogger(testutil.DiscardLogger()),
		WithEvents(log.add),
	)
	return svc, db, log
}

func TestSetGetRemove(t *testing.T) {
	svc, db, log := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, models.Private, "a.json", []byte(`{"title":"A"}`)))
	require.NoError(t, svc.Set(ctx, models.Private, "a.json", []byte(`{"title":"B"}`)))

	got, err := svc.Get(ctx, models.Private, "a.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"B"}`, string(got))

	rows, total, err := svc.Catalog(ctx, models.Private, 10, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "B", rows[0].Title)

	require.NoError(t, svc.Remove(ctx, models.Private, "a.json"))
	cs, _ := db.GetChecksum(models.Private, "a.json")
	assert.Empty(t, cs)

	_, err = svc.Get(ctx, models.Private, "a.json")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, []string{
		"created:private:a.json",
		"updated:private:a.json",
		"deleted:private:a.json",
	}, log.events)
}

func TestFailedMutationsEmitNothing(t *testing.T) {
	svc, _, log := newService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Remove(ctx, models.Synced, "ghost.json"), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.Set(ctx, models.Synced, "../x.json", []byte("{}")), apperr.ErrInvalidName)
	assert.Empty(t, log.events)
}

func TestListReadsDisk(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, models.Synced, "n1.json", []byte("{}")))
	require.NoError(t, svc.Set(ctx, models.Synced, "n2.txt", []byte("x")))

	names, err := svc.List(ctx, models.Synced, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"n1.json", "n2.txt"}, names)

	names, err = svc.List(ctx, models.Synced, ".json")
	require.NoError(t, err)
	assert.Equal(t, []string{"n1.json"}, names)
}

func TestWipeClearsCatalogTier(t *testing.T) {
	svc, db, log := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, models.Synced, "keep.json", []byte("{}")))
	require.NoError(t, svc.Set(ctx, models.Private, "drop.json", []byte("{}")))
	require.NoError(t, svc.Wipe(ctx, models.Private))

	private, _ := db.AllChecksums(models.Private)
	assert.Empty(t, private)
	synced, _ := db.AllChecksums(models.Synced)
	assert.Len(t, synced, 1)
	assert.Contains(t, log.events, index.KindWiped+":private:")
}

func TestSearch(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, models.Synced, "servers.json", []byte(`{"host":"demo.opennms.org"}`)))
	require.NoError(t, svc.Set(ctx, models.Private, "prefs.json", []byte(`{"theme":"dark"}`)))

	results, err := svc.Search(ctx, "opennms", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "servers.json", results[0].Name)
	assert.Equal(t, models.Synced, results[0].Tier)
}

func TestWithoutCatalog(t *testing.T) {
	store, _ := testutil.TestStore(t)
	svc := NewService(store)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, models.Private, "a.json", []byte("{}")))
	rows, total, err := svc.Catalog(ctx, models.Private, 10, 0, "")
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, rows)

	results, err := svc.Search(ctx, "a", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
