package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCache struct{}

func (brokenCache) LoadColumns(context.Context, string) (ColumnSet, bool, error) {
	return nil, false, errors.New("disk error")
}

func (brokenCache) StoreColumns(context.Context, string, ColumnSet) error {
	return errors.New("disk error")
}

func TestColumnPreferencesFallbackChain(t *testing.T) {
	ctx := context.Background()
	cfg := mustEntity(t, EntitySuppliers)
	custom := ColumnSet{col("supplierName", "Vendor"), col("email", "Mail")}

	store := NewInMemoryHeaderStore()
	cache := NewInMemoryHeaderCache()
	prefs := NewColumnPreferences(store, cache, zerologNop())

	res := prefs.Load(ctx, cfg, clientViewer)
	assert.Equal(t, SourceDefault, res.Source)
	assert.True(t, res.Columns.Equal(cfg.DefaultColumns))

	require.NoError(t, cache.StoreColumns(ctx, cfg.cacheKey(clientViewer), custom))
	res = prefs.Load(ctx, cfg, clientViewer)
	assert.Equal(t, SourceCache, res.Source)

	require.NoError(t, store.SaveColumns(ctx, cfg.Endpoints, adminViewer, custom, ScopeGlobal))
	res = prefs.Load(ctx, cfg, clientViewer)
	assert.Equal(t, SourceRemote, res.Source)
	assert.True(t, res.Columns.Equal(custom))
}

func TestColumnPreferencesRemoteErrorUsesCache(t *testing.T) {
	ctx := context.Background()
	cfg := mustEntity(t, EntitySuppliers)
	cache := NewInMemoryHeaderCache()
	cached := ColumnSet{col("supplierName", "Vendor")}
	require.NoError(t, cache.StoreColumns(ctx, cfg.cacheKey(clientViewer), cached))

	prefs := NewColumnPreferences(&failingHeaderStore{fetchErr: errBackend}, cache, zerologNop())
	res := prefs.Load(ctx, cfg, clientViewer)
	assert.Equal(t, SourceCache, res.Source)
	assert.ErrorIs(t, res.RemoteErr, errBackend)
	assert.True(t, res.Columns.Equal(cached))
}

func TestColumnPreferencesRejectsInvalidRemoteSet(t *testing.T) {
	ctx := context.Background()
	cfg := mustEntity(t, EntitySuppliers)
	store := NewInMemoryHeaderStore()
	dup := ColumnSet{col("a", "A"), col("a", "B")}
	store.global[cfg.Endpoints.Columns] = dup

	res := NewColumnPreferences(store, brokenCache{}, zerologNop()).Load(ctx, cfg, clientViewer)
	assert.Equal(t, SourceDefault, res.Source)
	assert.ErrorIs(t, res.RemoteErr, ErrDuplicateColumn)
}

func TestColumnPreferencesSaveScopes(t *testing.T) {
	ctx := context.Background()
	cfg := mustEntity(t, EntitySuppliers)
	store := &failingHeaderStore{}
	prefs := NewColumnPreferences(store, NewInMemoryHeaderCache(), zerologNop())

	require.NoError(t, prefs.Save(ctx, cfg, adminViewer, cfg.DefaultColumns))
	require.NoError(t, prefs.Save(ctx, cfg, clientViewer, cfg.DefaultColumns))
	assert.Equal(t, []ColumnScope{ScopeGlobal, ScopePersonal}, store.saved)
}

func TestColumnPreferencesSaveValidationWritesNothing(t *testing.T) {
	ctx := context.Background()
	cfg := mustEntity(t, EntitySuppliers)
	store := &failingHeaderStore{}
	cache := NewInMemoryHeaderCache()
	prefs := NewColumnPreferences(store, cache, zerologNop())

	err := prefs.Save(ctx, cfg, adminViewer, ColumnSet{col("a", "A"), col("a", "B")})
	require.ErrorIs(t, err, ErrDuplicateColumn)
	assert.Empty(t, store.saved)
	_, ok, _ := cache.LoadColumns(ctx, cfg.cacheKey(adminViewer))
	assert.False(t, ok)
}

func TestColumnPreferencesCacheEqualsSavedRegardlessOfRemote(t *testing.T) {
	ctx := context.Background()
	cfg := mustEntity(t, EntityCustomerOrders)
	saved := cfg.DefaultColumns.Clone()
	saved[0].Visible = false

	for name, store := range map[string]HeaderStore{
		"remote ok":     NewInMemoryHeaderStore(),
		"remote failed": &failingHeaderStore{saveErr: errBackend},
	} {
		t.Run(name, func(t *testing.T) {
			cache := NewInMemoryHeaderCache()
			_ = NewColumnPreferences(store, cache, zerologNop()).Save(ctx, cfg, clientViewer, saved)
			cached, ok, err := cache.LoadColumns(ctx, cfg.cacheKey(clientViewer))
			require.NoError(t, err)
			require.True(t, ok)
			assert.True(t, cached.Equal(saved))
		})
	}
}

func TestInMemoryHeaderStorePersonalOverridesGlobal(t *testing.T) {
	ctx := context.Background()
	cfg := mustEntity(t, EntitySuppliers)
	store := NewInMemoryHeaderStore()
	global := ColumnSet{col("supplierName", "Supplier")}
	personal := ColumnSet{col("supplierName", "Mine")}

	require.NoError(t, store.SaveColumns(ctx, cfg.Endpoints, adminViewer, global, ScopeGlobal))
	require.NoError(t, store.SaveColumns(ctx, cfg.Endpoints, clientViewer, personal, ScopePersonal))

	got, err := store.FetchColumns(ctx, cfg.Endpoints, clientViewer)
	require.NoError(t, err)
	assert.True(t, got.Equal(personal))
	got, err = store.FetchColumns(ctx, cfg.Endpoints, adminViewer)
	require.NoError(t, err)
	assert.True(t, got.Equal(global))

	assert.Error(t, store.SaveColumns(ctx, cfg.Endpoints, ViewerContext{}, global, ScopePersonal))
}
