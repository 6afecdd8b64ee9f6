package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confixr/pkg/model"
)

func newTestPersister(t *testing.T) *Persister {
	t.Helper()
	p, err := OpenPersister(filepath.Join(t.TempDir(), "test.sqlite3"), "confixr_", nil)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPersistRoundTrip(t *testing.T) {
	p := newTestPersister(t)
	ctx := context.Background()

	records := []model.AnalysisRecord{rec("a"), rec("b")}
	require.NoError(t, p.Save(ctx, records))

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, records, loaded)
}

func TestPersistWholesaleReplace(t *testing.T) {
	p := newTestPersister(t)
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, []model.AnalysisRecord{rec("a"), rec("b")}))
	require.NoError(t, p.Save(ctx, []model.AnalysisRecord{rec("c")}))

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, model.RecordID("c"), loaded[0].ID)
}

func TestPersistLoadEmpty(t *testing.T) {
	p := newTestPersister(t)

	loaded, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
