package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlfredBerg/green-scraper/internal/record"
)

func rec(company, url string) record.Record {
	var r record.Record
	r.Set(record.Company, company)
	r.Set(record.ListingURL, url)
	return r
}

func TestHandleWritesRunsInOrder(t *testing.T) {
	db := filepath.Join(t.TempDir(), "listings.db")
	o := &SqliteOutput{Database: db}
	require.NoError(t, o.Init())

	first := []record.Record{
		rec("株式会社A", "https://www.green-japan.com/company/1/job/1"),
		rec("株式会社B", "https://www.green-japan.com/company/2/job/2"),
	}
	second := []record.Record{rec("株式会社C", "https://www.green-japan.com/company/3/job/3")}

	ctx := context.Background()
	require.NoError(t, o.Handle(ctx, "run-1", first))
	require.NoError(t, o.Handle(ctx, "run-2", second))
	require.NoError(t, o.Cleanup())

	got, err := Records(ctx, db, "run-1")
	require.NoError(t, err)
	if diff := cmp.Diff(first, got); diff != "" {
		t.Errorf("run-1 mismatch (-want +got):\n%s", diff)
	}

	latest, err := LatestRun(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "run-2", latest)
}

func TestInitRequiresDatabase(t *testing.T) {
	assert.Error(t, (&SqliteOutput{}).Init())
}

func TestLatestRunOnEmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	o := &SqliteOutput{Database: db}
	require.NoError(t, o.Init())
	require.NoError(t, o.Cleanup())

	_, err := LatestRun(context.Background(), db)
	assert.ErrorContains(t, err, "no runs")
}
