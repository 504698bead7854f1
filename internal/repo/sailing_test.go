package repo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askeland/teu-capacity/internal/domain"
	"github.com/askeland/teu-capacity/internal/repo"
	"github.com/askeland/teu-capacity/testutil"
)

// newTestRepo opens a transaction against the test database and returns a
// SailingRepo backed by that transaction. The transaction is automatically
// rolled back when the test finishes, giving free per-test isolation.
//
// Requires TEST_DATABASE_URL to be set; TestMain applies migrations.
func newTestRepo(t *testing.T) *repo.SailingRepo {
	t.Helper()
	pool := testutil.NewPool(t)

	tx, err := pool.Begin(context.Background())
	require.NoError(t, err, "begin transaction")

	t.Cleanup(func() {
		// Rollback discards all changes made during the test — no cleanup SQL needed.
		_ = tx.Rollback(context.Background())
	})

	return repo.NewSailingRepo(tx)
}

// sailingFixture returns a SailingRecord with sensible defaults and a dedup
// key unique per n. Callers can override individual fields afterwards.
func sailingFixture(n int) domain.SailingRecord {
	return domain.SailingRecord{
		Origin:                               "Shanghai",
		Destination:                          "Rotterdam",
		OriginPortCode:                       "CNSHA",
		DestinationPortCode:                  "NLRTM",
		ServiceVersionAndRoundtripIdentfiers: fmt.Sprintf("AE1-v3-rt%03d", n),
		OriginServiceVersionAndMaster:        "AE1-v3",
		DestinationServiceVersionAndMaster:   "AE1-v3",
		DepartureAtUTC:                       time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC).AddDate(0, 0, n),
		OfferedCapacityTEU:                   1000 + n,
		DedupKey:                             fmt.Sprintf("testkey-%03d", n),
	}
}

// mustCopy inserts the given fixtures and asserts the row count.
func mustCopy(t *testing.T, r *repo.SailingRepo, recs ...domain.SailingRecord) {
	t.Helper()
	n, err := r.CopyRecords(context.Background(), recs)
	require.NoError(t, err)
	require.EqualValues(t, len(recs), n)
}

func TestSailingRepo_CopyRecords_RoundTrip(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	input := sailingFixture(1)
	mustCopy(t, r, input)

	found, err := r.ExistingByKeys(ctx, []string{input.DedupKey})
	require.NoError(t, err)
	require.Contains(t, found, input.DedupKey)

	got := found[input.DedupKey]
	assert.NotEqual(t, [16]byte{}, got.ID, "ID should be DB-generated UUID")
	assert.Equal(t, input.Origin, got.Origin)
	assert.Equal(t, input.Destination, got.Destination)
	assert.Equal(t, input.OriginPortCode, got.OriginPortCode)
	assert.Equal(t, input.DestinationPortCode, got.DestinationPortCode)
	assert.Equal(t, input.ServiceVersionAndRoundtripIdentfiers, got.ServiceVersionAndRoundtripIdentfiers)
	assert.True(t, got.DepartureAtUTC.Equal(input.DepartureAtUTC), "DepartureAtUTC mismatch")
	assert.Equal(t, input.OfferedCapacityTEU, got.OfferedCapacityTEU)
	assert.False(t, got.CreatedAt.IsZero(), "CreatedAt should be set by DB")
	assert.False(t, got.UpdatedAt.IsZero(), "UpdatedAt should be set by DB")
}

func TestSailingRepo_CopyRecords_Empty(t *testing.T) {
	r := newTestRepo(t)

	n, err := r.CopyRecords(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSailingRepo_CopyRecords_DuplicateKeyFails(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	mustCopy(t, r, sailingFixture(1))

	// Same dedup key again must hit the unique constraint.
	_, err := r.CopyRecords(ctx, []domain.SailingRecord{sailingFixture(1)})
	assert.Error(t, err)
}

func TestSailingRepo_ExistingByKeys_PartitionsKnownAndUnknown(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	mustCopy(t, r, sailingFixture(1), sailingFixture(2))

	found, err := r.ExistingByKeys(ctx, []string{
		sailingFixture(1).DedupKey,
		sailingFixture(2).DedupKey,
		"testkey-never-inserted",
	})

	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Contains(t, found, sailingFixture(1).DedupKey)
	assert.Contains(t, found, sailingFixture(2).DedupKey)
	assert.NotContains(t, found, "testkey-never-inserted")
}

func TestSailingRepo_ExistingByKeys_EmptyInput(t *testing.T) {
	r := newTestRepo(t)

	found, err := r.ExistingByKeys(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestSailingRepo_TouchByKeys_RefreshesUpdatedAtOnly(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	input := sailingFixture(1)
	mustCopy(t, r, input)

	before, err := r.ExistingByKeys(ctx, []string{input.DedupKey})
	require.NoError(t, err)

	require.NoError(t, r.TouchByKeys(ctx, []string{input.DedupKey}))

	after, err := r.ExistingByKeys(ctx, []string{input.DedupKey})
	require.NoError(t, err)

	got := after[input.DedupKey]
	assert.Equal(t, before[input.DedupKey].OfferedCapacityTEU, got.OfferedCapacityTEU)
	// now() is transaction time in Postgres, so within one test transaction
	// updated_at is stable; the key assertion is that the row still exists
	// and its content is unchanged.
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSailingRepo_OverwriteByKey(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	input := sailingFixture(1)
	mustCopy(t, r, input)

	update := input
	update.OriginServiceVersionAndMaster = "AE1-v4"
	update.DestinationServiceVersionAndMaster = "AE1-v4"
	update.OfferedCapacityTEU = 9999

	require.NoError(t, r.OverwriteByKey(ctx, update))

	found, err := r.ExistingByKeys(ctx, []string{input.DedupKey})
	require.NoError(t, err)

	got := found[input.DedupKey]
	assert.Equal(t, 9999, got.OfferedCapacityTEU)
	assert.Equal(t, "AE1-v4", got.OriginServiceVersionAndMaster)
	assert.Equal(t, "AE1-v4", got.DestinationServiceVersionAndMaster)
	// Identity fields are untouched.
	assert.Equal(t, input.Origin, got.Origin)
	assert.True(t, got.DepartureAtUTC.Equal(input.DepartureAtUTC))
}

func TestSailingRepo_OverwriteByKey_UnknownKey(t *testing.T) {
	r := newTestRepo(t)

	ghost := sailingFixture(1)
	ghost.DedupKey = "testkey-never-inserted"

	err := r.OverwriteByKey(context.Background(), ghost)
	assert.Error(t, err)
}

func TestSailingRepo_DeleteAll(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	// Start from a known-empty table; the shared test DB may carry rows.
	_, err := r.DeleteAll(ctx)
	require.NoError(t, err)

	mustCopy(t, r, sailingFixture(1), sailingFixture(2), sailingFixture(3))

	n, err := r.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	// Idempotent: deleting an empty table succeeds with zero.
	n, err = r.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSailingRepo_Stats(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.DeleteAll(ctx)
	require.NoError(t, err)

	empty, err := r.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Rows)
	assert.Nil(t, empty.EarliestDeparture)
	assert.Nil(t, empty.LatestDeparture)
	assert.Zero(t, empty.DistinctRoutes)

	a := sailingFixture(1)
	b := sailingFixture(2)
	c := sailingFixture(3)
	c.Origin = "Singapore"
	c.OriginPortCode = "SGSIN"
	mustCopy(t, r, a, b, c)

	report, err := r.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, report.Rows)
	require.NotNil(t, report.EarliestDeparture)
	require.NotNil(t, report.LatestDeparture)
	assert.True(t, report.EarliestDeparture.Equal(a.DepartureAtUTC))
	assert.True(t, report.LatestDeparture.Equal(c.DepartureAtUTC))
	assert.EqualValues(t, 2, report.DistinctRoutes)
}
