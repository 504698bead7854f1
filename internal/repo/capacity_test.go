package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askeland/teu-capacity/internal/domain"
	"github.com/askeland/teu-capacity/internal/repo"
)

// newCleanRepo returns a tx-backed repo with an empty sailings table, since
// aggregation queries scan the whole table.
func newCleanRepo(t *testing.T) *repo.SailingRepo {
	t.Helper()
	r := newTestRepo(t)
	_, err := r.DeleteAll(context.Background())
	require.NoError(t, err)
	return r
}

// capacityAt builds a sailing departing at the given instant with the given
// capacity, keyed uniquely by n.
func capacityAt(n int, departure time.Time, teu int) domain.SailingRecord {
	rec := sailingFixture(n)
	rec.DepartureAtUTC = departure
	rec.OfferedCapacityTEU = teu
	return rec
}

func TestQueryCapacity_WeekSum(t *testing.T) {
	r := newCleanRepo(t)
	ctx := context.Background()

	// Three departures inside the ISO week starting Monday 2024-05-06.
	mustCopy(t, r,
		capacityAt(1, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), 100),
		capacityAt(2, time.Date(2024, 5, 8, 12, 30, 0, 0, time.UTC), 150),
		capacityAt(3, time.Date(2024, 5, 12, 23, 59, 59, 0, time.UTC), 100),
	)

	buckets, err := r.QueryCapacity(ctx, domain.CapacityFilter{Level: domain.LevelWeek})

	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.True(t, buckets[0].BucketStart.Equal(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)),
		"weeks must start on Monday, got %s", buckets[0].BucketStart)
	assert.EqualValues(t, 350, buckets[0].OfferedCapacityTEU)
	assert.EqualValues(t, 3, buckets[0].SailingCount)
	assert.Equal(t, 19, buckets[0].WeekNo)
}

func TestQueryCapacity_SplitsAcrossWeeks(t *testing.T) {
	r := newCleanRepo(t)
	ctx := context.Background()

	// Sunday 2024-05-12 and Monday 2024-05-13 are adjacent calendar days in
	// different ISO weeks.
	mustCopy(t, r,
		capacityAt(1, time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC), 200),
		capacityAt(2, time.Date(2024, 5, 13, 10, 0, 0, 0, time.UTC), 300),
	)

	buckets, err := r.QueryCapacity(ctx, domain.CapacityFilter{Level: domain.LevelWeek})

	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.EqualValues(t, 200, buckets[0].OfferedCapacityTEU)
	assert.EqualValues(t, 300, buckets[1].OfferedCapacityTEU)
	assert.True(t, buckets[1].BucketStart.Equal(time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)))
}

func TestQueryCapacity_DateBoundsInclusive(t *testing.T) {
	r := newCleanRepo(t)
	ctx := context.Background()

	mustCopy(t, r,
		capacityAt(1, time.Date(2024, 5, 5, 23, 59, 59, 0, time.UTC), 1),    // day before from
		capacityAt(2, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), 10),      // from, midnight
		capacityAt(3, time.Date(2024, 5, 10, 23, 59, 59, 0, time.UTC), 100), // to, last second
		capacityAt(4, time.Date(2024, 5, 11, 0, 0, 0, 0, time.UTC), 1000),   // day after to
	)

	from := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	buckets, err := r.QueryCapacity(ctx, domain.CapacityFilter{
		Level:    domain.LevelWeek,
		DateFrom: &from,
		DateTo:   &to,
	})

	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.EqualValues(t, 110, buckets[0].OfferedCapacityTEU, "only the in-window sailings may be summed")
	assert.EqualValues(t, 2, buckets[0].SailingCount)
}

func TestQueryCapacity_RouteGroupingOrdersByBucketThenRoute(t *testing.T) {
	r := newCleanRepo(t)
	ctx := context.Background()

	monday := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

	singapore := capacityAt(1, monday, 500)
	singapore.Origin = "Singapore"
	singapore.OriginPortCode = "SGSIN"

	shanghaiA := capacityAt(2, monday, 300)
	shanghaiB := capacityAt(3, monday.AddDate(0, 0, 1), 200)

	mustCopy(t, r, singapore, shanghaiA, shanghaiB)

	buckets, err := r.QueryCapacity(ctx, domain.CapacityFilter{
		Level:        domain.LevelWeek,
		GroupByRoute: true,
	})

	require.NoError(t, err)
	require.Len(t, buckets, 2)
	// Same bucket start: Shanghai sorts before Singapore.
	assert.Equal(t, "Shanghai", buckets[0].Origin)
	assert.EqualValues(t, 500, buckets[0].OfferedCapacityTEU)
	assert.EqualValues(t, 2, buckets[0].SailingCount)
	assert.Equal(t, "Singapore", buckets[1].Origin)
	assert.EqualValues(t, 500, buckets[1].OfferedCapacityTEU)
}

func TestQueryCapacity_PortCodeFilter(t *testing.T) {
	r := newCleanRepo(t)
	ctx := context.Background()

	monday := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

	match := capacityAt(1, monday, 400)
	other := capacityAt(2, monday, 700)
	other.OriginPortCode = "SGSIN"

	mustCopy(t, r, match, other)

	buckets, err := r.QueryCapacity(ctx, domain.CapacityFilter{
		Level:          domain.LevelWeek,
		OriginPortCode: "CNSHA",
	})

	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.EqualValues(t, 400, buckets[0].OfferedCapacityTEU)
}

func TestQueryCapacity_MonthLevel(t *testing.T) {
	r := newCleanRepo(t)
	ctx := context.Background()

	mustCopy(t, r,
		capacityAt(1, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), 100),
		capacityAt(2, time.Date(2024, 5, 31, 23, 0, 0, 0, time.UTC), 200),
		capacityAt(3, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 400),
	)

	buckets, err := r.QueryCapacity(ctx, domain.CapacityFilter{Level: domain.LevelMonth})

	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.True(t, buckets[0].BucketStart.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.EqualValues(t, 300, buckets[0].OfferedCapacityTEU)
	assert.EqualValues(t, 400, buckets[1].OfferedCapacityTEU)
	// Week numbers are a week-level concept.
	assert.Zero(t, buckets[0].WeekNo)
}

func TestQueryCapacity_EmptyTable(t *testing.T) {
	r := newCleanRepo(t)

	buckets, err := r.QueryCapacity(context.Background(), domain.CapacityFilter{Level: domain.LevelWeek})

	require.NoError(t, err)
	assert.Empty(t, buckets)
}
