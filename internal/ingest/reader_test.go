package ingest_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askeland/teu-capacity/internal/domain"
	"github.com/askeland/teu-capacity/internal/ingest"
)

// writeCSV writes content to a temp file and returns its path.
// The file is removed automatically when the test finishes.
func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sailings.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validHeader = "ORIGIN,DESTINATION,ORIGIN_PORT_CODE,DESTINATION_PORT_CODE," +
	"SERVICE_VERSION_AND_ROUNDTRIP_IDENTFIERS,ORIGIN_SERVICE_VERSION_AND_MASTER," +
	"DESTINATION_SERVICE_VERSION_AND_MASTER,ORIGIN_AT_UTC,OFFERED_CAPACITY_TEU\n"

const validRow = "china_main,north_europe_main,CNSHA,NLRTM,svc-1,om-1,dm-1,2024-03-04T00:00:00Z,15000\n"

func TestOpenCSV_missingFile(t *testing.T) {
	_, err := ingest.OpenCSV(filepath.Join(t.TempDir(), "nope.csv"))

	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestOpenCSV_emptyFile(t *testing.T) {
	_, err := ingest.OpenCSV(writeCSV(t, ""))

	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestOpenCSV_missingColumn(t *testing.T) {
	// Header lacks offered_capacity_teu entirely — structurally unusable.
	header := "ORIGIN,DESTINATION,ORIGIN_PORT_CODE,DESTINATION_PORT_CODE," +
		"SERVICE_VERSION_AND_ROUNDTRIP_IDENTFIERS,ORIGIN_SERVICE_VERSION_AND_MASTER," +
		"DESTINATION_SERVICE_VERSION_AND_MASTER,ORIGIN_AT_UTC\n"

	_, err := ingest.OpenCSV(writeCSV(t, header+"a,b,c,d,e,f,g,2024-01-01\n"))

	require.ErrorIs(t, err, domain.ErrSourceNotFound)
	assert.ErrorContains(t, err, "offered_capacity_teu")
}

func TestRowReader_mapsColumnsCaseInsensitively(t *testing.T) {
	r, err := ingest.OpenCSV(writeCSV(t, validHeader+validRow))
	require.NoError(t, err)
	defer r.Close()

	row, err := r.Next()
	require.NoError(t, err)

	// Line 2: line 1 is the header.
	assert.Equal(t, 2, row.Line)
	assert.Equal(t, "china_main", row.Values[ingest.ColOrigin])
	assert.Equal(t, "svc-1", row.Values[ingest.ColServiceRoundtrip])
	assert.Equal(t, "15000", row.Values[ingest.ColOfferedCapacityTEU])

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRowReader_columnOrderDoesNotMatter(t *testing.T) {
	// Same data, capacity column first.
	header := "OFFERED_CAPACITY_TEU,ORIGIN,DESTINATION,ORIGIN_PORT_CODE,DESTINATION_PORT_CODE," +
		"SERVICE_VERSION_AND_ROUNDTRIP_IDENTFIERS,ORIGIN_SERVICE_VERSION_AND_MASTER," +
		"DESTINATION_SERVICE_VERSION_AND_MASTER,ORIGIN_AT_UTC\n"
	row := "15000,china_main,north_europe_main,CNSHA,NLRTM,svc-1,om-1,dm-1,2024-03-04T00:00:00Z\n"

	r, err := ingest.OpenCSV(writeCSV(t, header+row))
	require.NoError(t, err)
	defer r.Close()

	got, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "15000", got.Values[ingest.ColOfferedCapacityTEU])
	assert.Equal(t, "china_main", got.Values[ingest.ColOrigin])
}

func TestRowReader_trimsCellWhitespaceAndBOM(t *testing.T) {
	r, err := ingest.OpenCSV(writeCSV(t, "\uFEFF"+validHeader+
		"  china_main ,north_europe_main,CNSHA,NLRTM,svc-1,om-1,dm-1,2024-03-04T00:00:00Z, 15000 \n"))
	require.NoError(t, err)
	defer r.Close()

	row, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "china_main", row.Values[ingest.ColOrigin])
	assert.Equal(t, "15000", row.Values[ingest.ColOfferedCapacityTEU])
}

func TestRowReader_malformedRowIsRecoverable(t *testing.T) {
	// Row 2 has a bare quote; row 3 is fine. The reader must report row 2
	// with an error but keep the stream usable for row 3.
	bad := "a,b,c,d,e\"f,g,h,2024-01-01,100\n"

	r, err := ingest.OpenCSV(writeCSV(t, validHeader+bad+validRow))
	require.NoError(t, err)
	defer r.Close()

	row, err := r.Next()
	require.Error(t, err)
	assert.Equal(t, 2, row.Line)

	row, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "china_main", row.Values[ingest.ColOrigin])

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRowReader_restartableByReopening(t *testing.T) {
	path := writeCSV(t, validHeader+validRow)

	for i := 0; i < 2; i++ {
		r, err := ingest.OpenCSV(path)
		require.NoError(t, err)

		row, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "china_main", row.Values[ingest.ColOrigin])

		_, err = r.Next()
		require.ErrorIs(t, err, io.EOF)
		require.NoError(t, r.Close())
	}
}

func TestRowReader_raggedRowLeavesMissingCellsAbsent(t *testing.T) {
	// Trailing cells missing: validator should see empty values, not a crash.
	short := "china_main,north_europe_main,CNSHA,NLRTM,svc-1\n"

	r, err := ingest.OpenCSV(writeCSV(t, validHeader+short))
	require.NoError(t, err)
	defer r.Close()

	row, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "china_main", row.Values[ingest.ColOrigin])
	assert.Empty(t, row.Values[ingest.ColOriginAtUTC])
}
