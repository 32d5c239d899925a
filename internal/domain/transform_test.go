package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchoolsURL = "https://data.tomelilla.se/rowstore/dataset/3617552e-4c28-4a46-9b74-ac8bbbfee33f"

var (
	testFetchedAt     = time.Date(2025, 8, 19, 6, 30, 0, 0, time.UTC)
	testTransformedAt = time.Date(2025, 8, 19, 7, 0, 0, 0, time.UTC)
)

func schoolsRecord(payload string) RawRecord {
	return RawRecord{
		IngestedAt: testFetchedAt,
		Source:     testSchoolsURL,
		Payload:    json.RawMessage(payload),
	}
}

func TestExtractSchools(t *testing.T) {
	t.Run("string-typed rowstore values", func(t *testing.T) {
		rec := schoolsRecord(`{"resultCount":1,"results":[{"id":"12","name":"Byavångsskolan","street":"Byavången 1","postalcode":"273 33","locality":"Tomelilla","students":"245","type":"GR","operation":"K","lat":"55.5436","long":"13.9480","url":"https://tomelilla.se","source":"TOM"}]}`)

		rows, err := ExtractSchools(rec, testTransformedAt)
		require.NoError(t, err)
		require.Len(t, rows, 1)

		row := rows[0]
		assert.Equal(t, testFetchedAt, row.FetchedAt)
		assert.Equal(t, testSchoolsURL, row.SourceURL)
		assert.Equal(t, "12", row.SchoolID)
		assert.Equal(t, "Byavångsskolan", row.SchoolName)
		assert.Equal(t, "Byavången 1", row.Street)
		assert.Equal(t, "273 33", row.PostalCode)
		assert.Equal(t, "Tomelilla", row.Locality)
		require.NotNil(t, row.StudentCount)
		assert.Equal(t, int64(245), *row.StudentCount)
		require.NotNil(t, row.Latitude)
		assert.InDelta(t, 55.5436, *row.Latitude, 1e-9)
		require.NotNil(t, row.Longitude)
		assert.InDelta(t, 13.9480, *row.Longitude, 1e-9)
		assert.Equal(t, "https://tomelilla.se", row.WebsiteURL)
		assert.Equal(t, "TOM", row.SourceCode)
		assert.Equal(t, "GR", row.SchoolType)
		assert.Equal(t, "Grundskola", row.SchoolTypeName)
		assert.Equal(t, "K", row.OperationType)
		assert.Equal(t, "Kommunal", row.OperationTypeName)
		assert.Equal(t, SizeLarge, row.SizeCategory)
		assert.Equal(t, testTransformedAt, row.TransformedAt)
	})

	t.Run("numeric JSON values are extracted as text", func(t *testing.T) {
		rec := schoolsRecord(`{"results":[{"id":7,"name":"Solrosen","students":18,"type":"FS","operation":"F","lat":55.54,"long":13.95}]}`)

		rows, err := ExtractSchools(rec, testTransformedAt)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "7", rows[0].SchoolID)
		assert.Equal(t, int64(18), *rows[0].StudentCount)
		assert.Equal(t, "Förskola", rows[0].SchoolTypeName)
		assert.Equal(t, "Fristående", rows[0].OperationTypeName)
		assert.Equal(t, SizeSmall, rows[0].SizeCategory)
	})

	t.Run("null and missing values stay null", func(t *testing.T) {
		rec := schoolsRecord(`{"results":[{"name":"Okänd enhet","students":null,"type":"XX"}]}`)

		rows, err := ExtractSchools(rec, testTransformedAt)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Nil(t, rows[0].StudentCount)
		assert.Nil(t, rows[0].Latitude)
		assert.Nil(t, rows[0].Longitude)
		assert.Empty(t, rows[0].SchoolID)
		assert.Equal(t, Unknown, rows[0].SchoolTypeName)
		assert.Equal(t, Unknown, rows[0].OperationTypeName)
		assert.Equal(t, SizeLarge, rows[0].SizeCategory)
	})

	t.Run("non-integer student count fails the run", func(t *testing.T) {
		rec := schoolsRecord(`{"results":[{"name":"A","students":"12"},{"name":"B","students":"tolv"}]}`)

		rows, err := ExtractSchools(rec, testTransformedAt)
		require.Error(t, err)
		assert.Nil(t, rows)

		var te *TransformError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "students", te.Field)
		assert.Equal(t, "tolv", te.Value)
		assert.Contains(t, err.Error(), "result 1")
	})

	t.Run("empty string is not castable", func(t *testing.T) {
		rec := schoolsRecord(`{"results":[{"name":"A","students":""}]}`)
		_, err := ExtractSchools(rec, testTransformedAt)
		var te *TransformError
		require.ErrorAs(t, err, &te)
	})

	t.Run("decimal comma latitude fails the run", func(t *testing.T) {
		rec := schoolsRecord(`{"results":[{"name":"A","lat":"55,54"}]}`)
		_, err := ExtractSchools(rec, testTransformedAt)
		var te *TransformError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "lat", te.Field)
	})

	t.Run("payload without results", func(t *testing.T) {
		for _, payload := range []string{`{"resultCount":0}`, `not json`, `[]`, `{"results":null}`} {
			_, err := ExtractSchools(schoolsRecord(payload), testTransformedAt)
			assert.True(t, errors.Is(err, ErrNoResults), payload)
		}
	})

	t.Run("empty results array yields no rows", func(t *testing.T) {
		rows, err := ExtractSchools(schoolsRecord(`{"results":[]}`), testTransformedAt)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestSizeCategory_Boundaries(t *testing.T) {
	cases := []struct {
		students int64
		want     string
	}{
		{0, SizeSmall},
		{29, SizeSmall},
		{30, SizeMedium},
		{99, SizeMedium},
		{100, SizeLarge},
		{1200, SizeLarge},
	}
	for _, tc := range cases {
		n := tc.students
		assert.Equal(t, tc.want, SizeCategory(&n), "students=%d", n)
	}
	assert.Equal(t, SizeLarge, SizeCategory(nil))
}

func TestSizeRank(t *testing.T) {
	assert.Less(t, SizeRank(SizeSmall), SizeRank(SizeMedium))
	assert.Less(t, SizeRank(SizeMedium), SizeRank(SizeLarge))
	assert.Equal(t, 0, SizeRank("Jätte"))
}

func TestLookupTables(t *testing.T) {
	assert.Equal(t, "Förskola", SchoolTypeName("FS"))
	assert.Equal(t, "Grundskola", SchoolTypeName("GR"))
	assert.Equal(t, "Familjedaghem", SchoolTypeName("FD"))
	assert.Equal(t, Unknown, SchoolTypeName("gr"))
	assert.Equal(t, "Kommunal", OperationTypeName("K"))
	assert.Equal(t, "Fristående", OperationTypeName("F"))
	assert.Equal(t, Unknown, OperationTypeName(""))
}
