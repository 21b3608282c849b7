package importer

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"gagyebu/internal/core"
)

func TestNormalizeJSONRejectsNonArray(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"object":  `{"id":"a"}`,
		"string":  `"hello"`,
		"number":  `42`,
		"null":    `null`,
		"garbage": `not json at all`,
		"empty":   ``,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NormalizeJSON([]byte(in))
			require.Error(t, err)
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "want FormatError, got %T", err)
		})
	}
}

func TestNormalizeJSONDropsInvalidElements(t *testing.T) {
	t.Parallel()

	in := `[
		{"id":"a","date":"2025-03-01","type":"expense","category":"식비","amount":12000,"memo":"점심"},
		{"id":"","date":"2025-03-01","type":"expense","category":"식비","amount":1},
		{"id":"c","date":"2025/03/01","type":"expense","category":"식비","amount":1},
		{"id":"d","date":"2025-03-02","type":"transfer","category":"식비","amount":1},
		{"id":"e","date":"2025-03-02","type":"income","category":"  ","amount":1},
		{"id":"f","date":"2025-03-02","type":"income","category":"급여","amount":-5},
		{"id":"g","date":"2025-03-02","type":"income","category":"급여","amount":"1000"},
		null,
		7,
		{"id":"h","date":"2025-03-04","type":"income","category":"용돈","amount":50000}
	]`
	res, err := NormalizeJSON([]byte(in))
	require.NoError(t, err)

	require.Len(t, res.Accepted, 2)
	require.Equal(t, "a", res.Accepted[0].ID)
	require.Equal(t, "점심", res.Accepted[0].Memo)
	require.Equal(t, "h", res.Accepted[1].ID)
	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, res.RejectedIndexes())
	require.ErrorIs(t, res.Rejected[0].Err, core.ErrMissingID)
	require.ErrorIs(t, res.Rejected[1].Err, core.ErrInvalidDate)
	require.ErrorIs(t, res.Rejected[2].Err, core.ErrInvalidType)
	require.ErrorIs(t, res.Rejected[3].Err, core.ErrEmptyCategory)
	require.ErrorIs(t, res.Rejected[4].Err, core.ErrInvalidAmount)
}

func TestNormalizeJSONLenientOptionalFields(t *testing.T) {
	t.Parallel()

	in := `[
		{"id":"a","date":"2025-03-01","type":"expense","category":"식비","amount":5000,"memo":123,"merchant":"nope"},
		{"id":"b","date":"2025-03-01","type":"expense","category":"카페","amount":4500,
		 "merchant":{"name":"Cafe","address":"서울 중구","lat":37.5,"lon":127.0}}
	]`
	res, err := NormalizeJSON([]byte(in))
	require.NoError(t, err)
	require.Len(t, res.Accepted, 2)
	require.Empty(t, res.Accepted[0].Memo)
	require.Nil(t, res.Accepted[0].Merchant)

	m := res.Accepted[1].Merchant
	require.NotNil(t, m)
	require.Equal(t, "Cafe", m.Name)
	require.NotNil(t, m.Lat)
	require.Equal(t, 37.5, *m.Lat)
}

func TestNormalizeJSONTrimsIDs(t *testing.T) {
	t.Parallel()

	res, err := NormalizeJSON([]byte(`[{"id":"  a1 ","date":"2025-03-01","type":"income","category":"급여","amount":5}]`))
	require.NoError(t, err)
	require.Len(t, res.Accepted, 1)
	require.Equal(t, "a1", res.Accepted[0].ID)
}

func TestNormalizeJSONAcceptsBOMAndEmptyArray(t *testing.T) {
	t.Parallel()

	res, err := NormalizeJSON([]byte("\xef\xbb\xbf[]"))
	require.NoError(t, err)
	require.Empty(t, res.Accepted)
	require.Empty(t, res.Rejected)
}

func TestNormalizeJSONRoundTrip(t *testing.T) {
	t.Parallel()

	lat, lon := 35.1, 129.0
	records := []core.Transaction{
		{ID: "1", Date: "2025-01-31", Type: core.Income, Category: "급여", Amount: 2500000},
		{ID: "2", Date: "2025-01-15", Type: core.Expense, Category: "식비", Amount: 8900.5, Memo: "마트"},
		{ID: "3", Date: "2025-01-10", Type: core.Expense, Category: "여행", Amount: 120000,
			Merchant: &core.Merchant{Name: "Hotel", Lat: &lat, Lon: &lon}},
	}
	data, err := json.MarshalIndent(records, "", "  ")
	require.NoError(t, err)

	res, err := NormalizeJSON(data)
	require.NoError(t, err)
	require.Empty(t, res.Rejected)
	require.Equal(t, records, res.Accepted)
}
