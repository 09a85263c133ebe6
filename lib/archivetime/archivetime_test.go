package archivetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		raw    string
		expect time.Time
		fails  bool
	}{
		{
			raw:    "20230615000000",
			expect: time.Date(2023, time.June, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			raw:    "19961122183053",
			expect: time.Date(1996, time.November, 22, 18, 30, 53, 0, time.UTC),
		},
		{raw: "20230615", fails: true},
		{raw: "", fails: true},
		{raw: "2023061500000x", fails: true},
	}

	for _, test := range cases {
		parsed, err := ParseTimestamp(test.raw)
		if test.fails {
			require.Error(t, err, test.raw)
			continue
		}
		require.NoError(t, err, test.raw)
		require.Equal(t, test.expect, parsed)
		require.Equal(t, test.raw, FormatTimestamp(parsed))
	}
}

func TestParseDate(t *testing.T) {
	parsed, err := ParseDate("20230101")
	require.NoError(t, err)
	require.Equal(t, time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), parsed)

	_, err = ParseDate("2023-01-01")
	require.Error(t, err)

	_, err = ParseDate("20231301")
	require.Error(t, err)
}

func TestFormatDateNormalizesZone(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	// 8:30 on the 2nd in UTC+9 is still the 1st in UTC
	d := time.Date(2023, time.June, 2, 8, 30, 0, 0, loc)
	require.Equal(t, "20230601", FormatDate(d))
}
