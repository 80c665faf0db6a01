package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionFormat(t *testing.T) {
	assert := assert.New(t)

	v := NewVersion(time.Date(2024, time.January, 15, 23, 30, 0, 0, time.UTC), 3)
	assert.Equal("20240115-3", v.String())

	// Date comes from UTC, not the local zone: 01:30 at UTC+3 is still the
	// previous day.
	late := time.Date(2024, time.January, 16, 1, 30, 0, 0, time.FixedZone("ahead", 3*3600))
	assert.Equal("20240115-1", NewVersion(late, 1).String())
}

func TestParseVersion(t *testing.T) {
	assert := assert.New(t)

	v, err := ParseVersion("20240115-12")
	require.NoError(t, err)
	assert.Equal("20240115", v.Date)
	assert.Equal(12, v.Seq)

	for _, bad := range []string{"", "20240115", "2024-01-15-1", "20240115-", "v20240115-1", "20240115-1x"} {
		_, err := ParseVersion(bad)
		assert.Error(err, "expected %q to be rejected", bad)
	}
}

func TestVersionCompareIsNumericOnSeq(t *testing.T) {
	assert := assert.New(t)

	older := Version{Date: "20240115", Seq: 9}
	newer := Version{Date: "20240115", Seq: 10}

	assert.Equal(-1, older.Compare(newer))
	assert.Equal(1, newer.Compare(older))
	assert.Equal(0, older.Compare(older))

	nextDay := Version{Date: "20240116", Seq: 1}
	assert.Equal(-1, newer.Compare(nextDay))
}
