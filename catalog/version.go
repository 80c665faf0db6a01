package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var versionRe = regexp.MustCompile(`^(\d{8})-(\d+)$`)

// Version identifies one successful catalog build: the run date and a
// monotonically increasing sequence number within that date.
type Version struct {
	Date string // YYYYMMDD
	Seq  int
}

// NewVersion builds a version for the given day and run sequence.
func NewVersion(t time.Time, seq int) Version {
	return Version{Date: t.UTC().Format("20060102"), Seq: seq}
}

// ParseVersion reads the <YYYYMMDD>-<runseq> form.
func ParseVersion(s string) (Version, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("malformed version %q", s)
	}
	seq, err := strconv.Atoi(m[2])
	if err != nil {
		return Version{}, fmt.Errorf("malformed version %q: %w", s, err)
	}
	return Version{Date: m[1], Seq: seq}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%s-%d", v.Date, v.Seq)
}

// Compare orders versions by date, then by sequence. The sequence compares
// numerically, so 20240115-10 is newer than 20240115-9.
func (v Version) Compare(other Version) int {
	if v.Date != other.Date {
		if v.Date < other.Date {
			return -1
		}
		return 1
	}
	switch {
	case v.Seq < other.Seq:
		return -1
	case v.Seq > other.Seq:
		return 1
	}
	return 0
}
