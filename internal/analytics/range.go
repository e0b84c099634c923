package analytics

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRange is returned for range strings other than 1h, 24h, 7d and all.
var ErrInvalidRange = errors.New("invalid range")

// Range selects the analytics window and the bucket width of the
// commentaries-over-time series.
type Range struct {
	Name   string
	Window time.Duration
	Bucket time.Duration
}

const day = 24 * time.Hour

var ranges = map[string]Range{
	"1h":  {Name: "1h", Window: time.Hour, Bucket: time.Minute},
	"24h": {Name: "24h", Window: day, Bucket: time.Hour},
	"7d":  {Name: "7d", Window: 7 * day, Bucket: day},
	"all": {Name: "all", Bucket: day},
}

// RangeNames lists the accepted range strings.
var RangeNames = []string{"1h", "24h", "7d", "all"}

// ParseRange maps a query value onto a Range. Empty selects "all".
func ParseRange(value string) (Range, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		value = "all"
	}
	r, ok := ranges[value]
	if !ok {
		return Range{}, fmt.Errorf("%w %q (expected one of %s)", ErrInvalidRange, value, strings.Join(RangeNames, ", "))
	}
	return r, nil
}

// Since returns the window's cut-off relative to now; the zero time for "all".
func (r Range) Since(now time.Time) time.Time {
	if r.Window <= 0 {
		return time.Time{}
	}
	return now.Add(-r.Window).UTC()
}
