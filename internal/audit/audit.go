// Package audit checks the integrity of a bar series before it is replayed.
package audit

import (
	"fmt"
	"time"

	"github.com/newthinker/quantbench/internal/core"
)

// Report summarises the ordering and spacing of a bar series.
type Report struct {
	Rows       int           `json:"rows"`
	IsOrdered  bool          `json:"is_ordered"`
	Duplicates int           `json:"duplicates"`
	Gaps       int           `json:"gaps"`
	BiggestGap time.Duration `json:"-"`
	// BiggestGapText is BiggestGap rendered for display, "0" when none.
	BiggestGapText string `json:"biggest_gap"`
}

// Check inspects candles against the expected bar interval. Any spacing
// other than the interval counts as a gap, so duplicated timestamps are
// counted both as duplicates and as gaps.
func Check(candles []core.OHLCV, interval time.Duration) Report {
	r := Report{Rows: len(candles), IsOrdered: true, BiggestGapText: "0"}
	seen := make(map[int64]struct{}, len(candles))

	for i, c := range candles {
		key := c.Time.UnixNano()
		if _, dup := seen[key]; dup {
			r.Duplicates++
		}
		seen[key] = struct{}{}

		if i == 0 {
			continue
		}
		diff := c.Time.Sub(candles[i-1].Time)
		if diff < 0 {
			r.IsOrdered = false
		}
		if interval > 0 && diff != interval {
			r.Gaps++
			if diff > r.BiggestGap {
				r.BiggestGap = diff
			}
		}
	}
	if r.BiggestGap > 0 {
		r.BiggestGapText = r.BiggestGap.String()
	}
	return r
}

// Ensure rejects a series that the engine cannot replay.
func Ensure(r Report) error {
	if r.Rows == 0 {
		return core.ErrNoData
	}
	if !r.IsOrdered {
		return core.WrapError(core.ErrDataQuality, fmt.Errorf("timestamps are not in ascending order"))
	}
	return nil
}
