package trigger

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// IntervalKind names a rule for spacing executions.
type IntervalKind string

const (
	EveryMinute IntervalKind = "every_minute"
	HalfHourly  IntervalKind = "half_hourly"
	Hourly      IntervalKind = "hourly"
	HalfDaily   IntervalKind = "half_daily"
	Daily       IntervalKind = "daily"
	Weekly      IntervalKind = "weekly"
	Fortnightly IntervalKind = "fortnightly"
	Monthly     IntervalKind = "monthly"
	Custom      IntervalKind = "custom"
	Cron        IntervalKind = "cron"
)

const (
	// MinimumCustomSeconds is the shortest custom interval accepted.
	MinimumCustomSeconds = 60
	// MaximumCustomSeconds is the longest custom interval accepted.
	MaximumCustomSeconds = 100 * 365 * 24 * 60 * 60

	maxAdvanceMonths = 120000
	maxCronSteps     = 1024
)

// latestTarget is the last instant a computed target time may fall on.
var latestTarget = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

var fixedDurations = map[IntervalKind]time.Duration{
	EveryMinute: time.Minute,
	HalfHourly:  30 * time.Minute,
	Hourly:      time.Hour,
	HalfDaily:   12 * time.Hour,
	Daily:       24 * time.Hour,
	Weekly:      7 * 24 * time.Hour,
	Fortnightly: 14 * 24 * time.Hour,
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Interval is the rule a vault uses to compute its next target time.
//
// Seconds is only meaningful for Custom; Expression only for Cron
// (five-field, evaluated in UTC).
type Interval struct {
	Kind       IntervalKind `json:"kind"`
	Seconds    int64        `json:"seconds,omitempty"`
	Expression string       `json:"expression,omitempty"`
}

// ParseInterval accepts a kind name, "custom:<seconds>" or "cron:<expr>".
func ParseInterval(s string) (Interval, error) {
	var iv Interval
	if rest, ok := strings.CutPrefix(s, "custom:"); ok {
		secs, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return Interval{}, fmt.Errorf("invalid custom interval %q", s)
		}
		iv = Interval{Kind: Custom, Seconds: secs}
	} else if rest, ok := strings.CutPrefix(s, "cron:"); ok {
		iv = Interval{Kind: Cron, Expression: rest}
	} else {
		iv = Interval{Kind: IntervalKind(s)}
	}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// String renders the interval in the form accepted by ParseInterval.
func (iv Interval) String() string {
	switch iv.Kind {
	case Custom:
		return fmt.Sprintf("custom:%d", iv.Seconds)
	case Cron:
		return "cron:" + iv.Expression
	default:
		return string(iv.Kind)
	}
}

// Validate checks that the interval can produce target times.
func (iv Interval) Validate() error {
	switch iv.Kind {
	case Custom:
		if iv.Seconds < MinimumCustomSeconds {
			return fmt.Errorf("custom time interval must be at least %d seconds", MinimumCustomSeconds)
		}
		if iv.Seconds > MaximumCustomSeconds {
			return fmt.Errorf("custom time interval must be at most %d seconds", MaximumCustomSeconds)
		}
		return nil
	case Cron:
		if _, err := cronParser.Parse(iv.Expression); err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		return nil
	case Monthly:
		return nil
	}
	if _, ok := fixedDurations[iv.Kind]; ok {
		return nil
	}
	return fmt.Errorf("unknown time interval %q", iv.Kind)
}

// FixedDuration returns the interval length when it does not depend on
// the calendar.
func (iv Interval) FixedDuration() (time.Duration, bool) {
	if iv.Kind == Custom {
		return time.Duration(iv.Seconds) * time.Second, true
	}
	d, ok := fixedDurations[iv.Kind]
	return d, ok
}

// Next applies the interval once to from.
func (iv Interval) Next(from time.Time) (time.Time, error) {
	from = from.UTC()
	if iv.Kind == Custom {
		if err := iv.Validate(); err != nil {
			return time.Time{}, err
		}
	}
	if d, ok := iv.FixedDuration(); ok {
		return from.Add(d), nil
	}
	switch iv.Kind {
	case Monthly:
		return from.AddDate(0, 1, 0), nil
	case Cron:
		sched, err := cronParser.Parse(iv.Expression)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
		}
		next := sched.Next(from)
		if next.IsZero() {
			return time.Time{}, fmt.Errorf("cron expression %q has no future activation", iv.Expression)
		}
		return next.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unknown time interval %q", iv.Kind)
}

// NextAtOrAfter rolls basis forward by whole intervals until it is not
// before now. A zero basis yields now.
func (iv Interval) NextAtOrAfter(basis, now time.Time) (time.Time, error) {
	if basis.IsZero() {
		return now.UTC(), nil
	}
	t := basis.UTC()
	if d, ok := iv.FixedDuration(); ok && t.Before(now) {
		steps := now.Sub(t) / d
		t = t.Add(steps * d)
	}
	for t.Before(now) {
		next, err := iv.Next(t)
		if err != nil {
			return time.Time{}, err
		}
		t = next
	}
	return t, nil
}

// Advance applies the interval n times starting at from. Results past
// year 9999 are an error. Cron intervals walk at most maxCronSteps
// activations and extrapolate the rest at their mean spacing.
func (iv Interval) Advance(from time.Time, n int64) (time.Time, error) {
	from = from.UTC()
	if n <= 0 {
		return from, nil
	}
	if iv.Kind == Custom {
		if err := iv.Validate(); err != nil {
			return time.Time{}, err
		}
	}
	if d, ok := iv.FixedDuration(); ok {
		if n > math.MaxInt64/int64(d) {
			return time.Time{}, iv.overflow(n)
		}
		return iv.bounded(n, from.Add(time.Duration(n)*d))
	}
	if iv.Kind == Monthly {
		if n > maxAdvanceMonths {
			return time.Time{}, iv.overflow(n)
		}
		return iv.bounded(n, from.AddDate(0, int(n), 0))
	}

	steps := min(n, maxCronSteps)
	t := from
	for i := int64(0); i < steps; i++ {
		next, err := iv.Next(t)
		if err != nil {
			return time.Time{}, err
		}
		t = next
	}
	if steps == n {
		return iv.bounded(n, t)
	}
	mean := t.Sub(from) / time.Duration(steps)
	rest := n - steps
	if mean > 0 && rest > math.MaxInt64/int64(mean) {
		return time.Time{}, iv.overflow(n)
	}
	return iv.bounded(n, t.Add(time.Duration(rest)*mean))
}

func (iv Interval) bounded(n int64, t time.Time) (time.Time, error) {
	if t.After(latestTarget) {
		return time.Time{}, iv.overflow(n)
	}
	return t, nil
}

func (iv Interval) overflow(n int64) error {
	return fmt.Errorf("interval %s applied %d times overflows", iv, n)
}

// UnmarshalJSON accepts either the object form or the string form.
func (iv *Interval) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseInterval(s)
		if err != nil {
			return err
		}
		*iv = parsed
		return nil
	}
	type plain Interval
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*iv = Interval(p)
	return nil
}
