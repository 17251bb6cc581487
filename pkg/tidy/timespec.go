// Copyright 2024 The Docker Tidy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tidy

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	units "github.com/docker/go-units"
	dps "github.com/markusmobius/go-dateparser"
)

// CutoffLayout is the layout used to render cutoffs in log messages.
const CutoffLayout = "2006-01-02, 15:04:05"

// Cutoff is an absolute instant resources are compared against. The zero value
// is unset, which disables the phase it belongs to; it does not mean "now".
type Cutoff struct {
	at  time.Time
	set bool
}

// CutoffAt returns a set cutoff at t, normalized to UTC.
func CutoffAt(t time.Time) Cutoff {
	return Cutoff{at: t.UTC(), set: true}
}

// IsSet reports whether the cutoff was configured.
func (c Cutoff) IsSet() bool {
	return c.set
}

// Time returns the instant. It is the zero time for an unset cutoff.
func (c Cutoff) Time() time.Time {
	return c.at
}

// String renders the cutoff for log messages.
func (c Cutoff) String() string {
	if !c.set {
		return "unset"
	}
	return c.at.Format(CutoffLayout)
}

// Describe renders the cutoff relative to now, for example
// "2014-01-18, 10:10:00 (2 days ago)".
func (c Cutoff) Describe(now time.Time) string {
	if !c.set {
		return c.String()
	}
	d := now.Sub(c.at)
	switch {
	case d < time.Second && d > -time.Second:
		return c.String() + " (now)"
	case d > 0:
		return c.String() + " (" + units.HumanDuration(d) + " ago)"
	default:
		return c.String() + " (in " + units.HumanDuration(-d) + ")"
	}
}

var (
	amountRe = regexp.MustCompile(`(\d+)\s*([a-z]+)`)

	absoluteLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}

	// unitSeconds bounds each unit from above, months and years included.
	unitSeconds = map[string]int64{
		"s": 1, "sec": 1, "secs": 1, "second": 1, "seconds": 1,
		"m": 60, "min": 60, "mins": 60, "minute": 60, "minutes": 60,
		"h": 3600, "hr": 3600, "hrs": 3600, "hour": 3600, "hours": 3600,
		"d": 86400, "day": 86400, "days": 86400,
		"w": 7 * 86400, "wk": 7 * 86400, "week": 7 * 86400, "weeks": 7 * 86400,
		"mo": 31 * 86400, "month": 31 * 86400, "months": 31 * 86400,
		"y": 366 * 86400, "yr": 366 * 86400, "yrs": 366 * 86400, "year": 366 * 86400, "years": 366 * 86400,
	}
)

// maxLookbackSeconds is the longest span a time.Duration can hold.
const maxLookbackSeconds = math.MaxInt64 / int64(time.Second)

// ParseCutoff resolves a time expression such as "2 days ago", "3 hours",
// "yesterday", "1h30m" or an absolute timestamp into a cutoff relative to now.
// An empty expression yields an unset cutoff. An expression that cannot be
// parsed, or that resolves to an instant after now, returns a *PolicyError.
func ParseCutoff(field, expr string, now time.Time) (Cutoff, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return Cutoff{}, nil
	}

	now = now.UTC()
	t, err := resolveCutoff(trimmed, now)
	if err != nil {
		return Cutoff{}, &PolicyError{Field: field, Value: expr, Err: err}
	}
	if t.After(now) {
		return Cutoff{}, &PolicyError{Field: field, Value: expr,
			Err: fmt.Errorf("resolves to %s, which is in the future", t.UTC().Format(CutoffLayout))}
	}
	return CutoffAt(t), nil
}

func resolveCutoff(expr string, now time.Time) (time.Time, error) {
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, expr, time.UTC); err == nil {
			return t, nil
		}
	}

	if d, err := time.ParseDuration(expr); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("negative duration %s", d)
		}
		return now.Add(-d), nil
	}

	normalized := strings.ToLower(expr)
	if err := checkAmounts(normalized); err != nil {
		return time.Time{}, err
	}
	// A bare amount such as "3 hours" looks back from now.
	if normalized[0] >= '0' && normalized[0] <= '9' && !strings.HasSuffix(normalized, "ago") {
		normalized += " ago"
	}

	dt, err := dps.Parse(&dps.Configuration{
		CurrentTime:     now,
		DefaultTimezone: time.UTC,
	}, normalized)
	if err != nil {
		return time.Time{}, err
	}
	if dt.Time.IsZero() {
		return time.Time{}, fmt.Errorf("no date found")
	}
	return dt.Time.UTC(), nil
}

// checkAmounts rejects expressions whose amounts add up to more than a
// time.Duration can represent.
func checkAmounts(s string) error {
	var total int64
	for _, m := range amountRe.FindAllStringSubmatch(s, -1) {
		unit, ok := unitSeconds[m[2]]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || n > (maxLookbackSeconds-total)/unit {
			return fmt.Errorf("amount %s %s is out of range", m[1], m[2])
		}
		total += n * unit
	}
	return nil
}
