package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var sinceParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// ParseSince turns a --since value into an absolute time. It accepts RFC 3339
// timestamps, dates (2006-01-02), Go durations meaning "ago" (72h), and
// natural language such as "yesterday" or "3 days ago".
func ParseSince(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, now.Location()); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return now.Add(-d), nil
	}

	result, err := sinceParser.Parse(strings.ToLower(value), now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse since %q: %w", value, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("parse since %q: unrecognised time expression", value)
	}
	return result.Time, nil
}
