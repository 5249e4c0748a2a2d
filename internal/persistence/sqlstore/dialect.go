package sqlstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/icebreaker-scheduler/internal/persistence/migration"
)

// timeLayout is fixed width so that stored text sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Dialect adapts the shared SQL to one database.
type Dialect struct {
	migration.Dialect
	// EncodeTime converts a time into the bind value stored for it.
	EncodeTime func(time.Time) any
	// MapError translates driver errors into persistence errors.
	MapError func(error) error
	// Retryable reports whether a mapped error is transient.
	Retryable func(error) bool
}

// TextTime stores times as fixed-width UTC text.
func TextTime(t time.Time) any {
	return t.UTC().Format(timeLayout)
}

// NativeTime stores times as driver-native timestamps.
func NativeTime(t time.Time) any {
	return t.UTC()
}

// rebind rewrites "?" placeholders into the dialect's form.
func (d Dialect) rebind(query string) string {
	if d.Placeholder == nil {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) timeArg(t time.Time) any {
	if d.EncodeTime == nil {
		return TextTime(t)
	}
	return d.EncodeTime(t)
}

func (d Dialect) mapError(err error) error {
	if err == nil || d.MapError == nil {
		return err
	}
	return d.MapError(err)
}

// timeColumn scans timestamps stored either natively or as text.
type timeColumn struct {
	dest *time.Time
}

func (c timeColumn) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c.dest = time.Time{}
	case time.Time:
		*c.dest = v.UTC()
	case string:
		return c.parse(v)
	case []byte:
		return c.parse(string(v))
	default:
		return fmt.Errorf("sqlstore: cannot scan %T into time", src)
	}
	return nil
}

func (c timeColumn) parse(value string) error {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			*c.dest = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("sqlstore: invalid time %q", value)
}
