package store

import (
	"fmt"
	"time"
)

type scanner interface{ Scan(...any) error }

// Layouts seen in finished_at and the other timestamp columns: what the
// driver writes for time.Time values, and SQLite's own datetime().
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// nullTime scans a nullable timestamp column into a UTC *time.Time.
type nullTime struct {
	Time *time.Time
}

func (n *nullTime) Scan(v any) error {
	switch v := v.(type) {
	case nil:
		n.Time = nil
		return nil
	case time.Time:
		u := v.UTC()
		n.Time = &u
		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	default:
		return fmt.Errorf("scanning timestamp: unsupported type %T", v)
	}
}

func (n *nullTime) parse(s string) error {
	if s == "" {
		n.Time = nil
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			u := t.UTC()
			n.Time = &u
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
