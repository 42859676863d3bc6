package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// timeLayouts are the textual timestamp forms drivers hand back when the
// column is not decoded natively.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// utcTime scans a timestamp column into a UTC time.Time.
type utcTime struct {
	dest *time.Time
}

func (u utcTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*u.dest = time.Time{}
		return nil
	case time.Time:
		*u.dest = v.UTC()
		return nil
	case []byte:
		return u.parse(string(v))
	case string:
		return u.parse(v)
	}
	return fmt.Errorf("unsupported timestamp %T", src)
}

func (u utcTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			*u.dest = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparsable timestamp %q", s)
}

// jsonValue scans a JSON column into dest.
type jsonValue struct {
	dest any
}

func (j jsonValue) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported json %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, j.dest)
}

func marshalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
