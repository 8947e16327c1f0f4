package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Date is a timestamp sent by the backend. Full timestamps and date-only
// values are both accepted; anything else keeps its raw text and reports
// !Valid so the caller can log it instead of failing the whole payload.
type Date struct {
	raw string
	t   time.Time
}

func NewDate(t time.Time) Date {
	return Date{raw: t.Format(time.RFC3339), t: t}
}

// ParseDate never fails; see Valid.
func ParseDate(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{raw: s, t: t}
		}
	}
	return Date{raw: s}
}

// Time returns the parsed instant, or false when the value is missing or
// unparsable.
func (d Date) Time() (time.Time, bool) {
	return d.t, !d.t.IsZero()
}

// Ptr is Time for fields that model absence with nil.
func (d Date) Ptr() *time.Time {
	if t, ok := d.Time(); ok {
		return &t
	}
	return nil
}

func (d Date) Valid() bool {
	return !d.t.IsZero()
}

// IsZero reports a missing value.
func (d Date) IsZero() bool {
	return d.raw == "" && d.t.IsZero()
}

func (d Date) String() string {
	return d.raw
}

func (d Date) MarshalJSON() ([]byte, error) {
	switch {
	case d.Valid():
		return json.Marshal(d.t.Format(time.RFC3339))
	case d.raw == "":
		return []byte("null"), nil
	}
	return json.Marshal(d.raw)
}

// UnmarshalJSON accepts strings, millisecond epoch numbers and null.
// Unrecognised input is kept as raw text rather than rejected.
func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*d = Date{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*d = Date{raw: string(data)}
			return nil
		}
		*d = ParseDate(s)
	default:
		if ms, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			*d = Date{raw: string(data), t: time.UnixMilli(ms).UTC()}
			return nil
		}
		*d = Date{raw: string(data)}
	}
	return nil
}
