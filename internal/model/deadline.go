package model

import (
	"fmt"
	"strings"
	"time"
)

// deadlineLayouts are tried after RFC 3339. Values without an offset are read as UTC.
var deadlineLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02.01.2006 15:04",
	"02.01.2006",
	"2006-01-02",
}

// ParseDeadline accepts the formats the front-end and operators send.
// An empty string yields (nil, nil).
func ParseDeadline(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		u := t.UTC()
		return &u, nil
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised deadline %q", s)
}
