package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/twinshot/internal/engine"
)

// Timestamps are stored as RFC 3339 text with nanoseconds, always UTC.
const timeLayout = time.RFC3339Nano

// marshalOptions converts options to JSON TEXT for storage.
// Uses json.Encoder with HTML escaping disabled so hosts and selectors
// stay readable in the raw file.
func marshalOptions(opts engine.Options) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(opts); err != nil {
		return "", fmt.Errorf("marshal options: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// unmarshalOptions converts JSON TEXT back to options.
func unmarshalOptions(data string) (engine.Options, error) {
	var opts engine.Options
	if err := json.Unmarshal([]byte(data), &opts); err != nil {
		return engine.Options{}, fmt.Errorf("unmarshal options: %w", err)
	}
	return opts, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// errorText stores a nil error as NULL.
func errorText(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}
