package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The OTX API is loose about scalar encodings: booleans arrive as true/false
// or 0/1, identifiers as numbers or strings, timestamps with or without a
// zone. The Flex* types absorb those variants at decode time so the
// normalizer only deals with clean Go values. Required-key detection relies
// on pointer fields: a nil pointer means the key was absent.

// FlexBool decodes a JSON boolean or a 0/1 number.
type FlexBool bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *FlexBool) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "true":
		*b = true
		return nil
	case "false":
		*b = false
		return nil
	}
	num, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return fmt.Errorf("feed: cannot decode %s as boolean", trimmed)
	}
	*b = num != 0
	return nil
}

// FlexInt decodes a JSON number or a numeric string.
type FlexInt int64

// UnmarshalJSON implements json.Unmarshaler.
func (i *FlexInt) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 1 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		trimmed = []byte(strings.TrimSpace(s))
	}
	parsed, err := strconv.ParseInt(string(trimmed), 10, 64)
	if err != nil {
		return fmt.Errorf("feed: cannot decode %s as integer", data)
	}
	*i = FlexInt(parsed)
	return nil
}

// FlexString decodes a JSON string or a number as its decimal form.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(trimmed, &num); err != nil {
		return fmt.Errorf("feed: cannot decode %s as string", data)
	}
	*s = FlexString(num.String())
	return nil
}

// timeLayouts are the timestamp encodings OTX is known to emit.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Time decodes an OTX timestamp string to UTC.
type Time struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("feed: cannot decode %s as timestamp", data)
	}
	parsed, err := parseTime(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// NullTime decodes a timestamp that may be JSON null. Set reports whether
// the key was present at all, which UnmarshalJSON guarantees.
type NullTime struct {
	Set  bool
	Time *time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *NullTime) UnmarshalJSON(data []byte) error {
	t.Set = true
	if string(bytes.TrimSpace(data)) == "null" {
		t.Time = nil
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("feed: cannot decode %s as timestamp", data)
	}
	if strings.TrimSpace(raw) == "" {
		t.Time = nil
		return nil
	}
	parsed, err := parseTime(raw)
	if err != nil {
		return err
	}
	t.Time = &parsed
	return nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("feed: cannot parse timestamp %q", raw)
}

// Record is one undecoded pulse record from the feed. Records are decoded
// one at a time during normalization so a malformed record cannot sink the
// rest of its batch.
type Record = json.RawMessage

// RawPulse is one pulse record as returned by the feed, before
// normalization. Pointer fields distinguish absent keys from zero values.
// Indicators stay undecoded here; a malformed indicator must only drop
// itself, never its siblings or the parent pulse.
type RawPulse struct {
	ID                *FlexString       `json:"id"`
	Name              *string           `json:"name"`
	Description       *string           `json:"description"`
	AuthorName        *string           `json:"author_name"`
	Public            *FlexBool         `json:"public"`
	Revision          *FlexInt          `json:"revision"`
	Adversary         *string           `json:"adversary"`
	Industries        *[]string         `json:"industries"`
	TLP               *string           `json:"tlp"`
	Tags              *[]string         `json:"tags"`
	Created           *Time             `json:"created"`
	Modified          *Time             `json:"modified"`
	References        *[]string         `json:"references"`
	TargetedCountries *[]string         `json:"targeted_countries"`
	Indicators        []json.RawMessage `json:"indicators"`
}

// RawIndicator is one indicator record nested in a pulse.
type RawIndicator struct {
	ID           *FlexInt  `json:"id"`
	Indicator    *string   `json:"indicator"`
	Type         *string   `json:"type"`
	Title        *string   `json:"title"`
	Description  *string   `json:"description"`
	AccessReason *string   `json:"access_reason"`
	Created      *Time     `json:"created"`
	IsActive     *FlexBool `json:"is_active"`
	AccessType   *string   `json:"access_type"`
	Content      *string   `json:"content"`
	Role         *string   `json:"role"`
	Expiration   NullTime  `json:"expiration"`
	AccessGroups *[]string `json:"access_groups"`
	Observations *FlexInt  `json:"observations"`
}
