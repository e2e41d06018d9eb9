// Package normalize converts raw feed records into the two-table relational
// model, applying the field defaults and coercions the schema expects.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/caiqy/threatdigest/internal/feed"
	"github.com/caiqy/threatdigest/internal/models"
)

// MalformedRecordError reports a raw record that violates the required-field
// contract or carries a value that cannot be coerced.
type MalformedRecordError struct {
	RecordID string
	Field    string
	Cause    error
}

// Error implements the error interface.
func (e *MalformedRecordError) Error() string {
	id := e.RecordID
	if id == "" {
		id = "?"
	}
	switch {
	case e.Field != "" && e.Cause != nil:
		return fmt.Sprintf("record %q: field %q: %v", id, e.Field, e.Cause)
	case e.Field != "":
		return fmt.Sprintf("record %q: missing required field %q", id, e.Field)
	default:
		return fmt.Sprintf("record %q: %v", id, e.Cause)
	}
}

// Unwrap exposes the underlying cause, when any.
func (e *MalformedRecordError) Unwrap() error { return e.Cause }

func missing(recordID, field string) error {
	return &MalformedRecordError{RecordID: recordID, Field: field}
}

// Result is the output of normalizing one fetch batch.
type Result struct {
	Pulses     []models.Pulse
	Indicators []models.Indicator
	Dropped    []error // One MalformedRecordError per skipped pulse or indicator.
}

// Batch normalizes a fetched sequence of raw records. A malformed pulse
// aborts that pulse (and all of its indicators); a malformed indicator drops
// only itself. Both kinds of failure are collected into Dropped rather than
// aborting the batch.
func Batch(records []feed.Record) Result {
	var out Result
	for _, rec := range records {
		var raw feed.RawPulse
		if err := json.Unmarshal(rec, &raw); err != nil {
			out.Dropped = append(out.Dropped, &MalformedRecordError{RecordID: probeID(rec), Cause: err})
			continue
		}

		pulse, err := Pulse(raw)
		if err != nil {
			out.Dropped = append(out.Dropped, err)
			continue
		}
		out.Pulses = append(out.Pulses, pulse)

		for _, rawInd := range raw.Indicators {
			ind, errInd := Indicator(pulse.ID, rawInd)
			if errInd != nil {
				out.Dropped = append(out.Dropped, errInd)
				continue
			}
			out.Indicators = append(out.Indicators, ind)
		}
	}
	return out
}

// Pulse normalizes one decoded pulse record into a row. Indicators are
// handled separately so their failures stay isolated.
func Pulse(raw feed.RawPulse) (models.Pulse, error) {
	id := ""
	if raw.ID != nil {
		id = string(*raw.ID)
	}
	if id == "" {
		return models.Pulse{}, missing(id, "id")
	}

	required := []struct {
		name   string
		absent bool
	}{
		{"name", raw.Name == nil},
		{"author_name", raw.AuthorName == nil},
		{"public", raw.Public == nil},
		{"revision", raw.Revision == nil},
		{"industries", raw.Industries == nil},
		{"tags", raw.Tags == nil},
		{"created", raw.Created == nil},
		{"modified", raw.Modified == nil},
		{"references", raw.References == nil},
		{"targeted_countries", raw.TargetedCountries == nil},
		{"indicators", raw.Indicators == nil},
	}
	for _, field := range required {
		if field.absent {
			return models.Pulse{}, missing(id, field.name)
		}
	}

	tlp := "white"
	if raw.TLP != nil {
		tlp = strings.ToLower(*raw.TLP)
	}

	return models.Pulse{
		ID:                id,
		Name:              *raw.Name,
		Description:       stringOrEmpty(raw.Description),
		AuthorName:        *raw.AuthorName,
		Public:            bool(*raw.Public),
		Revision:          int(*raw.Revision),
		Adversary:         stringOrEmpty(raw.Adversary),
		Industries:        jsonArray(*raw.Industries),
		TLP:               tlp,
		Tags:              jsonArray(*raw.Tags),
		Created:           raw.Created.Time,
		Modified:          raw.Modified.Time,
		References:        jsonArray(*raw.References),
		TargetedCountries: jsonArray(*raw.TargetedCountries),
	}, nil
}

// Indicator normalizes one nested indicator record into a row keyed to its
// parent pulse.
func Indicator(pulseID string, rec json.RawMessage) (models.Indicator, error) {
	var raw feed.RawIndicator
	if err := json.Unmarshal(rec, &raw); err != nil {
		return models.Indicator{}, &MalformedRecordError{RecordID: probeID(rec), Cause: err}
	}

	id := probeID(rec)
	if raw.ID != nil {
		id = fmt.Sprintf("%d", int64(*raw.ID))
	}

	required := []struct {
		name   string
		absent bool
	}{
		{"id", raw.ID == nil},
		{"indicator", raw.Indicator == nil},
		{"type", raw.Type == nil},
		{"created", raw.Created == nil},
		{"is_active", raw.IsActive == nil},
		{"expiration", !raw.Expiration.Set},
	}
	for _, field := range required {
		if field.absent {
			return models.Indicator{}, missing(id, field.name)
		}
	}

	accessType := "public"
	if raw.AccessType != nil && *raw.AccessType != "" {
		accessType = *raw.AccessType
	}

	accessGroups := []string{}
	if raw.AccessGroups != nil {
		accessGroups = *raw.AccessGroups
	}

	observations := 0
	if raw.Observations != nil {
		observations = int(*raw.Observations)
	}

	return models.Indicator{
		ID:           int64(*raw.ID),
		PulseID:      pulseID,
		Value:        *raw.Indicator,
		Type:         *raw.Type,
		Title:        stringOrEmpty(raw.Title),
		Description:  stringOrEmpty(raw.Description),
		AccessReason: stringOrEmpty(raw.AccessReason),
		Created:      raw.Created.Time,
		IsActive:     bool(*raw.IsActive),
		AccessType:   accessType,
		Content:      stringOrEmpty(raw.Content),
		Role:         stringOrEmpty(raw.Role),
		Expiration:   raw.Expiration.Time,
		AccessGroups: jsonArray(accessGroups),
		Observations: observations,
	}, nil
}

// stringOrEmpty maps an absent (or JSON null) string field to "".
func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// jsonArray serializes a string sequence to its canonical JSON encoding. A
// nil slice still encodes as [], never null.
func jsonArray(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		// []string cannot fail to marshal.
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(encoded)
}

// probeID makes a best effort to get an identifier out of an otherwise
// undecodable record for error reporting.
func probeID(rec json.RawMessage) string {
	var probe struct {
		ID *feed.FlexString `json:"id"`
	}
	if err := json.Unmarshal(rec, &probe); err != nil || probe.ID == nil {
		return ""
	}
	return string(*probe.ID)
}
