package normalize

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/caiqy/threatdigest/internal/feed"
)

const campaignRecord = `{
	"id": "p1",
	"name": "Campaign X",
	"author_name": "a",
	"public": 1,
	"revision": 1,
	"industries": [],
	"tags": ["apt"],
	"created": "2024-01-01T00:00:00Z",
	"modified": "2024-01-01T00:00:00Z",
	"references": [],
	"targeted_countries": ["US"],
	"indicators": [
		{"id": 1, "indicator": "1.2.3.4", "type": "IPv4", "created": "2024-01-01T00:00:00Z", "is_active": 1, "expiration": null}
	]
}`

func TestBatchNormalizesCampaignRecord(t *testing.T) {
	res := Batch([]feed.Record{json.RawMessage(campaignRecord)})
	if len(res.Dropped) != 0 {
		t.Fatalf("unexpected drops: %v", res.Dropped)
	}
	if len(res.Pulses) != 1 || len(res.Indicators) != 1 {
		t.Fatalf("got %d pulses / %d indicators, want 1 / 1", len(res.Pulses), len(res.Indicators))
	}

	pulse := res.Pulses[0]
	if pulse.ID != "p1" || pulse.Name != "Campaign X" {
		t.Fatalf("unexpected pulse: %+v", pulse)
	}
	if !pulse.Public {
		t.Fatal("public = 1 must coerce to true")
	}
	if pulse.Description != "" || pulse.Adversary != "" {
		t.Fatalf("missing optional strings must default to empty, got %q / %q", pulse.Description, pulse.Adversary)
	}
	if pulse.TLP != "white" {
		t.Fatalf("missing tlp must default to white, got %q", pulse.TLP)
	}
	if string(pulse.Industries) != "[]" {
		t.Fatalf("empty industries must serialize as [], got %s", pulse.Industries)
	}
	if string(pulse.Tags) != `["apt"]` {
		t.Fatalf("unexpected tags encoding: %s", pulse.Tags)
	}

	ind := res.Indicators[0]
	if ind.ID != 1 || ind.PulseID != "p1" || ind.Value != "1.2.3.4" || ind.Type != "IPv4" {
		t.Fatalf("unexpected indicator: %+v", ind)
	}
	if !ind.IsActive {
		t.Fatal("is_active = 1 must coerce to true")
	}
	if ind.Role != "" {
		t.Fatalf("absent role must coerce to empty string, got %q", ind.Role)
	}
	if ind.AccessType != "public" {
		t.Fatalf("missing access_type must default to public, got %q", ind.AccessType)
	}
	if ind.Observations != 0 {
		t.Fatalf("missing observations must default to 0, got %d", ind.Observations)
	}
	if ind.Expiration != nil {
		t.Fatalf("null expiration must stay nil, got %v", ind.Expiration)
	}
	if string(ind.AccessGroups) != "[]" {
		t.Fatalf("missing access_groups must serialize as [], got %s", ind.AccessGroups)
	}
}

func TestPulseLowercasesTLP(t *testing.T) {
	var raw feed.RawPulse
	record := `{
		"id": "p2", "name": "n", "author_name": "a", "public": true, "revision": 2,
		"industries": ["finance"], "tags": [], "created": "2024-01-01T00:00:00Z",
		"modified": "2024-01-02T00:00:00Z", "references": ["https://example.com"],
		"targeted_countries": [], "indicators": [], "tlp": "AMBER"
	}`
	if err := json.Unmarshal([]byte(record), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	pulse, err := Pulse(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if pulse.TLP != "amber" {
		t.Fatalf("got tlp %q, want amber", pulse.TLP)
	}
}

func TestIndicatorNullRoleBecomesEmptyString(t *testing.T) {
	record := `{"id": 7, "indicator": "evil.example", "type": "domain",
		"created": "2024-01-01T00:00:00Z", "is_active": true, "expiration": null, "role": null}`
	ind, err := Indicator("p1", json.RawMessage(record))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if ind.Role != "" {
		t.Fatalf("null role must coerce to empty string, got %q", ind.Role)
	}
}

func TestMalformedPulseAbortsOnlyThatPulse(t *testing.T) {
	missingName := `{"id": "bad", "author_name": "a", "public": 1, "revision": 1,
		"industries": [], "tags": [], "created": "2024-01-01T00:00:00Z",
		"modified": "2024-01-01T00:00:00Z", "references": [], "targeted_countries": [],
		"indicators": [{"id": 9, "indicator": "x", "type": "IPv4", "created": "2024-01-01T00:00:00Z", "is_active": 1, "expiration": null}]}`

	res := Batch([]feed.Record{json.RawMessage(missingName), json.RawMessage(campaignRecord)})
	if len(res.Pulses) != 1 || res.Pulses[0].ID != "p1" {
		t.Fatalf("good pulse must survive, got %+v", res.Pulses)
	}
	// Indicators of the aborted pulse must not leak through.
	if len(res.Indicators) != 1 || res.Indicators[0].ID != 1 {
		t.Fatalf("got indicators %+v, want only the good pulse's", res.Indicators)
	}
	if len(res.Dropped) != 1 {
		t.Fatalf("got %d drops, want 1", len(res.Dropped))
	}

	var malformed *MalformedRecordError
	if !errors.As(res.Dropped[0], &malformed) {
		t.Fatalf("drop is not a MalformedRecordError: %v", res.Dropped[0])
	}
	if malformed.RecordID != "bad" || malformed.Field != "name" {
		t.Fatalf("error must name record and field, got %+v", malformed)
	}
}

func TestMalformedIndicatorDropsOnlyItself(t *testing.T) {
	record := `{
		"id": "p3", "name": "n", "author_name": "a", "public": 0, "revision": 1,
		"industries": [], "tags": [], "created": "2024-01-01T00:00:00Z",
		"modified": "2024-01-01T00:00:00Z", "references": [], "targeted_countries": [],
		"indicators": [
			{"id": 1, "indicator": "good.example", "type": "domain", "created": "2024-01-01T00:00:00Z", "is_active": 1, "expiration": null},
			{"id": 2, "type": "domain", "created": "2024-01-01T00:00:00Z", "is_active": 1, "expiration": null},
			{"id": 3, "indicator": "also-good.example", "type": "domain", "created": "2024-01-01T00:00:00Z", "is_active": 1, "expiration": null}
		]
	}`

	res := Batch([]feed.Record{json.RawMessage(record)})
	if len(res.Pulses) != 1 {
		t.Fatalf("pulse must survive a malformed indicator, got %+v", res.Pulses)
	}
	if len(res.Indicators) != 2 {
		t.Fatalf("got %d indicators, want 2 (siblings survive)", len(res.Indicators))
	}
	if len(res.Dropped) != 1 {
		t.Fatalf("got %d drops, want 1", len(res.Dropped))
	}

	var malformed *MalformedRecordError
	if !errors.As(res.Dropped[0], &malformed) {
		t.Fatalf("drop is not a MalformedRecordError: %v", res.Dropped[0])
	}
	if malformed.RecordID != "2" || malformed.Field != "indicator" {
		t.Fatalf("error must name record and field, got %+v", malformed)
	}
}

func TestIndicatorIDCoercionFailureIsMalformed(t *testing.T) {
	record := `{"id": "not-a-number", "indicator": "x", "type": "IPv4",
		"created": "2024-01-01T00:00:00Z", "is_active": 1, "expiration": null}`
	_, err := Indicator("p1", json.RawMessage(record))
	var malformed *MalformedRecordError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedRecordError, got %v", err)
	}
}

func TestIndicatorMissingExpirationKeyIsMalformed(t *testing.T) {
	record := `{"id": 4, "indicator": "x", "type": "IPv4",
		"created": "2024-01-01T00:00:00Z", "is_active": 1}`
	_, err := Indicator("p1", json.RawMessage(record))
	var malformed *MalformedRecordError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedRecordError, got %v", err)
	}
	if malformed.Field != "expiration" {
		t.Fatalf("got field %q, want expiration", malformed.Field)
	}
}

func TestIndicatorExpirationValuePreserved(t *testing.T) {
	record := `{"id": 5, "indicator": "x", "type": "IPv4",
		"created": "2024-01-01T00:00:00Z", "is_active": 1, "expiration": "2024-06-01T00:00:00Z"}`
	ind, err := Indicator("p1", json.RawMessage(record))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if ind.Expiration == nil || !ind.Expiration.Equal(want) {
		t.Fatalf("got expiration %v, want %v", ind.Expiration, want)
	}
}
