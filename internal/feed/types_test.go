package feed

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFlexBoolAcceptsNumbersAndBooleans(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"true", true},
		{"false", false},
		{"1", true},
		{"0", false},
	}
	for _, tc := range cases {
		var b FlexBool
		if err := json.Unmarshal([]byte(tc.in), &b); err != nil {
			t.Fatalf("decode %s: %v", tc.in, err)
		}
		if bool(b) != tc.want {
			t.Fatalf("decode %s: got %v, want %v", tc.in, b, tc.want)
		}
	}

	var b FlexBool
	if err := json.Unmarshal([]byte(`"yes"`), &b); err == nil {
		t.Fatal("expected error decoding non-boolean string")
	}
}

func TestFlexIntAcceptsNumericStrings(t *testing.T) {
	var i FlexInt
	if err := json.Unmarshal([]byte(`42`), &i); err != nil {
		t.Fatalf("decode number: %v", err)
	}
	if i != 42 {
		t.Fatalf("got %d, want 42", i)
	}
	if err := json.Unmarshal([]byte(`"1729"`), &i); err != nil {
		t.Fatalf("decode numeric string: %v", err)
	}
	if i != 1729 {
		t.Fatalf("got %d, want 1729", i)
	}
	if err := json.Unmarshal([]byte(`"abc"`), &i); err == nil {
		t.Fatal("expected error decoding non-numeric string")
	}
}

func TestFlexStringAcceptsNumbers(t *testing.T) {
	var s FlexString
	if err := json.Unmarshal([]byte(`"p1"`), &s); err != nil {
		t.Fatalf("decode string: %v", err)
	}
	if s != "p1" {
		t.Fatalf("got %q, want p1", s)
	}
	if err := json.Unmarshal([]byte(`12345`), &s); err != nil {
		t.Fatalf("decode number: %v", err)
	}
	if s != "12345" {
		t.Fatalf("got %q, want 12345", s)
	}
}

func TestTimeParsesOTXVariants(t *testing.T) {
	cases := []string{
		`"2024-03-01T12:30:00Z"`,
		`"2024-03-01T12:30:00.123456"`,
		`"2024-03-01T12:30:00"`,
		`"2024-03-01 12:30:00"`,
	}
	for _, raw := range cases {
		var parsed Time
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
		if parsed.Year() != 2024 || parsed.Month() != time.March {
			t.Fatalf("decode %s: got %v", raw, parsed.Time)
		}
		if parsed.Location() != time.UTC {
			t.Fatalf("decode %s: not UTC", raw)
		}
	}

	var parsed Time
	if err := json.Unmarshal([]byte(`"yesterday"`), &parsed); err == nil {
		t.Fatal("expected error for unparseable timestamp")
	}
}

func TestNullTimeDistinguishesNullFromValue(t *testing.T) {
	var holder struct {
		Expiration NullTime `json:"expiration"`
	}

	if err := json.Unmarshal([]byte(`{}`), &holder); err != nil {
		t.Fatalf("decode empty object: %v", err)
	}
	if holder.Expiration.Set {
		t.Fatal("absent key must not mark Set")
	}

	if err := json.Unmarshal([]byte(`{"expiration": null}`), &holder); err != nil {
		t.Fatalf("decode null: %v", err)
	}
	if !holder.Expiration.Set || holder.Expiration.Time != nil {
		t.Fatalf("null must mark Set with nil time, got %+v", holder.Expiration)
	}

	if err := json.Unmarshal([]byte(`{"expiration": "2024-03-01T00:00:00Z"}`), &holder); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if holder.Expiration.Time == nil || holder.Expiration.Time.Year() != 2024 {
		t.Fatalf("got %+v, want 2024 timestamp", holder.Expiration)
	}
}
