package db

import (
	"testing"

	"github.com/caiqy/threatdigest/internal/models"
)

func TestDetectDialectFromDSN(t *testing.T) {
	cases := []struct {
		dsn  string
		want string
	}{
		{"postgres://user:pw@localhost:5432/threat_intel", DialectPostgres},
		{"host=localhost user=ti dbname=threat_intel sslmode=disable", DialectPostgres},
		{"threat_intel.db", DialectSQLite},
		{"file:threat_intel.db?cache=shared", DialectSQLite},
		{"sqlite://threat_intel.db", DialectSQLite},
		{":memory:", DialectSQLite},
	}
	for _, tc := range cases {
		got, err := detectDialectFromDSN(tc.dsn)
		if err != nil {
			t.Fatalf("detect %q: %v", tc.dsn, err)
		}
		if got != tc.want {
			t.Fatalf("detect %q: got %s, want %s", tc.dsn, got, tc.want)
		}
	}

	if _, err := detectDialectFromDSN("mysql://nope"); err == nil {
		t.Fatal("expected error for unsupported dsn")
	}
}

func TestMigrateCreatesSchema(t *testing.T) {
	conn, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, column := range []string{"id", "name", "description", "author_name", "public", "revision", "adversary", "industries", "tlp", "tags", "created", "modified", "references", "targeted_countries"} {
		if !conn.Migrator().HasColumn(&models.Pulse{}, column) {
			t.Fatalf("pulses missing column %s", column)
		}
	}
	for _, column := range []string{"id", "pulse_id", "indicator", "type", "title", "description", "access_reason", "created", "is_active", "access_type", "content", "role", "expiration", "access_groups", "observations"} {
		if !conn.Migrator().HasColumn(&models.Indicator{}, column) {
			t.Fatalf("indicators missing column %s", column)
		}
	}
}

func TestCascadeDeleteRemovesIndicators(t *testing.T) {
	conn, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	pulse := models.Pulse{ID: "p1", Name: "n", TLP: "white", Industries: []byte("[]"), Tags: []byte("[]"), References: []byte("[]"), TargetedCountries: []byte("[]")}
	if errCreate := conn.Create(&pulse).Error; errCreate != nil {
		t.Fatalf("create pulse: %v", errCreate)
	}
	ind := models.Indicator{ID: 1, PulseID: "p1", Value: "1.2.3.4", Type: "IPv4", AccessType: "public", AccessGroups: []byte("[]")}
	if errCreate := conn.Create(&ind).Error; errCreate != nil {
		t.Fatalf("create indicator: %v", errCreate)
	}

	if errDelete := conn.Delete(&models.Pulse{}, "id = ?", "p1").Error; errDelete != nil {
		t.Fatalf("delete pulse: %v", errDelete)
	}
	var count int64
	if errCount := conn.Model(&models.Indicator{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count indicators: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("got %d orphaned indicators, want 0", count)
	}
}

func TestDialectExpressions(t *testing.T) {
	conn, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if !IsSQLite(conn) {
		t.Fatal("in-memory connection must report sqlite")
	}

	sub := JSONArrayValuesSubquery(conn, "pulses", "tags", "label")
	if sub != "(SELECT j.value AS label FROM pulses, json_each(pulses.tags) AS j)" {
		t.Fatalf("unexpected sqlite flatten subquery: %s", sub)
	}
	if got := MonthBucketExpr(conn, "created"); got != "strftime('%Y-%m', created)" {
		t.Fatalf("unexpected sqlite month expression: %s", got)
	}
}
