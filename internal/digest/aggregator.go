// Package digest computes the aggregate statistics battery over persisted
// pulses and indicators and renders it for the summarization services.
package digest

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	dbutil "github.com/caiqy/threatdigest/internal/db"
	"github.com/caiqy/threatdigest/internal/models"
)

// QueryError reports a single failed battery query. It is recorded in the
// digest and does not abort the other queries.
type QueryError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("digest: query %s failed: %v", e.Name, e.Err)
}

// Unwrap exposes the underlying database error.
func (e *QueryError) Unwrap() error { return e.Err }

// LabelCount is one histogram bucket.
type LabelCount struct {
	Label string
	Count int64
}

// ExpiryStats breaks indicators down by expiration status.
type ExpiryStats struct {
	Expired    int64
	Active     int64
	PctExpired float64
	PctActive  float64
}

// PulseCount names a pulse together with its indicator count.
type PulseCount struct {
	ID         string
	Name       string
	Indicators int64
}

// MonthCount is a monthly pulse-creation bucket, labeled YYYY-MM.
type MonthCount struct {
	Month  string
	Pulses int64
}

// TLPTypeCount is an indicator count for one (TLP level, indicator type) pair.
type TLPTypeCount struct {
	TLP        string
	Type       string
	Indicators int64
}

// PulseTypeCount names a pulse together with its distinct indicator types.
type PulseTypeCount struct {
	ID    string
	Name  string
	Types int64
}

// ExpiringIndicator is one indicator expiring in the near term.
type ExpiringIndicator struct {
	Type       string
	Indicator  string
	Expiration time.Time
}

// Sample is one (pulse, indicator) example pair embedded in the prompt.
type Sample struct {
	PulseID          string
	PulseName        string
	PulseDescription string
	Type             string
	Indicator        string
}

// Digest is the structured result of the aggregate battery. Queries that
// failed leave their zero value in place and record a marker in Errors
// keyed by query name.
type Digest struct {
	GeneratedAt time.Time

	TotalPulses     int64
	TotalIndicators int64
	IndicatorTypes  []LabelCount
	TopCountries    []LabelCount
	TopTags         []LabelCount
	Expiry          ExpiryStats
	TopPulse        *PulseCount
	MonthlyPulses   []MonthCount
	TLPTypes        []TLPTypeCount
	MultiTypePulses []PulseTypeCount
	ExpiringSoon    []ExpiringIndicator
	TopIndustries   []LabelCount
	Samples         []Sample

	Errors map[string]string
}

// Aggregator runs the read-only battery against the store.
type Aggregator struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAggregator constructs an Aggregator backed by GORM.
func NewAggregator(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db, now: time.Now}
}

// Collect executes the battery. A failing query is recorded in the digest
// and the remaining queries still run; only an unreachable store fails the
// whole call.
func (a *Aggregator) Collect(ctx context.Context) (*Digest, error) {
	if a == nil || a.db == nil {
		return nil, fmt.Errorf("digest: nil database handle")
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return nil, fmt.Errorf("digest: acquire connection: %w", err)
	}
	if errPing := sqlDB.PingContext(ctx); errPing != nil {
		return nil, fmt.Errorf("digest: store unreachable: %w", errPing)
	}

	d := &Digest{
		GeneratedAt: a.now().UTC(),
		Errors:      map[string]string{},
	}

	conn := a.db.WithContext(ctx)
	for _, q := range a.battery() {
		if errRun := q.run(conn, d); errRun != nil {
			qErr := &QueryError{Name: q.name, Err: errRun}
			log.WithError(errRun).WithField("query", q.name).Warn("digest query failed")
			d.Errors[q.name] = qErr.Error()
		}
	}
	return d, nil
}

// batteryQuery is one named entry of the battery: a single declarative
// table drives both execution and digest assembly.
type batteryQuery struct {
	name string
	run  func(conn *gorm.DB, d *Digest) error
}

func (a *Aggregator) battery() []batteryQuery {
	now := a.now().UTC()
	return []batteryQuery{
		{"total_pulses", func(conn *gorm.DB, d *Digest) error {
			return conn.Model(&models.Pulse{}).Count(&d.TotalPulses).Error
		}},
		{"total_indicators", func(conn *gorm.DB, d *Digest) error {
			return conn.Model(&models.Indicator{}).Count(&d.TotalIndicators).Error
		}},
		{"indicator_types", func(conn *gorm.DB, d *Digest) error {
			return conn.Model(&models.Indicator{}).
				Select("type AS label, COUNT(*) AS count").
				Group("type").
				Order("count DESC, type ASC").
				Limit(5).
				Scan(&d.IndicatorTypes).Error
		}},
		{"top_countries", func(conn *gorm.DB, d *Digest) error {
			return a.flattenedHistogram(conn, "targeted_countries", &d.TopCountries)
		}},
		{"top_tags", func(conn *gorm.DB, d *Digest) error {
			return a.flattenedHistogram(conn, "tags", &d.TopTags)
		}},
		{"expired_active", func(conn *gorm.DB, d *Digest) error {
			var row struct {
				Expired int64
				Active  int64
			}
			err := conn.Model(&models.Indicator{}).
				Select(`
					COALESCE(SUM(CASE WHEN expiration IS NOT NULL AND expiration < ? THEN 1 ELSE 0 END), 0) AS expired,
					COALESCE(SUM(CASE WHEN expiration IS NULL OR expiration >= ? THEN 1 ELSE 0 END), 0) AS active`,
					now, now).
				Scan(&row).Error
			if err != nil {
				return err
			}
			d.Expiry = expiryStats(row.Expired, row.Active)
			return nil
		}},
		{"top_pulse", func(conn *gorm.DB, d *Digest) error {
			var rows []PulseCount
			err := conn.Raw(`
				SELECT p.id, p.name, COUNT(i.id) AS indicators
				FROM pulses p LEFT JOIN indicators i ON p.id = i.pulse_id
				GROUP BY p.id, p.name
				ORDER BY indicators DESC, p.id ASC
				LIMIT 1`).Scan(&rows).Error
			if err != nil {
				return err
			}
			if len(rows) > 0 {
				d.TopPulse = &rows[0]
			}
			return nil
		}},
		{"pulse_trends", func(conn *gorm.DB, d *Digest) error {
			month := dbutil.MonthBucketExpr(conn, "created")
			return conn.Raw(fmt.Sprintf(`
				SELECT %s AS month, COUNT(*) AS pulses
				FROM pulses
				GROUP BY month
				ORDER BY month DESC
				LIMIT 6`, month)).Scan(&d.MonthlyPulses).Error
		}},
		{"tlp_indicators", func(conn *gorm.DB, d *Digest) error {
			return conn.Raw(`
				SELECT p.tlp, i.type, COUNT(i.id) AS indicators
				FROM pulses p JOIN indicators i ON p.id = i.pulse_id
				WHERE p.tlp IN ('white', 'green', 'amber', 'red')
				GROUP BY p.tlp, i.type
				ORDER BY indicators DESC, p.tlp ASC, i.type ASC
				LIMIT 5`).Scan(&d.TLPTypes).Error
		}},
		{"multi_type_pulses", func(conn *gorm.DB, d *Digest) error {
			return conn.Raw(`
				SELECT p.id, p.name, COUNT(DISTINCT i.type) AS types
				FROM pulses p JOIN indicators i ON p.id = i.pulse_id
				GROUP BY p.id, p.name
				HAVING COUNT(DISTINCT i.type) > 1
				ORDER BY types DESC, p.id ASC
				LIMIT 3`).Scan(&d.MultiTypePulses).Error
		}},
		{"expiring_indicators", func(conn *gorm.DB, d *Digest) error {
			return conn.Raw(`
				SELECT i.type, i.indicator, i.expiration
				FROM indicators i
				WHERE i.expiration IS NOT NULL AND i.expiration BETWEEN ? AND ?
				ORDER BY i.expiration ASC, i.id ASC
				LIMIT 5`, now, now.Add(30*24*time.Hour)).Scan(&d.ExpiringSoon).Error
		}},
		{"top_industries", func(conn *gorm.DB, d *Digest) error {
			return a.flattenedHistogram(conn, "industries", &d.TopIndustries)
		}},
		{"samples", func(conn *gorm.DB, d *Digest) error {
			return conn.Raw(`
				SELECT p.id AS pulse_id, p.name AS pulse_name, p.description AS pulse_description, i.type, i.indicator
				FROM pulses p JOIN indicators i ON p.id = i.pulse_id
				ORDER BY p.id ASC, i.id ASC
				LIMIT 3`).Scan(&d.Samples).Error
		}},
	}
}

// flattenedHistogram counts the elements of a JSON string-array column on
// pulses, top 5 by frequency, ties broken by label.
func (a *Aggregator) flattenedHistogram(conn *gorm.DB, column string, out *[]LabelCount) error {
	sub := dbutil.JSONArrayValuesSubquery(conn, "pulses", column, "label")
	return conn.Raw(fmt.Sprintf(`
		SELECT label, COUNT(*) AS count
		FROM %s AS sub
		GROUP BY label
		ORDER BY count DESC, label ASC
		LIMIT 5`, sub)).Scan(out).Error
}

// expiryStats derives percentages, guarding the empty-store case.
func expiryStats(expired, active int64) ExpiryStats {
	stats := ExpiryStats{Expired: expired, Active: active}
	total := expired + active
	if total > 0 {
		stats.PctExpired = float64(expired) / float64(total) * 100
		stats.PctActive = float64(active) / float64(total) * 100
	}
	return stats
}
