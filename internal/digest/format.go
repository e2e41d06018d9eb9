package digest

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayout is the human-readable timestamp format used in prompts.
const timestampLayout = "2006-01-02 15:04:05"

// Format renders the digest into the natural-language prompt handed to the
// summarization services. Pure function; failed queries render as an
// inline "unavailable" note instead of their figures.
func Format(d *Digest) string {
	var b strings.Builder

	b.WriteString("Analyze the following threat intelligence data from AlienVault OTX:\n\n")

	writeLine(&b, d, "total_pulses", "Total pulses", func() string {
		return fmt.Sprintf("%d", d.TotalPulses)
	})
	writeLine(&b, d, "total_indicators", "Total indicators", func() string {
		return fmt.Sprintf("%d", d.TotalIndicators)
	})
	writeLine(&b, d, "indicator_types", "Indicator types", func() string {
		return labelCounts(d.IndicatorTypes)
	})
	writeLine(&b, d, "top_countries", "Top 5 targeted countries", func() string {
		return labelCounts(d.TopCountries)
	})
	writeLine(&b, d, "top_tags", "Top 5 tags", func() string {
		return labelCounts(d.TopTags)
	})
	writeLine(&b, d, "expired_active", "Indicators status", func() string {
		return fmt.Sprintf("%.2f%% expired, %.2f%% active", d.Expiry.PctExpired, d.Expiry.PctActive)
	})
	writeLine(&b, d, "top_pulse", "Pulse with most indicators", func() string {
		if d.TopPulse == nil {
			return "none"
		}
		return fmt.Sprintf("'%s' (%d indicators)", d.TopPulse.Name, d.TopPulse.Indicators)
	})
	writeLine(&b, d, "pulse_trends", "Monthly pulse counts", func() string {
		parts := make([]string, 0, len(d.MonthlyPulses))
		for _, m := range d.MonthlyPulses {
			parts = append(parts, fmt.Sprintf("%s: %d", m.Month, m.Pulses))
		}
		return joined(parts)
	})
	writeLine(&b, d, "tlp_indicators", "Indicators by TLP and type", func() string {
		parts := make([]string, 0, len(d.TLPTypes))
		for _, t := range d.TLPTypes {
			parts = append(parts, fmt.Sprintf("%s/%s: %d", t.TLP, t.Type, t.Indicators))
		}
		return joined(parts)
	})
	writeLine(&b, d, "multi_type_pulses", "Pulses with most distinct indicator types", func() string {
		parts := make([]string, 0, len(d.MultiTypePulses))
		for _, p := range d.MultiTypePulses {
			parts = append(parts, fmt.Sprintf("'%s' (%d types)", p.Name, p.Types))
		}
		return joined(parts)
	})
	writeLine(&b, d, "expiring_indicators", "Indicators expiring within 30 days", func() string {
		parts := make([]string, 0, len(d.ExpiringSoon))
		for _, i := range d.ExpiringSoon {
			parts = append(parts, fmt.Sprintf("%s %s (expires %s)", i.Type, i.Indicator, i.Expiration.UTC().Format(timestampLayout)))
		}
		return joined(parts)
	})
	writeLine(&b, d, "top_industries", "Top industries", func() string {
		return labelCounts(d.TopIndustries)
	})

	b.WriteString("\nSample pulses and indicators:\n")
	if msg, failed := d.Errors["samples"]; failed {
		b.WriteString(fmt.Sprintf("unavailable (%s)\n", msg))
	} else if len(d.Samples) == 0 {
		b.WriteString("none\n")
	} else {
		for _, s := range d.Samples {
			b.WriteString(fmt.Sprintf("Pulse: %s\nDescription: %s\nIndicator: %s - %s\n", s.PulseName, s.PulseDescription, s.Type, s.Indicator))
		}
	}

	b.WriteString("\nProvide a summary and key insights based on this data.\n")
	return b.String()
}

// writeLine renders one "- Label: value" line, substituting the recorded
// error marker when that query failed.
func writeLine(b *strings.Builder, d *Digest, query, label string, value func() string) {
	if msg, failed := d.Errors[query]; failed {
		b.WriteString(fmt.Sprintf("- %s: unavailable (%s)\n", label, msg))
		return
	}
	b.WriteString(fmt.Sprintf("- %s: %s\n", label, value()))
}

func labelCounts(rows []LabelCount) string {
	parts := make([]string, 0, len(rows))
	for _, row := range rows {
		parts = append(parts, fmt.Sprintf("%s: %d", row.Label, row.Count))
	}
	return joined(parts)
}

func joined(parts []string) string {
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// FormatGeneratedAt renders the digest timestamp for run reports.
func FormatGeneratedAt(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
