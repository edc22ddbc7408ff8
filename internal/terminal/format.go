package terminal

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"hft/internal/schema"
)

func FormatMetrics(m schema.PerformanceMetrics) string {
	return fmt.Sprintf(
		"ingest p50/p99 %.0f/%.0fus | feature %.0f/%.0fus | model %.0f/%.0fus | route %.0f/%.0fus | %.1f snap/s %.2f ord/s | dropped %d timeouts %d rejects %d",
		m.IngestP50Us, m.IngestP99Us,
		m.FeatureP50Us, m.FeatureP99Us,
		m.ModelP50Us, m.ModelP99Us,
		m.RouteP50Us, m.RouteP99Us,
		m.SnapshotsPerSec, m.OrdersPerSec,
		m.DroppedFrames, m.ModelTimeouts, m.OrderRejects,
	)
}

func FormatRisk(r schema.RiskSnapshot) string {
	kill := "off"
	if r.KillSwitchActive {
		kill = "ACTIVE"
	}
	return fmt.Sprintf(
		"%s | positions %d | gross %.2f net %.2f | pnl total %.2f daily %.2f (realized %.2f unrealized %.2f) | var95 %.2f | lev %.2f | kill switch %s",
		stamp(r.TimestampNs), r.NumPositions,
		r.GrossNotional, r.NetNotional,
		r.TotalPnL, r.DailyPnL, r.RealizedPnL, r.UnrealizedPnL,
		r.VaR95, r.MaxLeverage, kill,
	)
}

func FormatAlert(a schema.Alert) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] %s: %s", stamp(a.TimestampNs), a.Level, a.Source, a.Message)
	if len(a.Metadata) != 0 {
		keys := make([]string, 0, len(a.Metadata))
		for k := range a.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, " %s=%s", k, a.Metadata[k])
		}
	}
	return sb.String()
}

// Format renders any value the client decodes.
func Format(v any) string {
	switch x := v.(type) {
	case schema.PerformanceMetrics:
		return FormatMetrics(x)
	case schema.RiskSnapshot:
		return FormatRisk(x)
	case schema.Alert:
		return FormatAlert(x)
	}
	return fmt.Sprint(v)
}

func stamp(ns int64) string {
	if ns == 0 {
		return "--:--:--"
	}
	return time.Unix(0, ns).UTC().Format("15:04:05.000")
}
