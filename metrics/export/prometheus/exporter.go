package prometheus

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	storeAuth "github.com/MrEthical07/storeAuth"
	"github.com/MrEthical07/storeAuth/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() storeAuth.MetricsSnapshot
	AuditDropped() uint64
	Active() int
}

// Exporter renders session metrics in Prometheus text exposition format.
type Exporter struct {
	source metricsSource
}

// NewExporter creates an exporter that reads from provider.
func NewExporter(provider *storeAuth.Provider) *Exporter {
	return &Exporter{source: provider}
}

// NewExporterFromSource creates an exporter over any snapshot source.
func NewExporterFromSource(source metricsSource) *Exporter {
	return &Exporter{source: source}
}

// Handler serves Render at a scrape endpoint.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = io.WriteString(w, p.Render())
	})
}

// Render returns the current metrics. It is empty while metrics are disabled.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(8192)

	for _, def := range internaldefs.CounterDefs {
		header(&b, def.Name, def.Help, "counter")
		fmt.Fprintf(&b, "%s %d\n", def.Name, snapshot.Counters[def.ID])
	}

	for _, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID]))
		header(&b, def.Name, def.Help, "histogram")
		for i, le := range internaldefs.HistogramBounds {
			fmt.Fprintf(&b, "%s_bucket{le=%q} %d\n", def.Name, le, cumulative[i])
		}
		fmt.Fprintf(&b, "%s_count %d\n", def.Name, cumulative[len(cumulative)-1])
		// Buckets carry no sum.
		fmt.Fprintf(&b, "%s_sum 0\n", def.Name)
	}

	header(&b, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	fmt.Fprintf(&b, "%s %d\n", internaldefs.AuditDroppedName, dropped)

	header(&b, internaldefs.ActiveSessionsName, internaldefs.ActiveSessionsHelp, "gauge")
	fmt.Fprintf(&b, "%s %d\n", internaldefs.ActiveSessionsName, p.source.Active())

	return b.String()
}

func header(b *strings.Builder, name, help, kind string) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s %s\n", name, escapeHelp(help), name, kind)
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}
