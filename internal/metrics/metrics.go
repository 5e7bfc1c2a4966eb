// Package metrics exposes the core data plane's gauge values for
// Prometheus scraping. The core never serves HTTP itself; it registers
// gauges against a caller-owned registry and the caller (cmd/orkad) wires
// promhttp.HandlerFor onto that registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Gauges holds the two values the design calls out: the approximate byte
// size of the current index and its document count.
type Gauges struct {
	IndexBytes prometheus.Gauge
	IndexDocs  prometheus.Gauge
}

// NewGauges registers index_bytes and index_docs against reg and returns
// handles for updating them after every index build.
func NewGauges(reg *prometheus.Registry) *Gauges {
	g := &Gauges{
		IndexBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "index_bytes",
			Help: "Approximate byte size of the current in-memory index.",
		}),
		IndexDocs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "index_docs",
			Help: "Number of documents in the current in-memory index.",
		}),
	}
	reg.MustRegister(g.IndexBytes, g.IndexDocs)
	return g
}

// Set updates both gauges from a freshly built index's Bytes()/Docs().
func (g *Gauges) Set(bytes, docs int) {
	g.IndexBytes.Set(float64(bytes))
	g.IndexDocs.Set(float64(docs))
}
