// Package collector aggregates live series observations into cardinality
// sketches that can be frozen into snapshots.
package collector

import (
	"sync"
	"time"

	"github.com/fidde/cardinality_explorer/pkg/hyperloglog"
	"github.com/fidde/cardinality_explorer/pkg/models"
)

// Config holds collector configuration.
type Config struct {
	// Precision of the per-metric, per-label and total sketches.
	Precision uint8

	// PairPrecision of the per label=value pair sketches. Pairs are numerous,
	// so they default to a smaller sketch.
	PairPrecision uint8

	// MaxPairs caps the number of tracked label=value pairs. Zero means no cap.
	MaxPairs int
}

// DefaultConfig returns default collector configuration.
func DefaultConfig() Config {
	return Config{
		Precision:     14,
		PairPrecision: 10,
		MaxPairs:      100_000,
	}
}

// Collector tracks series cardinality. It is safe for concurrent use.
type Collector struct {
	cfg Config

	mu          sync.Mutex
	total       *hyperloglog.Sketch
	metrics     map[string]*hyperloglog.Sketch
	labels      map[string]*hyperloglog.Sketch
	labelValues map[string]*hyperloglog.Sketch
	pairs       map[string]*hyperloglog.Sketch

	observed     int64
	droppedPairs int64
}

// New creates a collector.
func New(cfg Config) *Collector {
	c := &Collector{cfg: cfg}
	c.reset()
	return c
}

func (c *Collector) reset() {
	c.total = hyperloglog.New(c.cfg.Precision)
	c.metrics = make(map[string]*hyperloglog.Sketch)
	c.labels = make(map[string]*hyperloglog.Sketch)
	c.labelValues = make(map[string]*hyperloglog.Sketch)
	c.pairs = make(map[string]*hyperloglog.Sketch)
	c.observed = 0
	c.droppedPairs = 0
}

// Observe records one sample of the series identified by metric and labels.
func (c *Collector) Observe(metric string, labels map[string]string) {
	fp := models.SeriesFingerprint(metric, labels)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.observed++
	c.total.AddHash(fp)
	sketchFor(c.metrics, metric, c.cfg.Precision).AddHash(fp)

	for k, v := range labels {
		sketchFor(c.labels, k, c.cfg.Precision).AddHash(fp)
		sketchFor(c.labelValues, k, c.cfg.Precision).Add(v)

		pair := models.PairName(k, v)
		s, ok := c.pairs[pair]
		if !ok {
			if c.cfg.MaxPairs > 0 && len(c.pairs) >= c.cfg.MaxPairs {
				c.droppedPairs++
				continue
			}
			s = hyperloglog.New(c.cfg.PairPrecision)
			c.pairs[pair] = s
		}
		s.AddHash(fp)
	}

	observationsTotal.Inc()
}

func sketchFor(m map[string]*hyperloglog.Sketch, key string, precision uint8) *hyperloglog.Sketch {
	s, ok := m[key]
	if !ok {
		s = hyperloglog.New(precision)
		m[key] = s
	}
	return s
}

// Snapshot freezes the current estimates into a snapshot with entries
// sorted by name.
func (c *Collector) Snapshot(id string, now time.Time) *models.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := models.NewSnapshot(id, now)
	snap.TotalSeries = int64(c.total.Count())
	snap.Entries[models.KindMetrics] = entries(c.metrics)
	snap.Entries[models.KindLabels] = entries(c.labels)
	snap.Entries[models.KindLabelValues] = entries(c.labelValues)
	snap.Entries[models.KindPairs] = entries(c.pairs)
	snap.SortEntries()

	return snap
}

func entries(m map[string]*hyperloglog.Sketch) []models.Entry {
	out := make([]models.Entry, 0, len(m))
	for name, s := range m {
		out = append(out, models.Entry{Name: name, Value: int64(s.Count())})
	}
	return out
}

// Stats reports collector bookkeeping.
type Stats struct {
	Observed     int64 `json:"observed"`
	Metrics      int   `json:"metrics"`
	Labels       int   `json:"labels"`
	Pairs        int   `json:"pairs"`
	DroppedPairs int64 `json:"dropped_pairs"`
}

// Stats returns current bookkeeping counters.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Observed:     c.observed,
		Metrics:      len(c.metrics),
		Labels:       len(c.labels),
		Pairs:        len(c.pairs),
		DroppedPairs: c.droppedPairs,
	}
}

// Reset discards all observations.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}
