// Package insights implements C12: a uniform registry of small analytic
// capabilities computed over the Store, each reporting its own value,
// trend, and status rather than panicking or propagating an error type
// the HTTP layer would have to special-case.
package insights

import (
	"fmt"
	"sort"
	"time"

	"github.com/josephgoksu/obbywatch/internal/store"
)

// Status mirrors the closed set of health states an insight can report.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Trend is an optional directional hint alongside Value.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Result is the uniform shape every Insight.Calculate returns.
type Result struct {
	Value   any            `json:"value"`
	Trend   Trend          `json:"trend,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Chart   []ChartPoint   `json:"chart,omitempty"`
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
}

// ChartPoint is one renderable (label, value) pair for a trend chart.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Metadata describes an insight for discovery/layout endpoints.
type Metadata struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Config carries per-calculation tuning knobs an insight may read (kept
// loose and insight-specific rather than a fixed struct, since each
// built-in needs different parameters).
type Config map[string]any

// Insight is the uniform capability contract the registry dispatches to.
type Insight interface {
	Metadata() Metadata
	Calculate(ctx CalcContext) Result
}

// CalcContext bundles the inputs every built-in needs.
type CalcContext struct {
	Store  *store.Store
	Start  time.Time
	End    time.Time
	Config Config
}

// errorResult is the uniform way a built-in reports a failure: through
// Result.Status/Message, never a returned error.
func errorResult(err error) Result {
	return Result{Status: StatusError, Message: err.Error()}
}

// Registry holds every registered Insight keyed by id.
type Registry struct {
	insights map[string]Insight
	order    []string
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{insights: make(map[string]Insight)}
}

// Register adds ins, keyed by its own Metadata().ID.
func (r *Registry) Register(ins Insight) {
	id := ins.Metadata().ID
	if _, exists := r.insights[id]; !exists {
		r.order = append(r.order, id)
	}
	r.insights[id] = ins
}

// Available lists every registered insight's metadata, in registration order.
func (r *Registry) Available() []Metadata {
	out := make([]Metadata, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.insights[id].Metadata())
	}
	return out
}

// Calculate dispatches to the named insight. An unknown id reports a
// StatusError Result rather than an error return, matching the registry's
// overall no-throw convention.
func (r *Registry) Calculate(id string, ctx CalcContext) Result {
	ins, ok := r.insights[id]
	if !ok {
		return errorResult(fmt.Errorf("unknown insight %q", id))
	}
	return ins.Calculate(ctx)
}

// RegisterBuiltins wires the standard set of built-in insights.
func RegisterBuiltins(r *Registry) {
	r.Register(&TotalActivityInsight{})
	r.Register(&PeakHourInsight{})
	r.Register(&TrendingFilesInsight{})
	r.Register(&CodeMetricsInsight{})
	r.Register(&StaleTodosInsight{})
	r.Register(&OrphanMentionsInsight{})
}

// diffsInRange fetches diffs via DiffsSince(start) and trims the tail to
// End in application code, the same workaround the batch summarizer uses
// for Store.DiffsSince's lack of an upper bound parameter.
func diffsInRange(st *store.Store, start, end time.Time) ([]store.ContentDiff, error) {
	diffs, err := st.DiffsSince(start)
	if err != nil {
		return nil, err
	}
	if end.IsZero() {
		return diffs, nil
	}
	out := diffs[:0:0]
	for _, d := range diffs {
		if !d.Timestamp.After(end) {
			out = append(out, d)
		}
	}
	return out, nil
}

func sortedKeysByValueDesc(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
