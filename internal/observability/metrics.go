package observability

import (
	"context"
	"sort"
	"sync"
)

// Metrics collects isolation decision metrics.
type Metrics interface {
	RecordDecision(ctx context.Context, labels DecisionLabels)
}

// DecisionLabels contains metric dimensions.
type DecisionLabels struct {
	Decision   string
	Rule       string
	ReportOnly bool
}

// PassThrough labels a request that had no policy attached.
var PassThrough = DecisionLabels{Decision: "pass_through", Rule: "no-policy"}

func (l DecisionLabels) key() string {
	k := l.Decision + "/" + l.Rule
	if l.ReportOnly {
		k += "/report_only"
	}
	return k
}

// DecisionCounters is an in-memory Metrics implementation.
type DecisionCounters struct {
	mu     sync.Mutex
	counts map[string]uint64
}

// NewDecisionCounters creates empty counters.
func NewDecisionCounters() *DecisionCounters {
	return &DecisionCounters{counts: make(map[string]uint64)}
}

// RecordDecision implements Metrics.
func (c *DecisionCounters) RecordDecision(_ context.Context, labels DecisionLabels) {
	c.mu.Lock()
	c.counts[labels.key()]++
	c.mu.Unlock()
}

// Counter is one labelled count.
type Counter struct {
	Key   string `json:"key"`
	Count uint64 `json:"count"`
}

// Snapshot returns the counters sorted by key.
func (c *DecisionCounters) Snapshot() []Counter {
	c.mu.Lock()
	out := make([]Counter, 0, len(c.counts))
	for k, v := range c.counts {
		out = append(out, Counter{Key: k, Count: v})
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Get returns the count for labels.
func (c *DecisionCounters) Get(labels DecisionLabels) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[labels.key()]
}
