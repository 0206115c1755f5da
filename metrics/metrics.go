// Package metrics exports keeper engine activity as Prometheus metrics. The
// Plugin type hooks into the engine's plugin registry; Handler serves the
// collected series.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/audit"
	"github.com/xraph/keeper/override"
	"github.com/xraph/keeper/plugin"
)

var (
	registry = prometheus.NewRegistry()
	once     sync.Once

	snapshotsResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_snapshots_total",
			Help: "Total number of permission snapshots resolved, by role and cache outcome.",
		},
		[]string{"role", "cached"},
	)
	snapshotLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "keeper_snapshot_eval_seconds",
		Help:    "Time spent resolving a permission snapshot in seconds.",
		Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
	})
	checkDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_check_decisions_total",
			Help: "Total number of single-action checks, by action, outcome and source.",
		},
		[]string{"action", "allowed", "source"},
	)
	ruleChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_rule_changes_total",
			Help: "Total number of override writes.",
		},
		[]string{"space"},
	)
	overrideScopes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "keeper_override_scopes",
			Help: "Current number of categories and rooms carrying rule overrides.",
		},
		[]string{"space", "kind"},
	)
	auditEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keeper_audit_events_total",
			Help: "Total number of moderation audit events recorded, by action.",
		},
		[]string{"action"},
	)
	auditPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keeper_audit_events_purged_total",
		Help: "Total number of audit events removed by the retention job.",
	})
)

// Init registers metrics with the registry once.
func Init() {
	once.Do(func() {
		registry.MustRegister(
			prometheus.NewGoCollector(),
			prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
			snapshotsResolved,
			snapshotLatency,
			checkDecisions,
			ruleChanges,
			overrideScopes,
			auditEvents,
			auditPurged,
		)
	})
}

// Handler exposes the Prometheus metrics endpoint handler.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Compile-time interface checks.
var (
	_ plugin.Plugin           = (*Plugin)(nil)
	_ plugin.AfterSnapshot    = (*Plugin)(nil)
	_ plugin.AfterCheck       = (*Plugin)(nil)
	_ plugin.OverridesChanged = (*Plugin)(nil)
	_ plugin.AuditRecorded    = (*Plugin)(nil)
	_ plugin.AuditPurged      = (*Plugin)(nil)
)

// Plugin records engine activity. Register it with keeper.WithPlugin.
type Plugin struct{}

// NewPlugin registers the collectors and returns the plugin.
func NewPlugin() *Plugin {
	Init()
	return &Plugin{}
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "metrics" }

// OnAfterSnapshot counts a freshly resolved snapshot.
func (p *Plugin) OnAfterSnapshot(_ context.Context, _, result any) error {
	res, ok := result.(*keeper.SnapshotResult)
	if !ok {
		return nil
	}
	snapshotsResolved.WithLabelValues(string(res.Role), strconv.FormatBool(res.Cached)).Inc()
	snapshotLatency.Observe(time.Duration(res.EvalTimeNs).Seconds())
	return nil
}

// OnAfterCheck counts a single-action decision.
func (p *Plugin) OnAfterCheck(_ context.Context, _, result any) error {
	res, ok := result.(*keeper.CheckResult)
	if !ok {
		return nil
	}
	checkDecisions.WithLabelValues(
		string(res.Decision.Action),
		strconv.FormatBool(res.Allowed),
		string(res.Decision.Source),
	).Inc()
	return nil
}

func (p *Plugin) OnOverridesChanged(_ context.Context, o *override.SpaceOverrides) error {
	ruleChanges.WithLabelValues(o.SpaceID).Inc()
	overrideScopes.WithLabelValues(o.SpaceID, "category").Set(float64(len(o.Rules.Categories)))
	overrideScopes.WithLabelValues(o.SpaceID, "room").Set(float64(len(o.Rules.Rooms)))
	return nil
}

func (p *Plugin) OnAuditRecorded(_ context.Context, e *audit.Event) error {
	auditEvents.WithLabelValues(e.Action).Inc()
	return nil
}

func (p *Plugin) OnAuditPurged(_ context.Context, removed int64) error {
	auditPurged.Add(float64(removed))
	return nil
}
