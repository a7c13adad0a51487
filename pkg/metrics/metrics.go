// Package metrics exposes engine and worker pool statistics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/papercomputeco/lamdag/pkg/inspect"
	"github.com/papercomputeco/lamdag/pkg/memo"
	"github.com/papercomputeco/lamdag/pkg/reduce"
	"github.com/papercomputeco/lamdag/pkg/worker"
)

const namespace = "lamdag"

// PoolStats is satisfied by *worker.Pool.
type PoolStats interface {
	Stats() worker.Stats
}

// Collector reads the engine at scrape time, so there is nothing to update
// on the reduction path.
type Collector struct {
	engine *reduce.Engine
	insp   *inspect.Inspector
	pool   PoolStats

	nodes, envs, runs, steps            *prometheus.Desc
	entries, commits, seeds, hits, wait *prometheus.Desc
	states, jobs                        *prometheus.Desc
}

var states = []memo.State{memo.InProgress, memo.Done, memo.BudgetExhausted, memo.Divergent}

// NewCollector collects engine statistics and, when pool is not nil, job
// counters.
func NewCollector(engine *reduce.Engine, pool PoolStats) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}

	return &Collector{
		engine: engine,
		insp:   inspect.New(engine),
		pool:   pool,

		nodes:   desc("nodes", "Live nodes in the node store."),
		envs:    desc("environments", "Environments in the current memo generation."),
		runs:    desc("runs_total", "Reduction runs started."),
		steps:   desc("steps_total", "Beta and lookup steps taken by all runs."),
		entries: desc("memo_entries", "Entries in the memo table."),
		commits: desc("memo_commits", "Results committed to the memo table since the last reset."),
		seeds:   desc("memo_seeds", "Normal forms seeded as their own results since the last reset."),
		hits:    desc("memo_hits", "Lookups answered by a committed result since the last reset."),
		wait:    desc("memo_waits", "Lookups that waited for another run since the last reset."),
		states:  desc("memo_states", "Memo entries by state.", "state"),
		jobs:    desc("jobs_total", "Worker pool jobs by outcome.", "outcome"),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.nodes, c.envs, c.runs, c.steps,
		c.entries, c.commits, c.seeds, c.hits, c.wait,
		c.states, c.jobs,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.engine.Stats()

	gauge := func(d *prometheus.Desc, v int, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), labels...)
	}
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	gauge(c.nodes, s.Nodes)
	gauge(c.envs, s.Envs)
	counter(c.runs, s.Runs)
	counter(c.steps, s.Steps)

	gauge(c.entries, s.Memo.Entries)
	gauge(c.commits, s.Memo.Commits)
	gauge(c.seeds, s.Memo.Seeds)
	gauge(c.hits, s.Memo.Hits)
	gauge(c.wait, s.Memo.Waits)

	progress := c.insp.Progress()
	for _, st := range states {
		gauge(c.states, progress[st], st.String())
	}

	if c.pool != nil {
		p := c.pool.Stats()
		counter(c.jobs, p.Queued, "queued")
		counter(c.jobs, p.Dropped, "dropped")
		counter(c.jobs, p.Completed, "completed")
		counter(c.jobs, p.Failed, "failed")
	}
}

// NewRegistry returns a registry holding c and the Go runtime and process
// collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
