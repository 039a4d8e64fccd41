package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "bhima"
	subsystem = "payroll"
)

// Collector counts payroll run activity. A nil Collector discards updates.
type Collector struct {
	runsStarted     uint64
	runsFailed      uint64
	runsCommitted   uint64
	employeesTotal  uint64
	journalLines    uint64
	totalDurationMs uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) RunStarted() {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.runsStarted, 1)
}

func (c *Collector) RunFailed(duration time.Duration) {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.runsFailed, 1)
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) RunCompleted(employees int, duration time.Duration) {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.employeesTotal, uint64(employees))
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) RunCommitted(lines int) {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.runsCommitted, 1)
	atomic.AddUint64(&c.journalLines, uint64(lines))
}

func (c *Collector) Snapshot() map[string]any {
	if c == nil {
		return map[string]any{}
	}
	started := atomic.LoadUint64(&c.runsStarted)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if started > 0 {
		avg = float64(totalMs) / float64(started)
	}
	return map[string]any{
		"runsStarted":        started,
		"runsFailed":         atomic.LoadUint64(&c.runsFailed),
		"runsCommitted":      atomic.LoadUint64(&c.runsCommitted),
		"employeesEvaluated": atomic.LoadUint64(&c.employeesTotal),
		"journalLinesPosted": atomic.LoadUint64(&c.journalLines),
		"avgRunDurationMs":   avg,
		"totalDurationMs":    totalMs,
	}
}

// WriteTextfile writes the counters in the Prometheus text format, for a
// node_exporter textfile collector to pick up after a batch run.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	registry := prometheus.NewRegistry()
	counters := []struct {
		name, help string
		value      *uint64
	}{
		{"runs_started_total", "Payroll runs started.", &c.runsStarted},
		{"runs_failed_total", "Payroll runs that failed before posting.", &c.runsFailed},
		{"runs_committed_total", "Payroll runs written to the ledger.", &c.runsCommitted},
		{"employees_evaluated_total", "Employee payslips computed.", &c.employeesTotal},
		{"journal_lines_posted_total", "Journal lines written to the ledger.", &c.journalLines},
		{"run_duration_milliseconds_total", "Time spent computing payroll runs.", &c.totalDurationMs},
	}
	for _, counter := range counters {
		value := counter.value
		collector := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      counter.name,
			Help:      counter.help,
		}, func() float64 { return float64(atomic.LoadUint64(value)) })
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return prometheus.WriteToTextfile(path, registry)
}
