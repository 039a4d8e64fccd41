package metrics

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := New()
	c.RunStarted()
	c.RunCompleted(3, 40*time.Millisecond)
	c.RunStarted()
	c.RunFailed(20 * time.Millisecond)
	c.RunCommitted(12)

	snapshot := c.Snapshot()
	assert.Equal(t, uint64(2), snapshot["runsStarted"])
	assert.Equal(t, uint64(1), snapshot["runsFailed"])
	assert.Equal(t, uint64(1), snapshot["runsCommitted"])
	assert.Equal(t, uint64(3), snapshot["employeesEvaluated"])
	assert.Equal(t, uint64(12), snapshot["journalLinesPosted"])
	assert.Equal(t, float64(30), snapshot["avgRunDurationMs"])
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RunStarted()
	c.RunCompleted(1, time.Second)
	c.RunFailed(time.Second)
	c.RunCommitted(1)
	assert.Empty(t, c.Snapshot())
}

func TestCollectorConcurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RunStarted()
			c.RunCompleted(2, time.Millisecond)
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(50), c.Snapshot()["runsStarted"])
	assert.Equal(t, uint64(100), c.Snapshot()["employeesEvaluated"])
}

func TestWriteTextfile(t *testing.T) {
	c := New()
	c.RunStarted()
	c.RunStarted()
	c.RunCompleted(3, 15*time.Millisecond)
	c.RunCommitted(9)

	path := filepath.Join(t.TempDir(), "payroll.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "bhima_payroll_runs_started_total 2")
	assert.Contains(t, text, "bhima_payroll_employees_evaluated_total 3")
	assert.Contains(t, text, "bhima_payroll_journal_lines_posted_total 9")
	assert.Contains(t, text, "# TYPE bhima_payroll_runs_failed_total counter")
}
