// Package async provides the fixed-size worker pool that runs Search
// Lifecycle and ingest jobs outside the request/command goroutine
// (spec.md §5).
package async

import (
	"sync"
)

// Stats is an immutable snapshot of a Pool's activity, the kind of
// thing a `tesserae status`/health-check surface reports.
type Stats struct {
	Workers   int   `json:"workers"`
	QueueLen  int   `json:"queue_len"`
	QueueCap  int   `json:"queue_cap"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// counters tracks job outcomes across the pool's lifetime. Kept
// separate from Pool itself so Stats() can be read without contending
// on the job-submission path.
type counters struct {
	mu        sync.Mutex
	submitted int64
	completed int64
	failed    int64
}

func (c *counters) recordSubmit() {
	c.mu.Lock()
	c.submitted++
	c.mu.Unlock()
}

func (c *counters) recordDone(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failed++
	} else {
		c.completed++
	}
}

func (c *counters) snapshot() (submitted, completed, failed int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitted, c.completed, c.failed
}
