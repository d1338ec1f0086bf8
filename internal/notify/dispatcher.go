package notify

import (
	"log"
	"time"
)

// Dispatcher fans notifications out in fixed-size batches with a pause
// between batches, bounding peak load on the delivery side. It is invoked
// after the triggering HTTP response has been sent and never feeds failures
// back into the request path.
type Dispatcher struct {
	pusher    Pusher
	batchSize int
	batchWait time.Duration
}

// NewDispatcher constructs a Dispatcher. batchSize <= 0 defaults to 10 and
// batchWait < 0 to 100ms.
func NewDispatcher(pusher Pusher, batchSize int, batchWait time.Duration) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 10
	}
	if batchWait < 0 {
		batchWait = 100 * time.Millisecond
	}
	return &Dispatcher{
		pusher:    pusher,
		batchSize: batchSize,
		batchWait: batchWait,
	}
}

// sleep is an indirection so tests can observe pacing without waiting.
var sleep = time.Sleep

// Dispatch delivers all notifications, batch by batch. Per-student failures
// are logged and skipped; they never abort the batch or its siblings.
func (d *Dispatcher) Dispatch(notifications []Notification) {
	for start := 0; start < len(notifications); start += d.batchSize {
		end := start + d.batchSize
		if end > len(notifications) {
			end = len(notifications)
		}
		for _, n := range notifications[start:end] {
			if err := d.pusher.Push(n.StudentID, n); err != nil {
				log.Printf("notify: push to student %s failed: %v", n.StudentID, err)
			}
		}
		if end < len(notifications) {
			sleep(d.batchWait)
		}
	}
}
