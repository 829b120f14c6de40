// Package ingest moves raw notification samples from the BLE transport
// goroutine to the processing worker through a bounded queue.
package ingest

import (
	"sync/atomic"
	"time"

	"github.com/srg/dartlink/pkg/metrics"
)

// RawSample is one raw notification as seen by the transport callback. It is
// owned by the queue until the worker claims it.
type RawSample struct {
	Code          byte
	At            time.Time
	DeviceAddress string
	DeviceName    string
}

// Queue is a bounded sample queue safe for one producer on the transport
// goroutine and one consumer on the worker goroutine.
type Queue struct {
	samples chan RawSample
	dropped atomic.Uint64
}

// NewQueue creates a queue holding at most capacity samples.
func NewQueue(capacity int) *Queue {
	return &Queue{samples: make(chan RawSample, capacity)}
}

// TryEnqueue pushes a sample without blocking. When the queue is full the
// sample is dropped and counted; this runs on the transport's delivery
// goroutine and must never block or log.
func (q *Queue) TryEnqueue(s RawSample) bool {
	select {
	case q.samples <- s:
		return true
	default:
		q.dropped.Add(1)
		metrics.RecordSampleDropped()
		return false
	}
}

// Samples exposes the consumer side of the queue.
func (q *Queue) Samples() <-chan RawSample {
	return q.samples
}

// Len returns the number of samples currently buffered.
func (q *Queue) Len() int {
	return len(q.samples)
}

// Dropped returns the total number of samples dropped due to overflow.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
