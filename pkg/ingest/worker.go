package ingest

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/dartlink/pkg/dartboard"
	"github.com/srg/dartlink/pkg/events"
	"github.com/srg/dartlink/pkg/metrics"
)

// Storage persists decoded throws. Implementations must be safe for use from
// the worker goroutine.
type Storage interface {
	SaveThrow(t *dartboard.Throw) (int64, error)
}

// Publisher fans events out to subscribers.
type Publisher interface {
	Publish(topic string, payload any)
}

// Worker drains the ingest queue: decode, persist, publish. A failure while
// processing one sample is logged and the loop moves on; a single bad record
// never terminates the worker.
type Worker struct {
	queue  *Queue
	mapper *dartboard.Mapper
	store  Storage
	bus    Publisher
	logger *logrus.Logger

	idleTick time.Duration

	runMutex  sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	doneChan  chan struct{}

	// drops already reported, compared against the queue counter on idle ticks
	reportedDrops uint64
}

// NewWorker creates a worker. idleTick bounds how long the loop waits for a
// sample before re-checking shutdown and drop counters.
func NewWorker(queue *Queue, mapper *dartboard.Mapper, store Storage, bus Publisher, idleTick time.Duration, logger *logrus.Logger) *Worker {
	if logger == nil {
		logger = logrus.New()
	}

	return &Worker{
		queue:    queue,
		mapper:   mapper,
		store:    store,
		bus:      bus,
		idleTick: idleTick,
		logger:   logger,
	}
}

// Start launches the worker loop on its own goroutine.
func (w *Worker) Start() error {
	w.runMutex.Lock()
	defer w.runMutex.Unlock()

	if w.isRunning {
		return fmt.Errorf("worker is already running")
	}

	w.stopChan = make(chan struct{})
	w.doneChan = make(chan struct{})
	w.isRunning = true

	go w.run(w.stopChan, w.doneChan)

	w.logger.Debug("Ingest worker started")
	return nil
}

// Stop signals the loop and waits up to timeout for it to drain its current
// sample. A loop stuck inside a wedged store cannot hold shutdown hostage: an
// expired wait is logged and the goroutine abandoned to finish on its own.
func (w *Worker) Stop(timeout time.Duration) {
	w.runMutex.Lock()
	if !w.isRunning {
		w.runMutex.Unlock()
		return
	}
	w.isRunning = false
	close(w.stopChan)
	done := w.doneChan
	w.runMutex.Unlock()

	select {
	case <-done:
		w.logger.Debug("Ingest worker stopped")
	case <-time.After(timeout):
		w.logger.WithField("timeout", timeout).Warn("Ingest worker stop timed out")
	}
}

// run owns its stop/done channels so a loop abandoned by a timed-out Stop can
// never observe the channels of a later incarnation.
func (w *Worker) run(stopChan <-chan struct{}, doneChan chan<- struct{}) {
	defer close(doneChan)

	for {
		select {
		case <-stopChan:
			return
		case s := <-w.queue.Samples():
			w.process(s)
		case <-time.After(w.idleTick):
			w.reportDrops()
		}
	}
}

// reportDrops logs overflow drops accumulated since the last report. The
// producer side only counts; logging happens here, off the transport path.
func (w *Worker) reportDrops() {
	total := w.queue.Dropped()
	if delta := total - w.reportedDrops; delta > 0 {
		w.logger.WithFields(logrus.Fields{
			"dropped": delta,
			"total":   total,
		}).Warn("Ingest queue overflow, samples dropped")
		w.reportedDrops = total
	}
}

func (w *Worker) process(s RawSample) {
	seg := w.mapper.Lookup(s.Code)
	if !seg.Known() && s.Code != dartboard.PlayerChangeCode {
		metrics.RecordUnknownSegment()
	}

	throw := &dartboard.Throw{
		At:            s.At,
		Code:          s.Code,
		Name:          seg.Name,
		Target:        seg.Target,
		Multiplier:    seg.Multiplier,
		DeviceAddress: s.DeviceAddress,
		DeviceName:    s.DeviceName,
	}
	if score, ok := w.mapper.Score(s.Code); ok {
		throw.Score = &score
	}

	id, err := w.store.SaveThrow(throw)
	if err != nil {
		metrics.RecordProcessingError()
		w.logger.WithError(err).WithField("code", fmt.Sprintf("0x%02x", s.Code)).
			Error("Failed to persist throw")
		return
	}
	throw.ID = id

	// The player-change marker is persisted like any throw so history keeps
	// it, but it is published on its own topic and never as a throw.
	if throw.IsPlayerChange() {
		w.logger.Info("Player change button pressed")
		w.bus.Publish(events.TopicPlayerChange, events.PlayerChange{Code: s.Code, At: s.At})
	} else {
		w.logger.WithFields(logrus.Fields{
			"segment": throw.Name,
			"score":   scoreField(throw.Score),
			"id":      id,
		}).Info("Throw detected")
		w.bus.Publish(events.TopicThrow, throw)
	}

	metrics.RecordSampleProcessed()
}

func scoreField(score *int) any {
	if score == nil {
		return "unknown"
	}
	return *score
}
