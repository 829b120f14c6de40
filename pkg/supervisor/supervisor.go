// Package supervisor owns the full lifecycle of the board link: discovery,
// connection, liveness monitoring and reconnection.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	bledisc "github.com/srg/dartlink/pkg/ble"
	"github.com/srg/dartlink/pkg/connection"
	"github.com/srg/dartlink/pkg/events"
	"github.com/srg/dartlink/pkg/ingest"
	"github.com/srg/dartlink/pkg/metrics"
)

// ErrNotIdle indicates Start was called while the supervisor was running.
var ErrNotIdle = errors.New("supervisor is not idle")

// State is the supervisor's lifecycle phase. There is exactly one live
// supervisor per process; it is the sole owner of this state.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateConnecting
	StateConnected
	StateDisconnected
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Scanner discovers the board.
type Scanner interface {
	ScanWithRetry(ctx context.Context) (*bledisc.Descriptor, error)
}

// Link is one GATT connection to a discovered board.
type Link interface {
	ConnectWithRetry(ctx context.Context) error
	StartNotify(cb connection.NotifyFunc) error
	StopNotify() error
	Disconnect() error
	IsConnected() bool
	Device() bledisc.Descriptor
}

// LinkFactory builds a fresh Link for one discovered device. A new link is
// created per connection attempt since BLE addressing may change between
// scans.
type LinkFactory func(dev bledisc.Descriptor) Link

// Options configures supervisory timing.
type Options struct {
	// PollInterval is how often link liveness is probed while connected.
	PollInterval time.Duration

	// RetryBackoff is the fixed delay before re-entering the scan phase.
	RetryBackoff time.Duration

	// CleanupTimeout bounds teardown during Stop.
	CleanupTimeout time.Duration
}

// Publisher fans supervisor events out to subscribers.
type Publisher interface {
	Publish(topic string, payload any)
}

// Supervisor runs the discovery → connect → monitor → reconnect cycle on its
// own goroutine until stopped. Construct one per process at the composition
// root and pass it by reference.
type Supervisor struct {
	scanner Scanner
	newLink LinkFactory
	queue   *ingest.Queue
	worker  *ingest.Worker
	bus     Publisher
	opts    *Options
	logger  *logrus.Logger

	state atomic.Int32

	runMutex  sync.Mutex
	isRunning bool
	stopChan  chan struct{}
	doneChan  chan struct{}
	cancel    context.CancelFunc

	linkMutex sync.RWMutex
	link      Link

	reconnects atomic.Uint64
}

// New creates a supervisor wired to its collaborators.
func New(scanner Scanner, newLink LinkFactory, queue *ingest.Queue, worker *ingest.Worker,
	bus Publisher, opts *Options, logger *logrus.Logger) *Supervisor {
	if logger == nil {
		logger = logrus.New()
	}

	return &Supervisor{
		scanner: scanner,
		newLink: newLink,
		queue:   queue,
		worker:  worker,
		bus:     bus,
		opts:    opts,
		logger:  logger,
	}
}

// State returns the current lifecycle phase.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev != next {
		s.logger.WithFields(logrus.Fields{
			"from": prev.String(),
			"to":   next.String(),
		}).Debug("Supervisor state change")
	}
}

// Start launches the supervisory loop. Valid only from Idle: a previous loop
// whose Stop timed out and was abandoned still counts as running until its
// goroutine actually exits.
func (s *Supervisor) Start() error {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()

	if s.isRunning {
		return ErrNotIdle
	}
	if s.doneChan != nil {
		select {
		case <-s.doneChan:
		default:
			return ErrNotIdle
		}
	}

	if err := s.worker.Start(); err != nil {
		return fmt.Errorf("failed to start ingest worker: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.isRunning = true

	go s.run(ctx, s.stopChan, s.doneChan)

	s.logger.Info("Supervisor started")
	return nil
}

// Stop requests shutdown from any state, cancels every wait point, and
// performs best-effort cleanup of any active link bounded by the cleanup
// timeout. A cleanup timeout is logged, never raised. Safe to call when not
// running.
func (s *Supervisor) Stop() {
	s.runMutex.Lock()
	if !s.isRunning {
		s.runMutex.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	s.cancel()
	done := s.doneChan
	s.runMutex.Unlock()

	s.logger.Info("Stopping supervisor...")

	select {
	case <-done:
	case <-time.After(s.opts.CleanupTimeout):
		s.logger.WithField("timeout", s.opts.CleanupTimeout).
			Warn("Supervisor cleanup timed out")
	}

	// The worker shares the shutdown signal chain: stopping it here bounds
	// its dequeue wait as well.
	s.worker.Stop(s.opts.CleanupTimeout)
	s.logger.Info("Supervisor stopped")
}

// Reconnects returns how many reconnect cycles have run.
func (s *Supervisor) Reconnects() uint64 {
	return s.reconnects.Load()
}

// Status is a point-in-time snapshot for status surfaces.
type Status struct {
	Running       bool   `json:"running"`
	State         string `json:"state"`
	Connected     bool   `json:"connected"`
	DeviceAddress string `json:"device_address"`
	DeviceName    string `json:"device_name"`
	Reconnects    uint64 `json:"reconnects"`
	QueueDropped  uint64 `json:"queue_dropped"`
}

// Status reports the supervisor's current view of the link.
func (s *Supervisor) Status() Status {
	s.runMutex.Lock()
	running := s.isRunning
	s.runMutex.Unlock()

	st := Status{
		Running:      running,
		State:        s.State().String(),
		Reconnects:   s.reconnects.Load(),
		QueueDropped: s.queue.Dropped(),
	}

	s.linkMutex.RLock()
	if s.link != nil {
		dev := s.link.Device()
		st.Connected = s.link.IsConnected()
		st.DeviceAddress = dev.Address
		st.DeviceName = dev.Name
	}
	s.linkMutex.RUnlock()

	return st
}

// run is the supervisory loop. Each iteration performs one full
// scan, connect, monitor cycle; every wait point observes the stop signal.
// The loop owns its stop/done channels so an abandoned incarnation can never
// observe the channels of a later Start.
func (s *Supervisor) run(ctx context.Context, stopChan <-chan struct{}, doneChan chan<- struct{}) {
	defer close(doneChan)

	for !stopRequested(stopChan) {
		s.setState(StateScanning)

		dev, err := s.scanner.ScanWithRetry(ctx)
		if err != nil {
			if errors.Is(err, bledisc.ErrDeviceNotFound) {
				s.bus.Publish(events.TopicError, events.BLEError{
					Reason:  events.ReasonDeviceNotFound,
					Message: "board not found after all scan attempts",
				})
			}
			if !s.wait(stopChan, s.opts.RetryBackoff) {
				break
			}
			continue
		}

		s.setState(StateConnecting)
		link := s.newLink(*dev)
		s.setLink(link)

		if err := link.ConnectWithRetry(ctx); err != nil {
			s.logger.WithError(err).Error("Board connection failed")
			s.bus.Publish(events.TopicError, events.BLEError{
				Reason:  events.ReasonConnectionFailed,
				Message: fmt.Sprintf("failed to connect to %s", dev.Address),
			})
			s.teardownLink(link)
			// Full rescan next cycle: the address may have changed.
			if !s.wait(stopChan, s.opts.RetryBackoff) {
				break
			}
			continue
		}

		if err := link.StartNotify(s.notifyCallback(*dev)); err != nil {
			s.logger.WithError(err).Error("Failed to start notifications")
			s.bus.Publish(events.TopicError, events.BLEError{
				Reason:  events.ReasonConnectionFailed,
				Message: "failed to start notifications",
			})
			s.teardownLink(link)
			if !s.wait(stopChan, s.opts.RetryBackoff) {
				break
			}
			continue
		}

		s.setState(StateConnected)
		s.bus.Publish(events.TopicConnected, events.Connected{
			Address: dev.Address,
			Name:    dev.Name,
		})

		lost := s.monitor(link, stopChan)
		if lost {
			s.logger.Warn("Board connection lost")
			s.bus.Publish(events.TopicError, events.BLEError{
				Reason:  events.ReasonConnectionLost,
				Message: fmt.Sprintf("lost connection to %s", dev.Address),
			})
		}

		// Cleanup always runs before leaving Connected, stop or not.
		s.teardownLink(link)

		if stopRequested(stopChan) {
			break
		}

		s.setState(StateDisconnected)
		s.reconnects.Add(1)
		metrics.RecordReconnect()

		if !s.wait(stopChan, s.opts.RetryBackoff) {
			break
		}
	}

	s.setState(StateStopping)
	s.setLink(nil)
	s.setState(StateIdle)
}

// notifyCallback builds the transport-side callback for one connection. It
// only performs a non-blocking enqueue; decoding and I/O happen on the worker.
func (s *Supervisor) notifyCallback(dev bledisc.Descriptor) connection.NotifyFunc {
	return func(code byte) {
		s.queue.TryEnqueue(ingest.RawSample{
			Code:          code,
			At:            time.Now(),
			DeviceAddress: dev.Address,
			DeviceName:    dev.Name,
		})
	}
}

// monitor polls link liveness until the link drops (returns true) or stop is
// requested (returns false).
func (s *Supervisor) monitor(link Link, stopChan <-chan struct{}) bool {
	for {
		select {
		case <-stopChan:
			return false
		case <-time.After(s.opts.PollInterval):
			if !link.IsConnected() {
				return true
			}
		}
	}
}

// teardownLink stops notifications and disconnects, best effort: failures are
// logged and swallowed since no further corrective action exists here.
func (s *Supervisor) teardownLink(link Link) {
	if err := link.StopNotify(); err != nil {
		s.logger.WithError(err).Warn("Best-effort StopNotify failed")
	}
	if err := link.Disconnect(); err != nil {
		s.logger.WithError(err).Warn("Best-effort Disconnect failed")
	}
	s.setLink(nil)
}

func (s *Supervisor) setLink(link Link) {
	s.linkMutex.Lock()
	s.link = link
	s.linkMutex.Unlock()
}

// wait sleeps for d unless stop is requested first; returns false on stop.
func (s *Supervisor) wait(stopChan <-chan struct{}, d time.Duration) bool {
	select {
	case <-stopChan:
		return false
	case <-time.After(d):
		return true
	}
}

func stopRequested(stopChan <-chan struct{}) bool {
	select {
	case <-stopChan:
		return true
	default:
		return false
	}
}
