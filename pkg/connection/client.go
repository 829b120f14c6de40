// Package connection owns the single GATT link to the dartboard: connect,
// throw-notification subscription, liveness probing, teardown.
package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	bledisc "github.com/srg/dartlink/pkg/ble"
)

// NotifyFunc receives the segment code of each valid throw notification. It
// runs on the BLE transport's delivery goroutine and must return immediately;
// it must never block or perform I/O.
type NotifyFunc func(code byte)

// Options configures the board link.
type Options struct {
	// NotifyCharUUID is the characteristic carrying throw notifications.
	NotifyCharUUID string

	ConnectTimeout time.Duration
	RetryMax       int
	RetryDelay     time.Duration
}

// Client wraps one GATT link to a discovered board.
type Client struct {
	device bledisc.Descriptor
	opts   *Options
	logger *logrus.Logger

	connMutex   sync.RWMutex
	client      ble.Client
	notifyChar  *ble.Characteristic
	isConnected bool
	notifying   bool
}

// NewClient creates a client for one discovered device. Each connection
// attempt consumes the descriptor produced by the scanner.
func NewClient(device bledisc.Descriptor, opts *Options, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}

	return &Client{
		device: device,
		opts:   opts,
		logger: logger,
	}
}

// Device returns the descriptor this client is bound to.
func (c *Client) Device() bledisc.Descriptor {
	return c.device
}

// Connect establishes the GATT link and locates the throw-notification
// characteristic, bounded by the connect timeout.
func (c *Client) Connect(ctx context.Context) error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.isConnected {
		return ErrAlreadyConnected
	}

	charUUID, err := ble.Parse(c.opts.NotifyCharUUID)
	if err != nil {
		return fmt.Errorf("invalid notify characteristic UUID %q: %w", c.opts.NotifyCharUUID, err)
	}

	// The host adapter is opened once per process and shared with discovery;
	// reconnect cycles reuse it rather than reopening the HCI socket.
	if err := bledisc.InitHostDevice(); err != nil {
		return fmt.Errorf("failed to init BLE device: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"device":  c.device.Name,
		"address": c.device.Address,
		"timeout": c.opts.ConnectTimeout,
	}).Info("Connecting to board...")

	connCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	client, err := ble.Dial(connCtx, ble.NewAddr(c.device.Address))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.device.Address, err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		client.CancelConnection()
		return fmt.Errorf("failed to discover profile: %w", err)
	}

	var notifyChar *ble.Characteristic
	for _, svc := range profile.Services {
		for _, char := range svc.Characteristics {
			if char.UUID.Equal(charUUID) {
				notifyChar = char
				break
			}
		}
		if notifyChar != nil {
			break
		}
	}

	if notifyChar == nil {
		client.CancelConnection()
		return fmt.Errorf("notify characteristic %s not found on device", c.opts.NotifyCharUUID)
	}

	c.client = client
	c.notifyChar = notifyChar
	c.isConnected = true

	c.logger.WithFields(logrus.Fields{
		"device":   c.device.Name,
		"services": len(profile.Services),
	}).Info("Board connected")
	return nil
}

// ConnectWithRetry repeats Connect up to RetryMax attempts with a fixed delay
// between them; every wait is bounded and cancellable via ctx.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	var lastErr error

	for attempt := 1; attempt <= c.opts.RetryMax; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"max":     c.opts.RetryMax,
		}).Info("Connect attempt")

		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		c.logger.WithError(err).Warn("Connect attempt failed")

		if attempt < c.opts.RetryMax {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.opts.RetryDelay):
			}
		}
	}

	c.logger.WithField("attempts", c.opts.RetryMax).Error("All connect attempts failed")
	if lastErr != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, lastErr)
	}
	return ErrConnectionFailed
}

// StartNotify subscribes to throw notifications. Malformed payloads are
// dropped with a diagnostic; valid ones hand their segment code to cb on the
// transport goroutine.
func (c *Client) StartNotify(cb NotifyFunc) error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if !c.isConnected || c.client == nil {
		return ErrNotConnected
	}

	handler := func(data []byte) {
		code, ok := extractCode(data)
		if !ok {
			c.logger.WithFields(logrus.Fields{
				"bytes":    len(data),
				"expected": FrameSize,
			}).Warn("Dropping notification of unexpected size")
			return
		}
		cb(code)
	}

	if err := c.client.Subscribe(c.notifyChar, false, handler); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.opts.NotifyCharUUID, err)
	}

	c.notifying = true
	c.logger.WithField("characteristic", c.opts.NotifyCharUUID).Info("Notifications started")
	return nil
}

// StopNotify unsubscribes from throw notifications. Best effort: it runs
// during cleanup, so failures are logged and returned but carry no further
// corrective action.
func (c *Client) StopNotify() error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if !c.notifying || c.client == nil {
		return nil
	}
	c.notifying = false

	if err := c.client.Unsubscribe(c.notifyChar, false); err != nil {
		c.logger.WithError(err).Warn("Failed to stop notifications")
		return err
	}

	c.logger.Info("Notifications stopped")
	return nil
}

// Disconnect tears the link down. Already-disconnected clients are a no-op.
func (c *Client) Disconnect() error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.client == nil || !c.isConnected {
		c.logger.Debug("Disconnect called but already disconnected")
		return nil
	}

	err := c.client.CancelConnection()
	c.client = nil
	c.notifyChar = nil
	c.isConnected = false
	c.notifying = false

	if err != nil {
		c.logger.WithError(err).Warn("Board disconnected with errors")
		return err
	}

	c.logger.Info("Board disconnected")
	return nil
}

// IsConnected is a point-in-time liveness probe of the underlying link, not a
// cached flag: it also consults the transport's disconnect signal when the
// platform client exposes one.
func (c *Client) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()

	if c.client == nil || !c.isConnected {
		return false
	}

	// Not all go-ble platform clients expose Disconnected().
	if probe, ok := c.client.(interface{ Disconnected() <-chan struct{} }); ok {
		select {
		case <-probe.Disconnected():
			return false
		default:
		}
	}

	return true
}
