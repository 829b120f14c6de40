// Package ble discovers the dartboard peripheral over Bluetooth LE.
package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
)

// ErrDeviceNotFound is returned when discovery exhausts all attempts without
// seeing a matching device.
var ErrDeviceNotFound = errors.New("device not found")

// Descriptor identifies a discovered peripheral. It is ephemeral: produced by
// one scan, consumed by one connection attempt.
type Descriptor struct {
	Address string
	Name    string
}

// Options configures discovery behavior.
type Options struct {
	// Patterns are matched case-insensitively as substrings of the advertised
	// device name.
	Patterns    []string
	ScanTimeout time.Duration
	RetryMax    int
	RetryDelay  time.Duration
}

// Scanner handles BLE device discovery for the board.
type Scanner struct {
	opts   *Options
	logger *logrus.Logger

	// scanFn wraps ble.Scan so tests can stub the radio
	scanFn func(ctx context.Context, allowDup bool, h ble.AdvHandler, f ble.AdvFilter) error
}

// NewScanner creates a scanner bound to the host BLE device.
func NewScanner(opts *Options, logger *logrus.Logger) (*Scanner, error) {
	if logger == nil {
		logger = logrus.New()
	}

	if err := InitHostDevice(); err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}

	return &Scanner{
		opts:   opts,
		logger: logger,
		scanFn: ble.Scan,
	}, nil
}

// matches reports whether an advertised name matches any configured pattern.
func (s *Scanner) matches(name string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(name)
	for _, p := range s.opts.Patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// ScanOnce performs a single discovery pass bounded by the scan timeout and
// returns the first matching device, or ErrDeviceNotFound.
func (s *Scanner) ScanOnce(ctx context.Context) (*Descriptor, error) {
	s.logger.WithField("timeout", s.opts.ScanTimeout).Info("Scanning for board...")

	scanCtx, cancel := context.WithTimeout(ctx, s.opts.ScanTimeout)
	defer cancel()

	var mu sync.Mutex
	var found *Descriptor

	handler := func(adv ble.Advertisement) {
		name := adv.LocalName()
		if !s.matches(name) {
			return
		}

		mu.Lock()
		if found == nil {
			found = &Descriptor{Address: adv.Addr().String(), Name: name}
			// First match wins; stop the radio early.
			cancel()
		}
		mu.Unlock()
	}

	err := s.scanFn(scanCtx, false, handler, nil)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if found == nil {
		s.logger.Warn("No matching device seen this pass")
		return nil, ErrDeviceNotFound
	}

	s.logger.WithFields(logrus.Fields{
		"device":  found.Name,
		"address": found.Address,
	}).Info("Board discovered")
	return found, nil
}

// ScanWithRetry repeats ScanOnce up to RetryMax attempts with a fixed delay
// between them. Every wait is bounded and cancellable via ctx.
func (s *Scanner) ScanWithRetry(ctx context.Context) (*Descriptor, error) {
	for attempt := 1; attempt <= s.opts.RetryMax; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"max":     s.opts.RetryMax,
		}).Info("Scan attempt")

		dev, err := s.ScanOnce(ctx)
		if err == nil {
			return dev, nil
		}
		if !errors.Is(err, ErrDeviceNotFound) {
			s.logger.WithError(err).Warn("Scan pass failed")
		}

		if attempt < s.opts.RetryMax {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.opts.RetryDelay):
			}
		}
	}

	s.logger.WithField("attempts", s.opts.RetryMax).Error("Device not found after all scan attempts")
	return nil, ErrDeviceNotFound
}
