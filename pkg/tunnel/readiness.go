package tunnel

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Readiness waits until a launched tunnel can carry traffic.
type Readiness interface {
	Wait(ctx context.Context) error
}

// Delay assumes the tunnel is ready after a fixed grace period.
type Delay struct {
	D time.Duration
}

// Wait blocks for the grace period.
func (d Delay) Wait(ctx context.Context) error {
	timer := time.NewTimer(d.D)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const (
	defaultMarkerInterval = 500 * time.Millisecond
	defaultMarkerTimeout  = 60 * time.Second
)

// MarkerFile waits for the tunnel to create a file. The file is checked
// every Interval and whenever the directory reports a change, until
// Timeout expires.
type MarkerFile struct {
	Path     string
	Interval time.Duration
	Timeout  time.Duration
}

// Wait returns nil once Path exists, or ErrReadyTimeout.
func (m MarkerFile) Wait(ctx context.Context) error {
	interval := m.Interval
	if interval <= 0 {
		interval = defaultMarkerInterval
	}
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = defaultMarkerTimeout
	}

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		if watcher.Add(filepath.Dir(m.Path)) == nil {
			events = watcher.Events
			errs = watcher.Errors
		}
	}

	return m.poll(ctx, interval, timeout, events, errs)
}

// poll checks for the marker on every tick and directory event. A watcher
// error drops the event source and polling carries on alone.
func (m MarkerFile) poll(ctx context.Context, interval, timeout time.Duration, events <-chan fsnotify.Event, errs <-chan error) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if exists(m.Path) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if exists(m.Path) {
				return nil
			}
			return ErrReadyTimeout
		case <-ticker.C:
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case <-errs:
			events, errs = nil, nil
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
