// Package watch runs the single-owner poll loop over the change log. One
// watcher per deployment: it holds a file lock, remembers the last change
// id it saw across restarts, and optionally sweeps completed messages on a
// cron schedule. Push fan-out (websockets etc.) layers on top of OnChange.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	fileatomic "github.com/natefinch/atomic"
	"github.com/robfig/cron/v3"

	"github.com/rcliao/agent-mail/internal/mailbox"
)

// Options configures a Watcher.
type Options struct {
	Interval  time.Duration
	StatePath string
	LockPath  string
	// RetentionSchedule is a standard cron spec; empty disables the sweep.
	RetentionSchedule string
	RetentionArchived bool
	// OnChange is invoked with the newest change id each time the log
	// advances. Optional.
	OnChange func(newestID int64)
}

// Watcher polls the change log on a fixed interval.
type Watcher struct {
	engine   *mailbox.Engine
	opts     Options
	lock     *flock.Flock
	lastSeen atomic.Int64
}

// New prepares a watcher and takes the ownership lock. Returns an error if
// another watcher already holds it.
func New(engine *mailbox.Engine, opts Options) (*Watcher, error) {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}

	if err := os.MkdirAll(filepath.Dir(opts.LockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(opts.LockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire watch lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another watcher owns %s", opts.LockPath)
	}

	w := &Watcher{engine: engine, opts: opts, lock: lock}
	w.lastSeen.Store(w.loadState())
	return w, nil
}

// Run polls until the context is cancelled, releasing the lock on the way
// out.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.lock.Unlock()

	var c *cron.Cron
	if w.opts.RetentionSchedule != "" {
		if _, err := cron.ParseStandard(w.opts.RetentionSchedule); err != nil {
			return fmt.Errorf("retention schedule: %w", err)
		}
		c = cron.New()
		c.AddFunc(w.opts.RetentionSchedule, func() {
			n, err := w.engine.DeleteCompleted(ctx, w.opts.RetentionArchived)
			if err != nil {
				slog.Error("retention sweep failed", "error", err)
				return
			}
			if n > 0 {
				slog.Info("retention sweep", "purged", n)
			}
		})
		c.Start()
		defer c.Stop()
	}

	slog.Info("watching for changes", "interval", w.opts.Interval, "last_seen", w.LastSeen())

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.poll(ctx); err != nil {
				slog.Warn("poll failed", "error", err)
			}
		}
	}
}

func (w *Watcher) poll(ctx context.Context) error {
	last := w.LastSeen()
	changed, newest, err := w.engine.PollChanges(ctx, last)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	slog.Info("change log advanced", "from", last, "to", newest)
	w.lastSeen.Store(newest)
	w.saveState(newest)
	if w.opts.OnChange != nil {
		w.opts.OnChange(newest)
	}
	return nil
}

// LastSeen returns the newest change id the watcher has observed.
func (w *Watcher) LastSeen() int64 {
	return w.lastSeen.Load()
}

func (w *Watcher) loadState() int64 {
	b, err := os.ReadFile(w.opts.StatePath)
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (w *Watcher) saveState(id int64) {
	if w.opts.StatePath == "" {
		return
	}
	if err := fileatomic.WriteFile(w.opts.StatePath, strings.NewReader(strconv.FormatInt(id, 10))); err != nil {
		slog.Warn("persist watch state failed", "path", w.opts.StatePath, "error", err)
	}
}
