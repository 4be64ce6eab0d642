package worksheet

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/errprop/internal/logging"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize worksheet watcher")

const (
	defaultDebounce    = 200 * time.Millisecond
	defaultMinInterval = time.Second
)

// Watcher re-runs a callback whenever a worksheet file changes.
//
// The parent directory is watched rather than the file, so editors that
// save by renaming a temporary file over the original are picked up.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	limiter  *rate.Limiter
	logger   *logging.Logger
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets how long the file must be quiet before a re-run.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithMinInterval sets the minimum time between two re-runs.
func WithMinInterval(d time.Duration) WatchOption {
	return func(w *Watcher) { w.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

// WithWatchLogger sets the watcher logger. Without it, Run uses the logger
// carried by its context (logging.WithLogger).
func WithWatchLogger(l *logging.Logger) WatchOption {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher creates a watcher for the worksheet at path.
func NewWatcher(path string, opts ...WatchOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving worksheet path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	w := &Watcher{
		path:     abs,
		watcher:  fsw,
		debounce: defaultDebounce,
		limiter:  rate.NewLimiter(rate.Every(defaultMinInterval), 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run calls fn once, then again after every change to the worksheet, until
// ctx is done. Errors from fn are logged and do not stop the watcher. Run
// closes the watcher before returning.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context) error) error {
	defer w.watcher.Close()

	logger := w.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	logger = logger.Named("watch")

	// The initial run counts against the limiter like any re-run.
	w.limiter.Allow()
	w.invoke(ctx, logger, fn)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			logger.Debug(ctx, "worksheet changed", zap.String("event", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn(ctx, "watcher error", zap.Error(err))

		case <-fire:
			fire = nil
			if err := w.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
			w.invoke(ctx, logger, fn)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create) != 0
}

func (w *Watcher) invoke(ctx context.Context, logger *logging.Logger, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		logger.Warn(ctx, "worksheet run failed", zap.Error(err))
	}
}
