package ledger

import (
	"log/slog"
	"time"

	"gagyebu/internal/importer"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger; nil keeps slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNotifier registers a mutation listener. Multiple notifiers are
// called in registration order.
func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		if n != nil {
			s.notifiers = append(s.notifiers, n)
		}
	}
}

// WithIDFunc replaces the identifier generator used for records without an id.
func WithIDFunc(f importer.IDFunc) Option {
	return func(s *Store) {
		if f != nil {
			s.newID = f
		}
	}
}

// WithClock sets the time source for the default selected month and
// change timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}
