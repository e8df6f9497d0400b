package renamer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"mikanarr/internal/alist"
	"mikanarr/internal/feed"
	"mikanarr/internal/logging"
	"mikanarr/internal/services"
	"mikanarr/internal/textutil"
)

const (
	defaultAttempts   = 3
	defaultRetryDelay = 5 * time.Second
	specialsPageSize  = 999
)

// ErrIncompleteResource reports a resource without the season or episode
// needed to build a name. It is never retried.
var ErrIncompleteResource = errors.New("resource info is incomplete")

// Filesystem is the part of the Alist client the renamer uses.
type Filesystem interface {
	ListDir(ctx context.Context, dir string, opts alist.ListOptions) ([]string, error)
	Rename(ctx context.Context, fullPath, newName string) error
}

// Renamer renames finished files according to a format.
type Renamer struct {
	fs       Filesystem
	format   string
	attempts int
	delay    time.Duration
	logger   *slog.Logger
}

// Option configures a Renamer.
type Option func(*Renamer)

// WithRetry overrides the attempt count and the pause between attempts.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(r *Renamer) {
		if attempts > 0 {
			r.attempts = attempts
		}
		if delay >= 0 {
			r.delay = delay
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renamer) {
		r.logger = logger
	}
}

// New validates format and returns a Renamer.
func New(fs Filesystem, format string, opts ...Option) (*Renamer, error) {
	if fs == nil {
		return nil, services.Wrap(services.ErrConfiguration, "renamer", "new", "filesystem required", nil)
	}
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}
	r := &Renamer{fs: fs, format: format, attempts: defaultAttempts, delay: defaultRetryDelay}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "renamer")
	return r, nil
}

// BuildName returns the new file name for oldPath.
func (r *Renamer) BuildName(ctx context.Context, oldPath string, info feed.ResourceInfo) (string, error) {
	if strings.TrimSpace(info.AnimeName) == "" || !info.HasSeason() || !info.HasEpisode() {
		return "", fmt.Errorf("%w: %s (season=%d episode=%d)", ErrIncompleteResource, info.Title, info.Season, info.Episode)
	}
	episode := info.Episode
	if info.Season == 0 {
		entries, err := r.fs.ListDir(ctx, path.Dir(oldPath), alist.ListOptions{PerPage: specialsPageSize, Refresh: true})
		if err != nil {
			return "", fmt.Errorf("count specials: %w", err)
		}
		episode = len(entries)
	}
	name := render(r.format, fields{
		name:     info.AnimeName,
		season:   info.Season,
		episode:  episode,
		fansub:   info.Fansub,
		quality:  info.Quality,
		language: strings.Join(info.Languages, ""),
	})
	if info.Version > 1 {
		name += fmt.Sprintf(" v%d", info.Version)
	}
	name = textutil.SanitizeFileName(name)
	if name == "" {
		return "", fmt.Errorf("%w: format produced an empty name", ErrIncompleteResource)
	}
	return name + path.Ext(oldPath), nil
}

// Rename renames oldPath and returns the new full path. Failures other than
// an incomplete resource are retried.
func (r *Renamer) Rename(ctx context.Context, oldPath string, info feed.ResourceInfo) (string, error) {
	logger := logging.WithContext(ctx, r.logger).With(logging.String("path", oldPath))
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		newName, err := r.BuildName(ctx, oldPath, info)
		if errors.Is(err, ErrIncompleteResource) {
			logging.ErrorWithContext(logger, "rename skipped", "rename_skipped",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the extractor could not resolve season or episode"),
			)
			return "", err
		}
		if err == nil {
			if path.Base(oldPath) == newName {
				return oldPath, nil
			}
			err = r.fs.Rename(ctx, oldPath, newName)
		}
		if err == nil {
			newPath := path.Join(path.Dir(oldPath), newName)
			logger.Info("file renamed", logging.String("new_name", newName))
			return newPath, nil
		}
		lastErr = err
		if attempt == r.attempts {
			break
		}
		logging.WarnWithContext(logger, "rename failed; retrying", "rename_retry",
			logging.Int("attempt", attempt),
			logging.Error(err),
			logging.String(logging.FieldImpact, "file keeps its original name until a retry succeeds"),
		)
		if err := sleep(ctx, r.delay); err != nil {
			return "", err
		}
	}
	logging.ErrorWithContext(logger, "rename failed", "rename_failed",
		logging.Int("attempts", r.attempts),
		logging.Error(lastErr),
		logging.String(logging.FieldErrorHint, "rename the file manually in Alist"),
	)
	return "", fmt.Errorf("rename %s: %w", oldPath, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
