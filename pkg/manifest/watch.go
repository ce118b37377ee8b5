package manifest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/bootkit/bootkit/pkg/engine"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc receives the reloaded manifest, or the error that loading it produced.
type ChangeFunc func(m *engine.Manifest, err error)

// Watch reloads the manifest whenever the file changes and hands the result
// to fn. It blocks until ctx is cancelled.
//
// fn runs on the calling goroutine, one call at a time. Changes made while
// it runs are picked up once it returns, and Watch never returns while a
// call is in progress.
//
// The parent directory is watched rather than the file so that editors which
// replace the file on save are still noticed.
func Watch(ctx context.Context, path string, debounce time.Duration, fn ChangeFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve manifest path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	log.Info().Str("manifest", abs).Msg("Watching manifest for changes")

	var (
		timer  *time.Timer
		settle <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-settle:
			settle = nil
			if ctx.Err() != nil {
				return nil
			}
			m, err := Load(path)
			fn(m, err)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			log.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Manifest changed")

			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			settle = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}
