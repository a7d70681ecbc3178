package creator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openfroyo/archetype/pkg/engine"
)

// watchDelay collapses bursts of file events into one re-creation.
const watchDelay = 500 * time.Millisecond

// skippedDirs are never watched.
var skippedDirs = map[string]bool{
	"target": true,
	"build":  true,
	".git":   true,
	".idea":  true,
}

// Watch creates the archetype, then re-creates it whenever a file of the
// project changes, until ctx is done. onChange receives the outcome of
// every run, the first one included.
func (c *Creator) Watch(ctx context.Context, req *engine.CreationRequest, onChange func(*engine.CreationResult, error)) error {
	projectDir, err := filepath.Abs(req.ProjectDirectory)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", req.ProjectDirectory, err)
	}
	outputDir, err := outputDirectory(req, projectDir)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	w := &projectWatcher{watcher: watcher, projectDir: projectDir, outputDir: outputDir}
	if err := w.addTree(projectDir); err != nil {
		return fmt.Errorf("watch %s: %w", projectDir, err)
	}

	c.logger.Info().
		Str("project", projectDir).
		Int("directories", len(watcher.WatchList())).
		Msg("Watching project")

	onChange(c.Create(ctx, req))

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						c.logger.Warn().Err(err).Str("path", event.Name).Msg("Failed to watch directory")
					}
				}
			}
			c.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Project file changed")

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDelay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			c.logger.Info().Msg("Re-creating archetype")
			onChange(c.Create(ctx, req))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

type projectWatcher struct {
	watcher    *fsnotify.Watcher
	projectDir string
	outputDir  string
}

// addTree watches dir and every directory below it.
func (w *projectWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.ignored(p) {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
}

// ignored reports whether p is inside the output directory or a build or
// VCS directory.
func (w *projectWatcher) ignored(p string) bool {
	if p == w.outputDir || strings.HasPrefix(p, w.outputDir+string(filepath.Separator)) {
		return true
	}
	rel, err := filepath.Rel(w.projectDir, p)
	if err != nil {
		return true
	}
	for _, elem := range strings.Split(filepath.ToSlash(rel), "/") {
		if skippedDirs[elem] {
			return true
		}
	}
	return false
}
