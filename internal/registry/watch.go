package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentoven/ragserve/pkg/models"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// LoadCatalog reads a JSON array of LLM definitions from path into the
// catalog layer.
func (r *Registry) LoadCatalog(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var defs []models.LLMDefinition
	if err := json.Unmarshal(data, &defs); err != nil {
		return fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for i, d := range defs {
		if d.Name == "" || d.Class == "" {
			return fmt.Errorf("catalog entry %d: name and class are required", i)
		}
	}
	r.SetCatalog(defs)
	log.Info().Str("path", path).Int("llms", len(defs)).Msg("LLM catalog loaded")
	return nil
}

// WatchCatalog loads path and reloads it whenever it changes, until ctx is
// cancelled. The parent directory is watched so editors that replace the
// file on save are handled.
func (r *Registry) WatchCatalog(ctx context.Context, path string) error {
	if err := r.LoadCatalog(path); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				// A broken edit keeps the previous catalog in place.
				if err := r.LoadCatalog(path); err != nil {
					log.Warn().Err(err).Str("path", path).Msg("LLM catalog reload failed")
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("LLM catalog watcher error")
			}
		}
	}()
	return nil
}
