package retention

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentoven/ragserve/pkg/models"
	"github.com/rs/zerolog/log"
)

// LocalFileArchiver writes expired rows as JSONL files to a local directory.
//
// Directory structure:
//
//	{basePath}/{project}/inference_logs/2026-02-20T15-04-05Z.jsonl[.gz]
type LocalFileArchiver struct {
	basePath string
	compress bool
}

// NewLocalFileArchiver creates a file-based archiver rooted at basePath.
func NewLocalFileArchiver(basePath string, compress bool) *LocalFileArchiver {
	return &LocalFileArchiver{basePath: basePath, compress: compress}
}

func (a *LocalFileArchiver) Kind() string { return "local" }

func (a *LocalFileArchiver) ArchiveInferenceLogs(_ context.Context, project string, logs []models.InferenceLog) (string, error) {
	dir := filepath.Join(a.basePath, project, "inference_logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	filename := time.Now().UTC().Format("2006-01-02T15-04-05.000Z") + ".jsonl"
	if a.compress {
		filename += ".gz"
	}
	fpath := filepath.Join(dir, filename)

	f, err := os.Create(fpath)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	var gw *gzip.Writer
	if a.compress {
		gw = gzip.NewWriter(f)
		enc = json.NewEncoder(gw)
	}

	for _, l := range logs {
		if err := enc.Encode(l); err != nil {
			return "", fmt.Errorf("encode inference log %s: %w", l.ID, err)
		}
	}
	if gw != nil {
		if err := gw.Close(); err != nil {
			return "", fmt.Errorf("flush archive: %w", err)
		}
	}

	log.Debug().
		Str("path", fpath).
		Int("count", len(logs)).
		Str("project", project).
		Msg("Archived inference logs to local file")

	return fpath, nil
}
