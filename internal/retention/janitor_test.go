package retention_test

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/agentoven/ragserve/internal/retention"
	"github.com/agentoven/ragserve/internal/store"
	"github.com/agentoven/ragserve/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	rows := []models.InferenceLog{
		{ID: "old-a", Project: "a", Date: now.AddDate(0, 0, -40)},
		{ID: "old-b", Project: "b", Date: now.AddDate(0, 0, -31)},
		{ID: "new-a", Project: "a", Date: now.AddDate(0, 0, -1)},
	}
	for i := range rows {
		require.NoError(t, s.CreateInferenceLog(ctx, &rows[i]))
	}
}

func remaining(t *testing.T, s *store.MemoryStore) []string {
	t.Helper()
	logs, err := s.ListInferenceLogs(context.Background(), "", store.ListFilter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(logs))
	for _, l := range logs {
		ids = append(ids, l.ID)
	}
	return ids
}

func TestRunCycle_ArchivesThenPurges(t *testing.T) {
	s := store.NewMemoryStore("")
	defer s.Close()
	seed(t, s)

	dir := t.TempDir()
	j := retention.NewJanitor(s, 30, time.Hour, retention.NewLocalFileArchiver(dir, true))
	stats := j.RunCycle(context.Background())

	assert.Equal(t, 2, stats.Archived)
	assert.Equal(t, 2, stats.Purged)
	require.Len(t, stats.URIs, 2)
	assert.Equal(t, []string{"new-a"}, remaining(t, s))

	f, err := os.Open(stats.URIs[0])
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	sc := bufio.NewScanner(gz)
	require.True(t, sc.Scan())
	var row models.InferenceLog
	require.NoError(t, json.Unmarshal(sc.Bytes(), &row))
	assert.Equal(t, "old-a", row.ID)
}

func TestRunCycle_PurgesWithoutArchiver(t *testing.T) {
	s := store.NewMemoryStore("")
	defer s.Close()
	seed(t, s)

	stats := retention.NewJanitor(s, 30, time.Hour, nil).RunCycle(context.Background())
	assert.Equal(t, 0, stats.Archived)
	assert.Equal(t, 2, stats.Purged)
	assert.Equal(t, []string{"new-a"}, remaining(t, s))
}

type failingArchiver struct{}

func (failingArchiver) Kind() string { return "broken" }

func (failingArchiver) ArchiveInferenceLogs(context.Context, string, []models.InferenceLog) (string, error) {
	return "", errors.New("disk full")
}

func TestRunCycle_ArchiveFailureKeepsRows(t *testing.T) {
	s := store.NewMemoryStore("")
	defer s.Close()
	seed(t, s)

	stats := retention.NewJanitor(s, 30, time.Hour, failingArchiver{}).RunCycle(context.Background())
	assert.NotEmpty(t, stats.Errors)
	assert.Equal(t, 0, stats.Purged)
	assert.Len(t, remaining(t, s), 3)
}
