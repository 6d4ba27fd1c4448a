package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/agentoven/ragserve/pkg/models"
	"github.com/rs/zerolog/log"
)

// maxLogs bounds the in-memory accounting log; the oldest rows are dropped.
const maxLogs = 50000

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Projects map[string]*models.Project       `json:"projects"`
	LLMs     map[string]*models.LLMDefinition `json:"llms"`
	Logs     []*models.InferenceLog           `json:"logs"`
	NextID   int64                            `json:"next_id"`
}

// MemoryStore implements Store with in-memory maps. It is the fallback
// when DATABASE_URL is unset (local dev, tests); an optional JSON snapshot
// keeps data across restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]*models.Project       // key: name
	llms     map[string]*models.LLMDefinition // key: name
	logs     []*models.InferenceLog           // append-only, oldest first
	nextID   int64

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals background goroutines to stop
}

// NewMemoryStore creates a new in-memory store.
// If dataDir is non-empty, data is persisted to dataDir/data.json.
func NewMemoryStore(dataDir string) *MemoryStore {
	m := &MemoryStore{
		projects: make(map[string]*models.Project),
		llms:     make(map[string]*models.LLMDefinition),
		logs:     make([]*models.InferenceLog, 0),
		saveCh:   make(chan struct{}, 1),
		doneCh:   make(chan struct{}),
	}

	if dataDir != "" {
		m.snapshotPath = filepath.Join(dataDir, "data.json")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
			m.snapshotPath = ""
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}

	log.Info().
		Str("snapshot", m.snapshotPath).
		Msg("Memory store configured")

	return m
}

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
	}
}

// saveLoop debounces save requests (max 1 write per 500ms).
func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			time.Sleep(500 * time.Millisecond)
			m.saveSnapshot()
		}
	}
}

// saveSnapshot persists all data to disk as JSON.
func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	snap := snapshot{
		Projects: m.projects,
		LLMs:     m.llms,
		Logs:     m.logs,
		NextID:   m.nextID,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to temp file then rename for atomicity
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
		return
	}

	log.Debug().Str("path", m.snapshotPath).Msg("Snapshot saved")
}

// loadSnapshot reads data from disk on startup.
func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("No snapshot file found, starting fresh")
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read snapshot")
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to parse snapshot, starting fresh")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.Projects != nil {
		m.projects = snap.Projects
	}
	if snap.LLMs != nil {
		m.llms = snap.LLMs
	}
	if snap.Logs != nil {
		m.logs = snap.Logs
	}
	m.nextID = snap.NextID

	// Rows written before options were versioned carry version 0.
	upgraded := 0
	for _, p := range m.projects {
		if p.Options.Version < models.ProjectOptionsVersion {
			p.Options.Version = models.ProjectOptionsVersion
			upgraded++
		}
	}

	log.Info().
		Int("projects", len(m.projects)).
		Int("llms", len(m.llms)).
		Int("logs", len(m.logs)).
		Int("options_upgraded", upgraded).
		Str("path", m.snapshotPath).
		Msg("Snapshot loaded")
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close stops background goroutines and forces a final snapshot write.
// Safe to call multiple times (second call is a no-op).
func (m *MemoryStore) Close() error {
	select {
	case <-m.doneCh:
		return nil
	default:
		close(m.doneCh)
	}

	if m.snapshotPath != "" {
		log.Info().Msg("Flushing final snapshot before shutdown...")
		m.saveSnapshot()
	}

	log.Info().Msg("Memory store closed")
	return nil
}

func (m *MemoryStore) Migrate(_ context.Context) error { return nil }

// ── Project Store ───────────────────────────────────────────

func (m *MemoryStore) ListProjects(_ context.Context, team string) ([]models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]models.Project, 0, len(m.projects))
	for _, p := range m.projects {
		if team == "" || p.Team == team || p.Public {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) GetProject(_ context.Context, name string) (*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[name]
	if !ok {
		return nil, &ErrNotFound{Entity: "project", Key: name}
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) CreateProject(_ context.Context, project *models.Project) error {
	m.mu.Lock()
	if _, exists := m.projects[project.Name]; exists {
		m.mu.Unlock()
		return &ErrAlreadyExists{Entity: "project", Key: project.Name}
	}
	m.nextID++
	project.ID = m.nextID
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now
	cp := *project
	m.projects[project.Name] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateProject(_ context.Context, project *models.Project) error {
	m.mu.Lock()
	existing, ok := m.projects[project.Name]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "project", Key: project.Name}
	}
	project.ID = existing.ID
	project.CreatedAt = existing.CreatedAt
	project.UpdatedAt = time.Now().UTC()
	cp := *project
	m.projects[project.Name] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteProject(_ context.Context, name string) error {
	m.mu.Lock()
	if _, ok := m.projects[name]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "project", Key: name}
	}
	delete(m.projects, name)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── LLM Store ───────────────────────────────────────────────

func (m *MemoryStore) ListLLMs(_ context.Context) ([]models.LLMDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]models.LLMDefinition, 0, len(m.llms))
	for _, l := range m.llms {
		result = append(result, *l)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *MemoryStore) GetLLM(_ context.Context, name string) (*models.LLMDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.llms[name]
	if !ok {
		return nil, &ErrNotFound{Entity: "llm", Key: name}
	}
	cp := *l
	return &cp, nil
}

func (m *MemoryStore) UpsertLLM(_ context.Context, llm *models.LLMDefinition) error {
	m.mu.Lock()
	if llm.CreatedAt.IsZero() {
		llm.CreatedAt = time.Now().UTC()
	}
	llm.Dynamic = true
	cp := *llm
	m.llms[llm.Name] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteLLM(_ context.Context, name string) error {
	m.mu.Lock()
	if _, ok := m.llms[name]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "llm", Key: name}
	}
	delete(m.llms, name)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Inference Log Store ─────────────────────────────────────

func (m *MemoryStore) CreateInferenceLog(_ context.Context, entry *models.InferenceLog) error {
	m.mu.Lock()
	cp := *entry
	m.logs = append(m.logs, &cp)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ListInferenceLogs returns the newest logs first.
func (m *MemoryStore) ListInferenceLogs(_ context.Context, project string, filter ListFilter) ([]models.InferenceLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []models.InferenceLog
	skipped := 0
	for i := len(m.logs) - 1; i >= 0; i-- {
		l := m.logs[i]
		if project != "" && l.Project != project {
			continue
		}
		if filter.Since != nil && l.Date.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && !l.Date.Before(*filter.Until) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		result = append(result, *l)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

func (m *MemoryStore) DeleteInferenceLogs(_ context.Context, project string) error {
	m.mu.Lock()
	kept := m.logs[:0]
	for _, l := range m.logs {
		if l.Project != project {
			kept = append(kept, l)
		}
	}
	m.logs = kept
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) PurgeInferenceLogs(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	kept := m.logs[:0]
	for _, l := range m.logs {
		if !l.Date.Before(before) {
			kept = append(kept, l)
		}
	}
	purged := len(m.logs) - len(kept)
	m.logs = kept
	m.mu.Unlock()
	if purged > 0 {
		m.requestSave()
	}
	return purged, nil
}
