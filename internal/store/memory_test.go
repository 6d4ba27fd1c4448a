package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentoven/ragserve/internal/store"
	"github.com/agentoven/ragserve/pkg/models"
)

// newTestStore creates a fresh in-memory store backed by a temp dir.
func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s := store.NewMemoryStore(t.TempDir())
	t.Cleanup(func() { s.Close() })
	return s
}

// ─── Project CRUD ────────────────────────────────────────────

func TestCreateAndGetProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &models.Project{Name: "demo", Type: models.ProjectInference, LLM: "llama3", Team: "red"}
	if err := s.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	if p.ID == 0 {
		t.Errorf("CreateProject() did not assign an id")
	}

	got, err := s.GetProject(ctx, "demo")
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if got.Type != models.ProjectInference {
		t.Errorf("GetProject().Type = %q, want %q", got.Type, models.ProjectInference)
	}
	if got.CreatedAt.IsZero() {
		t.Errorf("GetProject().CreatedAt is zero")
	}
}

func TestCreateProject_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateProject(ctx, &models.Project{Name: "dup", Type: models.ProjectInference}); err != nil {
		t.Fatalf("CreateProject() first call error = %v", err)
	}
	err := s.CreateProject(ctx, &models.Project{Name: "dup", Type: models.ProjectAgent})
	var exists *store.ErrAlreadyExists
	if !errors.As(err, &exists) {
		t.Fatalf("CreateProject() second call error = %v, want ErrAlreadyExists", err)
	}
}

func TestListProjects_TeamScope(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreateProject(ctx, &models.Project{Name: "mine", Team: "red"})
	s.CreateProject(ctx, &models.Project{Name: "theirs", Team: "blue"})
	s.CreateProject(ctx, &models.Project{Name: "shared", Team: "blue", Public: true})

	got, err := s.ListProjects(ctx, "red")
	if err != nil {
		t.Fatalf("ListProjects() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListProjects(red) returned %d, want 2", len(got))
	}
	if got[0].Name != "mine" || got[1].Name != "shared" {
		t.Errorf("ListProjects(red) = [%s %s], want [mine shared]", got[0].Name, got[1].Name)
	}

	all, _ := s.ListProjects(ctx, "")
	if len(all) != 3 {
		t.Errorf("ListProjects(\"\") returned %d, want 3", len(all))
	}
}

func TestUpdateProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &models.Project{Name: "edit", Type: models.ProjectInference, System: "old"}
	s.CreateProject(ctx, p)
	id := p.ID

	p.System = "new"
	if err := s.UpdateProject(ctx, p); err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}
	got, _ := s.GetProject(ctx, "edit")
	if got.System != "new" {
		t.Errorf("After update, System = %q, want %q", got.System, "new")
	}
	if got.ID != id {
		t.Errorf("After update, ID = %d, want %d", got.ID, id)
	}

	err := s.UpdateProject(ctx, &models.Project{Name: "ghost"})
	var nf *store.ErrNotFound
	if !errors.As(err, &nf) {
		t.Errorf("UpdateProject(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreateProject(ctx, &models.Project{Name: "gone"})
	if err := s.DeleteProject(ctx, "gone"); err != nil {
		t.Fatalf("DeleteProject() error = %v", err)
	}
	if _, err := s.GetProject(ctx, "gone"); err == nil {
		t.Error("GetProject() after delete should return error")
	}
	if err := s.DeleteProject(ctx, "gone"); err == nil {
		t.Error("DeleteProject() twice should return error")
	}
}

// ─── LLM table ───────────────────────────────────────────────

func TestLLMCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	def := &models.LLMDefinition{Name: "local-mistral", Class: models.LLMClassOllama, Model: "mistral", Type: models.LLMTypeChat}
	if err := s.UpsertLLM(ctx, def); err != nil {
		t.Fatalf("UpsertLLM() error = %v", err)
	}

	got, err := s.GetLLM(ctx, "local-mistral")
	if err != nil {
		t.Fatalf("GetLLM() error = %v", err)
	}
	if !got.Dynamic {
		t.Error("GetLLM().Dynamic = false, want true")
	}

	def.Model = "mistral:7b"
	s.UpsertLLM(ctx, def)
	got, _ = s.GetLLM(ctx, "local-mistral")
	if got.Model != "mistral:7b" {
		t.Errorf("After upsert, Model = %q, want %q", got.Model, "mistral:7b")
	}

	if err := s.DeleteLLM(ctx, "local-mistral"); err != nil {
		t.Fatalf("DeleteLLM() error = %v", err)
	}
	llms, _ := s.ListLLMs(ctx)
	if len(llms) != 0 {
		t.Errorf("After delete, ListLLMs() returned %d, want 0", len(llms))
	}
}

// ─── Inference logs ──────────────────────────────────────────

func TestInferenceLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, project := range []string{"a", "b", "a", "a"} {
		s.CreateInferenceLog(ctx, &models.InferenceLog{
			ID:       string(rune('0' + i)),
			Project:  project,
			Question: "q",
			Date:     base.Add(time.Duration(i) * time.Second),
		})
	}

	logs, err := s.ListInferenceLogs(ctx, "a", store.ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListInferenceLogs() error = %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("ListInferenceLogs() returned %d, want 2", len(logs))
	}
	if logs[0].ID != "3" || logs[1].ID != "2" {
		t.Errorf("ListInferenceLogs() order = [%s %s], want newest first [3 2]", logs[0].ID, logs[1].ID)
	}

	if err := s.DeleteInferenceLogs(ctx, "a"); err != nil {
		t.Fatalf("DeleteInferenceLogs() error = %v", err)
	}
	logs, _ = s.ListInferenceLogs(ctx, "", store.ListFilter{})
	if len(logs) != 1 || logs[0].Project != "b" {
		t.Errorf("After delete, remaining logs = %v, want only project b", logs)
	}
}

// ─── Close / Snapshot ───────────────────────────────────────

func TestCloseFlush(t *testing.T) {
	dir := t.TempDir()
	s := store.NewMemoryStore(dir)

	ctx := context.Background()
	s.CreateProject(ctx, &models.Project{Name: "persist-me", Type: models.ProjectRAG})

	// Close should flush to disk
	s.Close()

	s2 := store.NewMemoryStore(dir)
	defer s2.Close()

	got, err := s2.GetProject(ctx, "persist-me")
	if err != nil {
		t.Fatalf("After reopen, GetProject() error = %v", err)
	}
	if got.Type != models.ProjectRAG {
		t.Errorf("After reopen, Type = %q, want %q", got.Type, models.ProjectRAG)
	}
	if got.Options.Version != models.ProjectOptionsVersion {
		t.Errorf("After reopen, Options.Version = %d, want %d", got.Options.Version, models.ProjectOptionsVersion)
	}

	// A new project after reopen must not reuse the id.
	p := &models.Project{Name: "second"}
	s2.CreateProject(ctx, p)
	if p.ID <= got.ID {
		t.Errorf("Second project ID = %d, want > %d", p.ID, got.ID)
	}
}
