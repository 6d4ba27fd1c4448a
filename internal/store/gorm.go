package store

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"time"

	"github.com/agentoven/ragserve/pkg/models"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ── Rows ────────────────────────────────────────────────────

type projectRow struct {
	ID               int64                                     `gorm:"primaryKey;autoIncrement"`
	Name             string                                    `gorm:"uniqueIndex;size:255;not null"`
	Type             string                                    `gorm:"size:32;not null"`
	LLM              string                                    `gorm:"size:255"`
	Embeddings       string                                    `gorm:"size:255"`
	VectorStore      string                                    `gorm:"size:32"`
	System           string                                    `gorm:"type:text"`
	Censorship       string                                    `gorm:"type:text"`
	Sandboxed        bool
	Guard            string                                    `gorm:"size:255"`
	Options          datatypes.JSONType[models.ProjectOptions] `gorm:"type:jsonb"`
	Entrances        datatypes.JSONSlice[models.Entrance]      `gorm:"type:jsonb"`
	Public           bool
	Team             string                                    `gorm:"size:255;index"`
	HumanName        string                                    `gorm:"size:255"`
	HumanDescription string                                    `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (projectRow) TableName() string { return "projects" }

type llmRow struct {
	Name          string `gorm:"primaryKey;size:255"`
	Class         string `gorm:"size:32"`
	Model         string `gorm:"size:255"`
	BaseURL       string `gorm:"size:512"`
	APIKeyEnv     string `gorm:"size:255"`
	Type          string `gorm:"size:32"`
	Privacy       string `gorm:"size:32"`
	ContextWindow int
	InputCost     float64
	OutputCost    float64
	Description   string `gorm:"type:text"`
	CreatedAt     time.Time
}

func (llmRow) TableName() string { return "llms" }

type inferenceLogRow struct {
	ID           string `gorm:"primaryKey;size:64"`
	Project      string `gorm:"size:255;index"`
	Type         string `gorm:"size:32"`
	LLM          string `gorm:"size:255"`
	Team         string `gorm:"size:255"`
	Question     string `gorm:"type:text"`
	Answer       string `gorm:"type:text"`
	InputTokens  int
	OutputTokens int
	InputCost    float64
	OutputCost   float64
	LatencyMs    int64
	Guard        bool
	Cached       bool
	Date         time.Time `gorm:"index"`
}

func (inferenceLogRow) TableName() string { return "inference_logs" }

// ── GormStore ───────────────────────────────────────────────

// GormStore implements Store on PostgreSQL through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens a PostgreSQL connection pool from a DSN.
func NewGormStore(dsn string, maxConns int) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.New(
			stdlog.New(os.Stdout, "\r\n", stdlog.LstdFlags),
			logger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
				ParameterizedQueries:      true,
			},
		),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info().Int("max_conns", maxConns).Msg("✅ PostgreSQL store connected")
	return &GormStore{db: db}, nil
}

// NewGormStoreFromDB wraps an existing gorm handle.
func NewGormStoreFromDB(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&projectRow{}, &llmRow{}, &inferenceLogRow{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// ── Project Store ───────────────────────────────────────────

func (s *GormStore) ListProjects(ctx context.Context, team string) ([]models.Project, error) {
	var rows []projectRow
	q := s.db.WithContext(ctx).Order("id")
	if team != "" {
		q = q.Where("team = ? OR public = ?", team, true)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	result := make([]models.Project, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toModel())
	}
	return result, nil
}

func (s *GormStore) GetProject(ctx context.Context, name string) (*models.Project, error) {
	var row projectRow
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &ErrNotFound{Entity: "project", Key: name}
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	p := row.toModel()
	return &p, nil
}

func (s *GormStore) CreateProject(ctx context.Context, project *models.Project) error {
	row := projectFromModel(project)
	row.ID = 0
	err := s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &ErrAlreadyExists{Entity: "project", Key: project.Name}
	}
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	project.ID = row.ID
	project.CreatedAt = row.CreatedAt
	project.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *GormStore) UpdateProject(ctx context.Context, project *models.Project) error {
	existing, err := s.GetProject(ctx, project.Name)
	if err != nil {
		return err
	}
	row := projectFromModel(project)
	row.ID = existing.ID
	row.CreatedAt = existing.CreatedAt
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	project.ID = row.ID
	project.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *GormStore) DeleteProject(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&projectRow{})
	if res.Error != nil {
		return fmt.Errorf("delete project: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &ErrNotFound{Entity: "project", Key: name}
	}
	return nil
}

// ── LLM Store ───────────────────────────────────────────────

func (s *GormStore) ListLLMs(ctx context.Context) ([]models.LLMDefinition, error) {
	var rows []llmRow
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list llms: %w", err)
	}
	result := make([]models.LLMDefinition, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toModel())
	}
	return result, nil
}

func (s *GormStore) GetLLM(ctx context.Context, name string) (*models.LLMDefinition, error) {
	var row llmRow
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &ErrNotFound{Entity: "llm", Key: name}
	}
	if err != nil {
		return nil, fmt.Errorf("get llm: %w", err)
	}
	l := row.toModel()
	return &l, nil
}

func (s *GormStore) UpsertLLM(ctx context.Context, llm *models.LLMDefinition) error {
	if llm.CreatedAt.IsZero() {
		llm.CreatedAt = time.Now().UTC()
	}
	row := llmRow{
		Name:          llm.Name,
		Class:         string(llm.Class),
		Model:         llm.Model,
		BaseURL:       llm.BaseURL,
		APIKeyEnv:     llm.APIKeyEnv,
		Type:          string(llm.Type),
		Privacy:       string(llm.Privacy),
		ContextWindow: llm.ContextWindow,
		InputCost:     llm.InputCost,
		OutputCost:    llm.OutputCost,
		Description:   llm.Description,
		CreatedAt:     llm.CreatedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert llm: %w", err)
	}
	llm.Dynamic = true
	return nil
}

func (s *GormStore) DeleteLLM(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&llmRow{})
	if res.Error != nil {
		return fmt.Errorf("delete llm: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &ErrNotFound{Entity: "llm", Key: name}
	}
	return nil
}

// ── Inference Log Store ─────────────────────────────────────

func (s *GormStore) CreateInferenceLog(ctx context.Context, entry *models.InferenceLog) error {
	row := inferenceLogRow{
		ID:           entry.ID,
		Project:      entry.Project,
		Type:         string(entry.Type),
		LLM:          entry.LLM,
		Team:         entry.Team,
		Question:     entry.Question,
		Answer:       entry.Answer,
		InputTokens:  entry.InputTokens,
		OutputTokens: entry.OutputTokens,
		InputCost:    entry.InputCost,
		OutputCost:   entry.OutputCost,
		LatencyMs:    entry.LatencyMs,
		Guard:        entry.Guard,
		Cached:       entry.Cached,
		Date:         entry.Date,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create inference log: %w", err)
	}
	return nil
}

func (s *GormStore) ListInferenceLogs(ctx context.Context, project string, filter ListFilter) ([]models.InferenceLog, error) {
	var rows []inferenceLogRow
	q := s.db.WithContext(ctx).Order("date DESC")
	if project != "" {
		q = q.Where("project = ?", project)
	}
	if filter.Since != nil {
		q = q.Where("date >= ?", *filter.Since)
	}
	if filter.Until != nil {
		q = q.Where("date < ?", *filter.Until)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list inference logs: %w", err)
	}
	result := make([]models.InferenceLog, 0, len(rows))
	for _, r := range rows {
		result = append(result, models.InferenceLog{
			ID:           r.ID,
			Project:      r.Project,
			Type:         models.ProjectType(r.Type),
			LLM:          r.LLM,
			Team:         r.Team,
			Question:     r.Question,
			Answer:       r.Answer,
			InputTokens:  r.InputTokens,
			OutputTokens: r.OutputTokens,
			InputCost:    r.InputCost,
			OutputCost:   r.OutputCost,
			LatencyMs:    r.LatencyMs,
			Guard:        r.Guard,
			Cached:       r.Cached,
			Date:         r.Date,
		})
	}
	return result, nil
}

func (s *GormStore) DeleteInferenceLogs(ctx context.Context, project string) error {
	if err := s.db.WithContext(ctx).Where("project = ?", project).Delete(&inferenceLogRow{}).Error; err != nil {
		return fmt.Errorf("delete inference logs: %w", err)
	}
	return nil
}

func (s *GormStore) PurgeInferenceLogs(ctx context.Context, before time.Time) (int, error) {
	res := s.db.WithContext(ctx).Where("date < ?", before).Delete(&inferenceLogRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge inference logs: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// ── Mapping ─────────────────────────────────────────────────

func projectFromModel(p *models.Project) projectRow {
	return projectRow{
		ID:               p.ID,
		Name:             p.Name,
		Type:             string(p.Type),
		LLM:              p.LLM,
		Embeddings:       p.Embeddings,
		VectorStore:      string(p.VectorStore),
		System:           p.System,
		Censorship:       p.Censorship,
		Sandboxed:        p.Sandboxed,
		Guard:            p.Guard,
		Options:          datatypes.NewJSONType(p.Options),
		Entrances:        datatypes.JSONSlice[models.Entrance](p.Entrances),
		Public:           p.Public,
		Team:             p.Team,
		HumanName:        p.HumanName,
		HumanDescription: p.HumanDescription,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func (r projectRow) toModel() models.Project {
	return models.Project{
		ID:               r.ID,
		Name:             r.Name,
		Type:             models.ProjectType(r.Type),
		LLM:              r.LLM,
		Embeddings:       r.Embeddings,
		VectorStore:      models.VectorStoreBackend(r.VectorStore),
		System:           r.System,
		Censorship:       r.Censorship,
		Sandboxed:        r.Sandboxed,
		Guard:            r.Guard,
		Options:          r.Options.Data(),
		Entrances:        []models.Entrance(r.Entrances),
		Public:           r.Public,
		Team:             r.Team,
		HumanName:        r.HumanName,
		HumanDescription: r.HumanDescription,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func (r llmRow) toModel() models.LLMDefinition {
	return models.LLMDefinition{
		Name:          r.Name,
		Class:         models.LLMClass(r.Class),
		Model:         r.Model,
		BaseURL:       r.BaseURL,
		APIKeyEnv:     r.APIKeyEnv,
		Type:          models.LLMType(r.Type),
		Privacy:       models.Privacy(r.Privacy),
		ContextWindow: r.ContextWindow,
		InputCost:     r.InputCost,
		OutputCost:    r.OutputCost,
		Description:   r.Description,
		Dynamic:       true,
		CreatedAt:     r.CreatedAt,
	}
}
