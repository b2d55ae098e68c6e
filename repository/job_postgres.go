package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-job-orchestrator/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobModel is the row layout of the jobs table. Version is bumped on every
// write and guards optimistic updates.
type JobModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Action     string    `gorm:"type:varchar(128);not null;index"`
	State      string    `gorm:"type:varchar(16);not null;index"`
	Progress   jsonColumn
	Result     jsonColumn
	Error      jsonColumn
	Version    int64     `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime:false"`
	StartedAt  *time.Time
	FinishedAt *time.Time
}

func (JobModel) TableName() string {
	return "jobs"
}

func toJobModel(rec *entity.JobRecord) (*JobModel, error) {
	m := &JobModel{
		ID:         rec.ID,
		Action:     rec.Action,
		State:      string(rec.State),
		Result:     jsonColumn(rec.Result),
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}
	if rec.Progress != nil {
		data, err := json.Marshal(rec.Progress)
		if err != nil {
			return nil, err
		}
		m.Progress = data
	}
	if rec.Error != nil {
		data, err := json.Marshal(rec.Error)
		if err != nil {
			return nil, err
		}
		m.Error = data
	}
	return m, nil
}

func (m *JobModel) toRecord() (*entity.JobRecord, error) {
	rec := &entity.JobRecord{
		ID:        m.ID,
		Action:    m.Action,
		State:     entity.JobState(m.State),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	if len(m.Result) > 0 {
		rec.Result = json.RawMessage(append([]byte(nil), m.Result...))
	}
	if len(m.Progress) > 0 {
		var p entity.Progress
		if err := json.Unmarshal(m.Progress, &p); err != nil {
			return nil, fmt.Errorf("failed to decode progress: %w", err)
		}
		rec.Progress = &p
	}
	if len(m.Error) > 0 {
		var e entity.JobError
		if err := json.Unmarshal(m.Error, &e); err != nil {
			return nil, fmt.Errorf("failed to decode job error: %w", err)
		}
		rec.Error = &e
	}
	if m.StartedAt != nil {
		t := m.StartedAt.UTC()
		rec.StartedAt = &t
	}
	if m.FinishedAt != nil {
		t := m.FinishedAt.UTC()
		rec.FinishedAt = &t
	}
	return rec, nil
}

type JobPostgresRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewJobPostgresRepository(db *gorm.DB) *JobPostgresRepository {
	return &JobPostgresRepository{db: db, now: time.Now}
}

func (r *JobPostgresRepository) Migrate() error {
	return r.db.AutoMigrate(&JobModel{})
}

func (r *JobPostgresRepository) Create(ctx context.Context, rec *entity.JobRecord) error {
	m, err := toJobModel(rec)
	if err != nil {
		return fmt.Errorf("failed to encode job record: %w", err)
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return entity.ErrJobAlreadyExists
		}
		return fmt.Errorf("failed to create job record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return entity.ErrJobAlreadyExists
	}
	return nil
}

func (r *JobPostgresRepository) find(ctx context.Context, id uuid.UUID) (*JobModel, error) {
	var m JobModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to read job record: %w", err)
	}
	return &m, nil
}

func (r *JobPostgresRepository) Read(ctx context.Context, id uuid.UUID) (*entity.JobRecord, error) {
	m, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.toRecord()
}

func (r *JobPostgresRepository) CompareAndUpdate(ctx context.Context, id uuid.UUID, t entity.Transition) (*entity.JobRecord, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		current, err := r.find(ctx, id)
		if err != nil {
			return nil, err
		}

		rec, err := current.toRecord()
		if err != nil {
			return nil, err
		}
		if err := rec.Apply(t, r.now()); err != nil {
			return nil, err
		}

		next, err := toJobModel(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to encode job record: %w", err)
		}

		res := r.db.WithContext(ctx).
			Model(&JobModel{}).
			Where("id = ? AND version = ?", id, current.Version).
			Updates(map[string]interface{}{
				"state":       next.State,
				"progress":    next.Progress,
				"result":      next.Result,
				"error":       next.Error,
				"updated_at":  next.UpdatedAt,
				"started_at":  next.StartedAt,
				"finished_at": next.FinishedAt,
				"version":     current.Version + 1,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("failed to update job record: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			return rec, nil
		}
		// another writer bumped the version first; reload and retry
	}

	return nil, fmt.Errorf("job %s: %w", id, errTooMuchContention)
}
