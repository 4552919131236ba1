package timeline

import (
	"context"
	"errors"
	"time"

	"github.com/synaptica-ai/timeline/pkg/common/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrRunNotFound = errors.New("load run not found")

// LoadRun is one recorded load attempt.
type LoadRun struct {
	ID         string            `json:"id" gorm:"primaryKey;column:id"`
	State      string            `json:"state" gorm:"column:state;index"`
	Patients   int               `json:"patients" gorm:"column:patients"`
	Warning    string            `json:"warning,omitempty" gorm:"column:warning"`
	Error      string            `json:"error,omitempty" gorm:"column:error"`
	Sources    datatypes.JSONMap `json:"sources" gorm:"column:sources"`
	StartedAt  time.Time         `json:"started_at" gorm:"column:started_at"`
	DurationMS int64             `json:"duration_ms" gorm:"column:duration_ms"`
	CreatedAt  time.Time         `json:"created_at" gorm:"column:created_at"`
}

func (LoadRun) TableName() string {
	return "timeline_load_runs"
}

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&LoadRun{})
}

func (r *RunRepository) Create(ctx context.Context, run *LoadRun) error {
	run.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *RunRepository) Get(ctx context.Context, id string) (*LoadRun, error) {
	var run LoadRun
	result := r.db.WithContext(ctx).First(&run, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	return &run, result.Error
}

// Latest returns the most recent runs, newest first.
func (r *RunRepository) Latest(ctx context.Context, limit int) ([]LoadRun, error) {
	var runs []LoadRun
	err := r.db.WithContext(ctx).Order("started_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}

// NewLoadRun converts an outcome into its stored form.
func NewLoadRun(o Outcome, paths Paths) *LoadRun {
	run := &LoadRun{
		ID:         o.RunID,
		State:      o.State.String(),
		Patients:   o.Patients,
		Warning:    o.Warning,
		StartedAt:  o.Started,
		DurationMS: o.Elapsed.Milliseconds(),
		Sources: datatypes.JSONMap{
			"notes":       paths.Notes,
			"labs":        paths.Labs,
			"medications": paths.Medications,
		},
	}
	if o.Err != nil {
		run.Error = o.Err.Error()
	}
	return run
}

// RunRecorder stores every load attempt. Recording failures are logged and
// never affect the store.
type RunRecorder struct {
	repo  *RunRepository
	paths Paths
}

func NewRunRecorder(repo *RunRepository, paths Paths) *RunRecorder {
	return &RunRecorder{repo: repo, paths: paths}
}

func (r *RunRecorder) ObserveLoad(ctx context.Context, o Outcome) {
	if err := r.repo.Create(ctx, NewLoadRun(o, r.paths)); err != nil {
		logger.Log.WithError(err).WithField("run_id", o.RunID).Warn("failed to record load run")
	}
}
