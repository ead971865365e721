package fsm

import (
	"context"

	"github.com/go-faster/errors"
)

// Stage references shipped with the field service data set.
const (
	StageNewRef       = "fieldservice.fsm_stage_new"
	StageCompletedRef = "fieldservice.fsm_stage_completed"
	StageCancelledRef = "fieldservice.fsm_stage_cancelled"
)

// ErrStageNotFound is returned when a stage reference cannot be resolved.
var ErrStageNotFound = errors.New("fsm stage not found")

// Stage is a step of the field service order workflow.
type Stage struct {
	ID       string
	Ref      string
	Name     string
	Sequence int
	IsClosed bool
}

// StageRepository resolves workflow stages.
type StageRepository interface {
	GetByRef(ctx context.Context, ref string) (*Stage, error)
}

// DefaultStages returns the stages every installation starts with.
func DefaultStages() []Stage {
	return []Stage{
		{ID: "stage-new", Ref: StageNewRef, Name: "New", Sequence: 1},
		{ID: "stage-completed", Ref: StageCompletedRef, Name: "Completed", Sequence: 90, IsClosed: true},
		{ID: "stage-cancelled", Ref: StageCancelledRef, Name: "Cancelled", Sequence: 95, IsClosed: true},
	}
}
