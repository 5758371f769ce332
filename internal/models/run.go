package models

import (
	"fmt"
	"time"
)

// RunState is a step of the pipeline state machine.
//
//	idle → fetching → transforming → loading → done
//
// Any non-terminal state may move to failed. done and failed are terminal.
type RunState string

const (
	StateIdle         RunState = "idle"
	StateFetching     RunState = "fetching"
	StateTransforming RunState = "transforming"
	StateLoading      RunState = "loading"
	StateDone         RunState = "done"
	StateFailed       RunState = "failed"
)

var nextState = map[RunState]RunState{
	StateIdle:         StateFetching,
	StateFetching:     StateTransforming,
	StateTransforming: StateLoading,
	StateLoading:      StateDone,
}

// Terminal reports whether no further transition is possible.
func (s RunState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether moving from s to next is allowed.
func (s RunState) CanTransition(next RunState) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return nextState[s] == next
}

// PipelineRun is one invocation of the pipeline as recorded in the run log.
type PipelineRun struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	State      RunState   `json:"state"`
	Stage      RunState   `json:"stage,omitempty"` // stage that failed, empty unless State is failed
	Plays      int        `json:"plays"`
	Tracks     int        `json:"tracks"`
	Artists    int        `json:"artists"`
	Error      string     `json:"error,omitempty"`
}

// NewPipelineRun returns an idle run with the given id.
func NewPipelineRun(id string, startedAt time.Time) *PipelineRun {
	return &PipelineRun{ID: id, StartedAt: startedAt, State: StateIdle}
}

// Advance moves the run to next, rejecting transitions the state machine does not allow.
func (r *PipelineRun) Advance(next RunState) error {
	if !r.State.CanTransition(next) {
		return fmt.Errorf("invalid run transition %s → %s", r.State, next)
	}
	r.State = next
	return nil
}

// Fail marks the run failed at its current stage with err.
func (r *PipelineRun) Fail(err error, at time.Time) {
	if r.State.Terminal() {
		return
	}
	r.Stage = r.State
	r.State = StateFailed
	if err != nil {
		r.Error = err.Error()
	}
	r.FinishedAt = &at
}

// Complete moves a loading run to done and stamps the finish time.
func (r *PipelineRun) Complete(at time.Time) error {
	if err := r.Advance(StateDone); err != nil {
		return err
	}
	r.FinishedAt = &at
	return nil
}

// Validate checks the fields required to persist a run.
func (r *PipelineRun) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("run start time is required")
	}
	if r.State == "" {
		return fmt.Errorf("run state is required")
	}
	return nil
}
