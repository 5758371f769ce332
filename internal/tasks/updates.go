package tasks

import (
	"fmt"

	"github.com/desertthunder/playlog/internal/models"
	"github.com/desertthunder/playlog/internal/repositories"
)

// ProgressUpdate represents a progress event during a pipeline run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	State   models.RunState // State the run just entered
	Step    int             // Position of State in the run sequence
	Total   int             // Number of steps in a successful run
	Message string          // Human-readable message for display
	Data    any             // Optional state-specific data
}

// runSteps is the number of states a successful run passes through after idle.
const runSteps = 4

func stepOf(state models.RunState) int {
	switch state {
	case models.StateFetching:
		return 1
	case models.StateTransforming:
		return 2
	case models.StateLoading:
		return 3
	case models.StateDone:
		return 4
	default:
		return 0
	}
}

func fetchingUpdate(opts RunOptions) ProgressUpdate {
	message := fmt.Sprintf("Fetching up to %d recently played tracks...", opts.Limit)
	if !opts.After.IsZero() {
		message = fmt.Sprintf("Fetching up to %d tracks played after %s...", opts.Limit, opts.After.Format("2006-01-02 15:04:05"))
	}
	return ProgressUpdate{
		State:   models.StateFetching,
		Step:    stepOf(models.StateFetching),
		Total:   runSteps,
		Message: message,
	}
}

func transformingUpdate(fetched int) ProgressUpdate {
	return ProgressUpdate{
		State:   models.StateTransforming,
		Step:    stepOf(models.StateTransforming),
		Total:   runSteps,
		Message: fmt.Sprintf("Normalizing %d play items...", fetched),
	}
}

func loadingUpdate(plays, tracks, artists int) ProgressUpdate {
	return ProgressUpdate{
		State:   models.StateLoading,
		Step:    stepOf(models.StateLoading),
		Total:   runSteps,
		Message: fmt.Sprintf("Appending %d plays, %d tracks, %d artists...", plays, tracks, artists),
	}
}

func doneUpdate(counts repositories.LoadCounts) ProgressUpdate {
	return ProgressUpdate{
		State:   models.StateDone,
		Step:    stepOf(models.StateDone),
		Total:   runSteps,
		Message: fmt.Sprintf("✓ Loaded %d plays, %d tracks, %d artists", counts.Plays, counts.Tracks, counts.Artists),
		Data:    counts,
	}
}

func failedUpdate(err *StageError) ProgressUpdate {
	return ProgressUpdate{
		State:   models.StateFailed,
		Step:    stepOf(err.Stage),
		Total:   runSteps,
		Message: fmt.Sprintf("✗ %v", err),
		Data:    err,
	}
}
