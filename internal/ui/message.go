package ui

import (
	"github.com/desertthunder/playlog/internal/repositories"
	"github.com/desertthunder/playlog/internal/tasks"
)

// historyLoadedMsg carries the query results shown in the list views.
type historyLoadedMsg struct {
	top   []repositories.TrackPlayCount
	daily []repositories.DailyPlays
	err   error
}

type progressUpdateMsg tasks.ProgressUpdate

// runCompleteMsg is sent once the pipeline returns.
type runCompleteMsg struct {
	result *tasks.RunResult
	err    error
}
