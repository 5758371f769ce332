// Package ui implements an interactive terminal browser for the listening history using bubbletea's Elm architecture.
//
// The TUI switches between views:
//  1. [TopView] : most played tracks
//  2. [DailyView] : plays per day, newest first
//  3. [RunView] : live progress of a pipeline run
//  4. [ResultView] : counts of the finished run, or its error
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the pipeline; the lists are reloaded after every run.
//
// Keyboard navigation uses vim-style bindings (j/k, tab, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
