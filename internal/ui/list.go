package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/playlog/internal/repositories"
)

var (
	_ list.Item = trackItem{}
	_ list.Item = dayItem{}
)

// trackItem wraps [repositories.TrackPlayCount] to implement [list.Item].
type trackItem struct {
	rank  int
	track repositories.TrackPlayCount
}

func (i trackItem) FilterValue() string { return i.track.TrackName }
func (i trackItem) Title() string {
	name := i.track.TrackName
	if name == "" {
		name = i.track.TrackID
	}
	return fmt.Sprintf("%d. %s", i.rank, name)
}
func (i trackItem) Description() string {
	desc := fmt.Sprintf("%d plays", i.track.PlayCount)
	if i.track.ArtistName != "" {
		desc = fmt.Sprintf("%s • %s", i.track.ArtistName, desc)
	}
	return desc
}

// dayItem wraps [repositories.DailyPlays] to implement [list.Item].
type dayItem struct {
	day repositories.DailyPlays
}

func (i dayItem) FilterValue() string { return i.day.Day }
func (i dayItem) Title() string       { return i.day.Day }
func (i dayItem) Description() string { return fmt.Sprintf("%d plays", i.day.Plays) }

func trackItems(rows []repositories.TrackPlayCount) []list.Item {
	items := make([]list.Item, len(rows))
	for i, row := range rows {
		items[i] = trackItem{rank: i + 1, track: row}
	}
	return items
}

func dayItems(rows []repositories.DailyPlays) []list.Item {
	items := make([]list.Item, len(rows))
	for i, row := range rows {
		items[i] = dayItem{day: row}
	}
	return items
}
