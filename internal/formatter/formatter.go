// package formatter renders query results and run log entries as terminal tables or CSV
package formatter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/playlog/internal/models"
	"github.com/desertthunder/playlog/internal/repositories"
)

// Report is a titled table of string cells.
type Report struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RelationCount is the row count of one relation, shown by the status command.
type RelationCount struct {
	Relation string `json:"relation"`
	Rows     int    `json:"rows"`
}

// TopTracksReport lists the most played tracks with their rank.
func TopTracksReport(rows []repositories.TrackPlayCount) Report {
	report := Report{
		Title:   "Top tracks",
		Headers: []string{"#", "Track", "Artist", "Plays", "Track ID"},
	}
	for i, r := range rows {
		report.Rows = append(report.Rows, []string{
			strconv.Itoa(i + 1),
			r.TrackName,
			r.ArtistName,
			strconv.Itoa(r.PlayCount),
			r.TrackID,
		})
	}
	return report
}

// DailyPlaysReport lists plays per calendar day.
func DailyPlaysReport(rows []repositories.DailyPlays) Report {
	report := Report{
		Title:   "Plays per day",
		Headers: []string{"Day", "Plays"},
	}
	for _, r := range rows {
		report.Rows = append(report.Rows, []string{r.Day, strconv.Itoa(r.Plays)})
	}
	return report
}

// RunsReport lists pipeline runs from the run log.
func RunsReport(runs []*models.PipelineRun) Report {
	report := Report{
		Title:   "Pipeline runs",
		Headers: []string{"Started", "State", "Plays", "Tracks", "Artists", "Duration", "Error"},
	}
	for _, run := range runs {
		state := string(run.State)
		if run.State == models.StateFailed && run.Stage != "" {
			state = fmt.Sprintf("%s (%s)", run.State, run.Stage)
		}

		duration := "-"
		if run.FinishedAt != nil {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}

		report.Rows = append(report.Rows, []string{
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			state,
			strconv.Itoa(run.Plays),
			strconv.Itoa(run.Tracks),
			strconv.Itoa(run.Artists),
			duration,
			run.Error,
		})
	}
	return report
}

// StatusReport lists the row count of every relation.
func StatusReport(counts []RelationCount) Report {
	report := Report{
		Title:   "Relations",
		Headers: []string{"Relation", "Rows"},
	}
	for _, c := range counts {
		report.Rows = append(report.Rows, []string{c.Relation, strconv.Itoa(c.Rows)})
	}
	return report
}

// Table renders the report as a bordered terminal table under its title.
func (r Report) Table() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(NewStyle("#626262")).
		Headers(r.Headers...).
		Rows(r.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	return Styles.Title(r.Title) + "\n" + t.String() + "\n"
}

// WriteCSV writes the headers and rows of the report as CSV.
func (r Report) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(r.Headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range r.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}

	return nil
}
