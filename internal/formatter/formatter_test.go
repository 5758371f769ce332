package formatter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/playlog/internal/models"
	"github.com/desertthunder/playlog/internal/repositories"
	th "github.com/desertthunder/playlog/internal/testing"
)

var topTracks = []repositories.TrackPlayCount{
	{TrackID: "T1", TrackName: "Song A", ArtistName: "Artist, One", PlayCount: 5},
	{TrackID: "T2", TrackName: "Song B", ArtistName: "Artist Two", PlayCount: 2},
}

func TestReports(t *testing.T) {
	t.Run("TopTracksReport", func(t *testing.T) {
		report := TopTracksReport(topTracks)

		if len(report.Rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(report.Rows))
		}
		want := []string{"1", "Song A", "Artist, One", "5", "T1"}
		for i, cell := range want {
			if report.Rows[0][i] != cell {
				t.Errorf("cell %d: expected %q, got %q", i, cell, report.Rows[0][i])
			}
		}
		if report.Rows[1][0] != "2" {
			t.Errorf("expected rank 2, got %s", report.Rows[1][0])
		}
	})

	t.Run("DailyPlaysReport", func(t *testing.T) {
		report := DailyPlaysReport([]repositories.DailyPlays{{Day: "2024-01-02", Plays: 3}, {Day: "2024-01-01", Plays: 1}})

		if len(report.Rows) != 2 || report.Rows[0][0] != "2024-01-02" || report.Rows[0][1] != "3" {
			t.Errorf("unexpected rows %v", report.Rows)
		}
	})

	t.Run("RunsReport", func(t *testing.T) {
		started := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		finished := started.Add(1500 * time.Millisecond)

		report := RunsReport([]*models.PipelineRun{
			{ID: "r2", StartedAt: started, FinishedAt: &finished, State: models.StateFailed, Stage: models.StateLoading, Plays: 3, Error: "append tracks: schema mismatch"},
			{ID: "r1", StartedAt: started, State: models.StateFetching},
		})

		if report.Rows[0][1] != "failed (loading)" {
			t.Errorf("expected failed stage in state column, got %q", report.Rows[0][1])
		}
		if report.Rows[0][5] != "1.5s" {
			t.Errorf("expected duration 1.5s, got %q", report.Rows[0][5])
		}
		if report.Rows[0][6] != "append tracks: schema mismatch" {
			t.Errorf("expected error column, got %q", report.Rows[0][6])
		}
		if report.Rows[1][5] != "-" {
			t.Errorf("expected placeholder duration for unfinished run, got %q", report.Rows[1][5])
		}
	})

	t.Run("StatusReport", func(t *testing.T) {
		report := StatusReport([]RelationCount{{Relation: "plays", Rows: 10}})
		if report.Rows[0][0] != "plays" || report.Rows[0][1] != "10" {
			t.Errorf("unexpected rows %v", report.Rows)
		}
	})
}

func TestTable(t *testing.T) {
	output := TopTracksReport(topTracks).Table()

	for _, want := range []string{"Top tracks", "Track", "Plays", "Song A", "Artist Two", "T2"} {
		if !strings.Contains(output, want) {
			t.Errorf("table missing %q:\n%s", want, output)
		}
	}

	empty := DailyPlaysReport(nil).Table()
	if !strings.Contains(empty, "Day") {
		t.Errorf("empty table should still render headers:\n%s", empty)
	}
}

func TestWriteCSV(t *testing.T) {
	t.Run("writes headers and quoted rows", func(t *testing.T) {
		var buf bytes.Buffer
		if err := TopTracksReport(topTracks).WriteCSV(&buf); err != nil {
			t.Fatalf("WriteCSV() error = %v", err)
		}

		want := "#,Track,Artist,Plays,Track ID\n1,Song A,\"Artist, One\",5,T1\n2,Song B,Artist Two,2,T2\n"
		if buf.String() != want {
			t.Errorf("unexpected CSV:\n%s", buf.String())
		}
	})

	t.Run("write failure", func(t *testing.T) {
		err := TopTracksReport(topTracks).WriteCSV(&th.FWriter{})
		if err == nil {
			t.Error("expected error from failing writer")
		}
	})
}
