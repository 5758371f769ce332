package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/playlog/internal/models"
	"github.com/desertthunder/playlog/internal/shared"
)

// DefaultTopN is the number of tracks [HistoryQueries.TopTracks] returns when n is not positive.
const DefaultTopN = 10

// TrackPlayCount is one row of the most-played report.
type TrackPlayCount struct {
	TrackID    string `json:"track_id"`
	TrackName  string `json:"track_name"`
	ArtistName string `json:"artist_name"`
	PlayCount  int    `json:"play_count"`
}

// DailyPlays is one row of the plays-per-day report.
type DailyPlays struct {
	Day   string `json:"day"` // YYYY-MM-DD
	Plays int    `json:"plays"`
}

// HistoryQueries runs read-only aggregate reports over the stored history.
type HistoryQueries struct {
	db *sql.DB
}

// NewHistoryQueries creates a new HistoryQueries with the given database connection
func NewHistoryQueries(db *sql.DB) *HistoryQueries {
	return &HistoryQueries{db: db}
}

// Dimension rows may repeat across runs because loads are append-only, so names are
// joined through one row per key to keep play counts exact. The two %s are the track
// and artist name sources.
const topTracksQuery = `
	SELECT p.track_id,
	       COALESCE(MAX(t.track_name), '') AS track_name,
	       COALESCE(MAX(a.artist_name), '') AS artist_name,
	       COUNT(*) AS play_count
	FROM plays p
	LEFT JOIN (%s) t ON t.track_id = p.track_id
	LEFT JOIN (%s) a ON a.artist_id = p.artist_id
	GROUP BY p.track_id
	ORDER BY play_count DESC, p.track_id ASC
	LIMIT ?
`

const (
	trackNames    = `SELECT track_id, MAX(track_name) AS track_name FROM tracks GROUP BY track_id`
	noTrackNames  = `SELECT NULL AS track_id, NULL AS track_name WHERE 0`
	artistNames   = `SELECT artist_id, MAX(artist_name) AS artist_name FROM artists GROUP BY artist_id`
	noArtistNames = `SELECT NULL AS artist_id, NULL AS artist_name WHERE 0`
)

// played_at mixes precisions and offsets, so text order is not time order.
const latestPlayQuery = `
	SELECT played_at FROM plays
	WHERE julianday(played_at) IS NOT NULL
	ORDER BY julianday(played_at) DESC, played_at DESC
	LIMIT 1
`

const playsPerDayQuery = `
	SELECT DATE(played_at) AS day, COUNT(*) AS plays
	FROM plays
	GROUP BY day
	ORDER BY day DESC
`

// TopTracks returns the n most played tracks with their names and primary artist, most played first.
//
// Ties are ordered by track id.
func (q *HistoryQueries) TopTracks(ctx context.Context, n int) ([]TrackPlayCount, error) {
	if n <= 0 {
		n = DefaultTopN
	}

	if err := q.requireRelations(ctx, models.PlaysSchema); err != nil {
		return nil, err
	}

	tracks, err := q.nameSource(ctx, models.TracksSchema, trackNames, noTrackNames)
	if err != nil {
		return nil, err
	}
	artists, err := q.nameSource(ctx, models.ArtistsSchema, artistNames, noArtistNames)
	if err != nil {
		return nil, err
	}

	rows, err := q.db.QueryContext(ctx, fmt.Sprintf(topTracksQuery, tracks, artists), n)
	if err != nil {
		return nil, fmt.Errorf("failed to query top tracks: %w", err)
	}
	defer rows.Close()

	results := []TrackPlayCount{}
	for rows.Next() {
		var r TrackPlayCount
		if err := rows.Scan(&r.TrackID, &r.TrackName, &r.ArtistName, &r.PlayCount); err != nil {
			return nil, fmt.Errorf("failed to scan top track: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return results, nil
}

// PlaysPerDay returns the number of plays per calendar date of played_at, newest date first.
func (q *HistoryQueries) PlaysPerDay(ctx context.Context) ([]DailyPlays, error) {
	if err := q.requireRelations(ctx, models.PlaysSchema); err != nil {
		return nil, err
	}

	rows, err := q.db.QueryContext(ctx, playsPerDayQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query plays per day: %w", err)
	}
	defer rows.Close()

	results := []DailyPlays{}
	for rows.Next() {
		var (
			day   sql.NullString
			plays int
		)
		if err := rows.Scan(&day, &plays); err != nil {
			return nil, fmt.Errorf("failed to scan daily plays: %w", err)
		}
		results = append(results, DailyPlays{Day: day.String, Plays: plays})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return results, nil
}

// LatestPlayedAt returns the most recent played_at in the store.
// The boolean is false when no plays have been recorded.
func (q *HistoryQueries) LatestPlayedAt(ctx context.Context) (time.Time, bool, error) {
	columns, err := tableColumns(ctx, q.db, models.PlaysSchema.Relation)
	if err != nil {
		return time.Time{}, false, err
	}
	if len(columns) == 0 {
		return time.Time{}, false, nil
	}

	var latest sql.NullString
	err = q.db.QueryRowContext(ctx, latestPlayQuery).Scan(&latest)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest play: %w", err)
	}
	if !latest.Valid || latest.String == "" {
		return time.Time{}, false, nil
	}

	t, err := time.Parse(time.RFC3339Nano, latest.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse latest played_at %q: %w", latest.String, err)
	}
	return t, true, nil
}

// nameSource returns present when the dimension relation exists and absent otherwise,
// so plays still count before their names have been loaded.
func (q *HistoryQueries) nameSource(ctx context.Context, schema models.Schema, present, absent string) (string, error) {
	columns, err := tableColumns(ctx, q.db, schema.Relation)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	if len(columns) == 0 {
		return absent, nil
	}
	return present, nil
}

func (q *HistoryQueries) requireRelations(ctx context.Context, schemas ...models.Schema) error {
	for _, schema := range schemas {
		columns, err := tableColumns(ctx, q.db, schema.Relation)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
		}
		if len(columns) == 0 {
			return fmt.Errorf("%w: relation %s does not exist, run the pipeline first", shared.ErrStoreUnavailable, schema.Relation)
		}
	}
	return nil
}
