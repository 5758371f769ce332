// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/playlog/internal/models"
	"github.com/desertthunder/playlog/internal/repositories"
	"github.com/desertthunder/playlog/internal/transform"
)

// MockProvider is a test double for a listening history provider.
type MockProvider struct {
	Items []models.PlayItem
	Err   error

	Calls     int
	LastLimit int
	LastAfter time.Time
}

func (m *MockProvider) RecentlyPlayed(ctx context.Context, limit int, after time.Time) ([]models.PlayItem, error) {
	m.Calls++
	m.LastLimit = limit
	m.LastAfter = after
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Items, nil
}

// MockLoader records appended batches and returns Counts and Err.
//
// When Counts is zero and Err is nil it reports the batch sizes.
type MockLoader struct {
	Counts  repositories.LoadCounts
	Err     error
	Batches []*transform.Batch
}

func (m *MockLoader) AppendBatch(ctx context.Context, batch *transform.Batch) (repositories.LoadCounts, error) {
	m.Batches = append(m.Batches, batch)
	if m.Err != nil || m.Counts != (repositories.LoadCounts{}) {
		return m.Counts, m.Err
	}
	plays, tracks, artists := batch.Counts()
	return repositories.LoadCounts{Plays: plays, Tracks: tracks, Artists: artists}, nil
}

// MockRecorder keeps a copy of every run passed to Start and Finish.
type MockRecorder struct {
	mu        sync.Mutex
	Started   []models.PipelineRun
	Finished  []models.PipelineRun
	StartErr  error
	FinishErr error
}

func (m *MockRecorder) Start(ctx context.Context, run *models.PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Started = append(m.Started, *run)
	return m.StartErr
}

func (m *MockRecorder) Finish(ctx context.Context, run *models.PipelineRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Finished = append(m.Finished, *run)
	return m.FinishErr
}

// PlayItem builds a well-formed play item for tests.
func PlayItem(playedAt, trackID, artistID string) models.PlayItem {
	duration := 180000
	return models.PlayItem{
		PlayedAt: playedAt,
		Track: &models.PlayedTrack{
			ID:         trackID,
			Name:       "Song " + trackID,
			DurationMS: &duration,
			Album:      &models.AlbumRef{Name: "Album " + trackID},
			Artists:    []models.ArtistRef{{ID: artistID, Name: "Artist " + artistID}},
		},
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
