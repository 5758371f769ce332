// Package transform normalizes recently-played items into the plays, tracks and artists datasets.
//
// [RecentlyPlayed] is a pure function: it performs no I/O and does not log.
package transform

import (
	"fmt"

	"github.com/desertthunder/playlog/internal/models"
)

// Batch holds the three normalized datasets produced from one provider response.
type Batch struct {
	Plays   models.Dataset[models.Play]
	Tracks  models.Dataset[models.Track]
	Artists models.Dataset[models.Artist]
}

// NewBatch returns a batch of three empty datasets bound to their schemas.
func NewBatch() *Batch {
	return &Batch{
		Plays:   models.NewDataset[models.Play](models.PlaysSchema),
		Tracks:  models.NewDataset[models.Track](models.TracksSchema),
		Artists: models.NewDataset[models.Artist](models.ArtistsSchema),
	}
}

// Counts returns the row count of each dataset.
func (b *Batch) Counts() (plays, tracks, artists int) {
	return b.Plays.Len(), b.Tracks.Len(), b.Artists.Len()
}

// RecentlyPlayed maps play items into a [Batch].
//
//   - plays: one row per item, in input order.
//   - tracks: one row per distinct track id, in order of first appearance, holding the last-seen values.
//   - artists: same policy keyed by artist id, taken from each track's primary (first) artist only.
//
// Every item is validated before any output is built. The first malformed item aborts the
// whole batch with an error wrapping [shared.ErrMalformedRecord]; no partial batch is returned.
func RecentlyPlayed(items []models.PlayItem) (*Batch, error) {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	batch := NewBatch()
	tracks := newKeyed[models.Track]()
	artists := newKeyed[models.Artist]()

	for _, item := range items {
		track := item.Track
		artist := track.PrimaryArtist()

		batch.Plays.Add(models.Play{
			PlayedAt: item.PlayedAt,
			TrackID:  track.ID,
			ArtistID: artist.ID,
		})

		tracks.put(track.ID, models.Track{
			TrackID:    track.ID,
			TrackName:  track.Name,
			AlbumName:  track.Album.Name,
			DurationMS: *track.DurationMS,
		})

		artists.put(artist.ID, models.Artist{
			ArtistID:   artist.ID,
			ArtistName: artist.Name,
		})
	}

	batch.Tracks.Add(tracks.rows...)
	batch.Artists.Add(artists.rows...)

	return batch, nil
}

// keyed collects rows deduplicated by key, keeping first-appearance order and last-write values.
type keyed[T any] struct {
	index map[string]int
	rows  []T
}

func newKeyed[T any]() *keyed[T] {
	return &keyed[T]{index: make(map[string]int)}
}

func (k *keyed[T]) put(key string, row T) {
	if i, ok := k.index[key]; ok {
		k.rows[i] = row
		return
	}
	k.index[key] = len(k.rows)
	k.rows = append(k.rows, row)
}
