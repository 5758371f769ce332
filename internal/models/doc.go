// Package models defines the records and tabular types that flow through the playlog pipeline.
//
// The package contains two categories of types:
//
// 1. Input records: the typed shape of one recently-played item returned by the provider
//   - [PlayItem] : a play timestamp with its nested [PlayedTrack]
//   - [PlayedTrack], [AlbumRef], [ArtistRef] : nested track, album and artist data
//
// 2. Normalized records and their tabular container
//   - [Play] : fact row (played_at, track_id, artist_id)
//   - [Track] : dimension row keyed by track_id
//   - [Artist] : dimension row keyed by artist_id
//   - [Dataset] : an ordered sequence of rows bound to a fixed [Schema]
//
// A [Dataset] always carries its [Schema], so an empty dataset still knows its relation name and columns.
package models
