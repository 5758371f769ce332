package models

import (
	"fmt"
	"strings"
)

// Column is one named, typed column of a relation.
type Column struct {
	Name string
	Type string // SQLite declared type, e.g. TEXT or INTEGER
}

// Schema is the fixed column set of a named relation.
type Schema struct {
	Relation string
	Columns  []Column
}

var (
	PlaysSchema = Schema{
		Relation: "plays",
		Columns: []Column{
			{Name: "played_at", Type: "TEXT"},
			{Name: "track_id", Type: "TEXT"},
			{Name: "artist_id", Type: "TEXT"},
		},
	}

	// TracksSchema is keyed by track_id. The key is not enforced by the store.
	TracksSchema = Schema{
		Relation: "tracks",
		Columns: []Column{
			{Name: "track_id", Type: "TEXT"},
			{Name: "track_name", Type: "TEXT"},
			{Name: "album_name", Type: "TEXT"},
			{Name: "duration_ms", Type: "INTEGER"},
		},
	}

	// ArtistsSchema is keyed by artist_id. The key is not enforced by the store.
	ArtistsSchema = Schema{
		Relation: "artists",
		Columns: []Column{
			{Name: "artist_id", Type: "TEXT"},
			{Name: "artist_name", Type: "TEXT"},
		},
	}
)

// ColumnNames returns the column names in declaration order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name, case-insensitively.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// Record is a row that can be written under a [Schema]. Values are returned in schema column order.
type Record interface {
	Values() []any
}

// Dataset is an ordered sequence of homogeneous rows with a fixed [Schema].
type Dataset[T Record] struct {
	Schema Schema
	Rows   []T
}

// NewDataset returns an empty dataset bound to schema.
func NewDataset[T Record](schema Schema) Dataset[T] {
	return Dataset[T]{Schema: schema, Rows: []T{}}
}

// Add appends rows to the dataset.
func (d *Dataset[T]) Add(rows ...T) {
	d.Rows = append(d.Rows, rows...)
}

// Len returns the number of rows.
func (d Dataset[T]) Len() int {
	return len(d.Rows)
}

// Columns returns the column names of the dataset's schema.
func (d Dataset[T]) Columns() []string {
	return d.Schema.ColumnNames()
}

// Values returns every row as a slice of column values, ready to be written to a store.
func (d Dataset[T]) Values() ([][]any, error) {
	width := len(d.Schema.Columns)
	out := make([][]any, len(d.Rows))
	for i, row := range d.Rows {
		values := row.Values()
		if len(values) != width {
			return nil, fmt.Errorf("row %d of %s has %d values, schema has %d columns", i, d.Schema.Relation, len(values), width)
		}
		out[i] = values
	}
	return out, nil
}

// Play is a single play event. It has no identity of its own; repeats are valid.
type Play struct {
	PlayedAt string `json:"played_at"`
	TrackID  string `json:"track_id"`
	ArtistID string `json:"artist_id"`
}

func (p Play) Values() []any { return []any{p.PlayedAt, p.TrackID, p.ArtistID} }

// Track is a track dimension row.
type Track struct {
	TrackID    string `json:"track_id"`
	TrackName  string `json:"track_name"`
	AlbumName  string `json:"album_name"`
	DurationMS int    `json:"duration_ms"`
}

func (t Track) Values() []any { return []any{t.TrackID, t.TrackName, t.AlbumName, t.DurationMS} }

// Artist is an artist dimension row. Only a track's primary artist is recorded.
type Artist struct {
	ArtistID   string `json:"artist_id"`
	ArtistName string `json:"artist_name"`
}

func (a Artist) Values() []any { return []any{a.ArtistID, a.ArtistName} }
