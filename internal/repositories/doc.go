// Package repositories implements SQLite persistence for the listening history.
//
// Key Implementations:
//   - [Store] : append-only loader for the plays, tracks and artists relations
//   - [HistoryQueries] : read-only aggregate reports over the stored history
//   - [RunRepository] : the pipeline run log
//
// The loader creates a relation on first write from its [models.Schema] and never
// deduplicates, upserts or enforces keys. Loading the same batch twice doubles the rows.
package repositories
