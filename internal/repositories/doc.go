// Package repositories implements SQLite persistence for conversion history.
//
// [ConversionRepository] implements models.Repository[*models.Conversion] and also stores the
// per-track decisions of each run. Conversions are soft deleted via deleted_at and excluded from
// queries by default.
//
// Sequence numbers provide stable, human-readable ordering (e.g. conversion #15) independent of UUIDs
// and creation timestamps. The [NextSequence] function atomically increments per-table sequence
// counters in dedicated sequence tables.
package repositories
