// Package tasks orchestrates playlist conversions between music services with real-time progress reporting.
//
// # Core Operations
//
// [ConversionEngine] offers two operations:
//
//  1. [ConversionEngine.Run] : Full playlist conversion in either direction
//     - Exports the source playlist (by ID, falling back to an exact name match)
//     - Matches every track on the destination platform with the matching engine
//     - Creates the destination playlist from the accepted matches
//     - Records the run and its per-track decisions through a [ConversionRecorder]
//
//  2. [ConversionEngine.Diff] : Compare two existing playlists
//     - Exports both playlists concurrently
//     - Pairs tracks via ISRC, then by title and artist similarity
//     - Reports paired, missing and extra tracks
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// During matching, Data holds the [matching.MatchRecord] of the track just finished.
//
// # Caching and History
//
// The match cache belongs to the engine and is shared by every run it performs. History writes are
// best effort; a failing recorder is logged and never fails a conversion.
package tasks
