// Package matching finds the closest destination-platform item for each track of a source playlist.
//
// # Pipeline
//
// For every [SourceTrack] the [Engine] runs the same state machine:
//
//  1. Cache check: a [Cache] keyed by direction and normalized title short-circuits repeat work
//  2. Query loop: [BuildQueries] yields an ordered list of search strings; each is sent to the
//     [SearchProvider] and every returned [Candidate] is scored by the [Ranker]
//  3. Finalize: the best accepted candidate (or none) is cached and emitted as a [MatchRecord]
//
// The loop stops as soon as the running best crosses the direction's early-exit cutoff.
//
// # Directions
//
// Matching a video title against a track index and matching a track against a video index share
// the engine. A [Direction] value carries what differs: query templates, noise and version
// vocabularies, popularity scaling, candidate filters, and the tunable [Weights], [Thresholds]
// and [Timing].
//
//   - [VideoToTrack] : YouTube video -> Spotify track
//   - [TrackToVideo] : Spotify track -> YouTube video
//
// # Errors
//
// Provider failures never escape a track. Rate limiting is signalled by wrapping
// [shared.ErrRateLimited]; it earns a longer backoff than other errors. Only a missing or
// unusable provider, or a cancelled context, is reported to the caller.
package matching
