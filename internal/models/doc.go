// Package models defines domain entities and persistence interfaces for crossfade.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs representing external service data
//   - [Playlist] : Basic playlist metadata from music services
//   - [PlaylistExport] : Playlist with complete track listing
//   - [Track] : Song or video metadata
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [Conversion] : One playlist conversion run, tracking progress and results
//   - [ConversionMatch] : The decision recorded for one source track of a run
//
// Persistent entities implement the [Model] interface providing IDs, timestamps and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
