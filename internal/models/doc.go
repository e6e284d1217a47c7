// Package models defines the value types shared by the lifecycle engine and its adapters.
//
// The package contains two categories of types:
//
// 1. Engine values: types every provider and adapter speaks
//   - [Page] : one slice of results with its [Pagination], [Sort] and total count
//   - [Pagination] : page number and size, where the zero value means unpaginated
//   - [Sort] : ordered list of [Order] terms, where the zero value means unsorted
//   - [Operation] : the seven lifecycle operations reported to hooks
//   - [NotFoundError] : typed error carrying the entity type and the missing identifier
//
// 2. Demo domain: the cached music track used by the CLI and the storage adapters
//   - [Track] : persistent entity with soft delete and a per-table sequence
//   - [TrackInput] : validated write payload
//   - [TrackView] : read model returned to callers
//   - [TrackMapper] : converts between the three
package models
