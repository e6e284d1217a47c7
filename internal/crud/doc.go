// Package crud runs entity create, read, update and delete operations through a fixed lifecycle
// without knowing how entities are stored.
//
// Every call follows the same shape:
//
//	pre-hook -> execute -> notify events -> post-hook -> return
//
// Reads dispatch to one of three repository calls depending on whether a free-text search
// term and a structured query are present (see [search.Resolve]). Writes run their execute and
// notify steps inside a [Transactor] boundary, load the target first for update and delete, and
// fail with a [models.NotFoundError] before any event fires when it is missing.
//
// The step list is defined once, over [async.Future]. [Provider] feeds it already-resolved
// futures from a blocking [Repository], so every step runs inline on the caller's goroutine.
// [AsyncProvider] feeds it pending futures from an [AsyncRepository] and returns immediately.
//
// Storage, mapping, hooks and transactions are supplied by the caller. Events default to
// [events.Nop], hooks to [NopHooks] and transactions to [Passthrough].
package crud
