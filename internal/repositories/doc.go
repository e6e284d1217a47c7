// Package repositories implements the storage side of the lifecycle engine.
//
// Three adapters satisfy crud.Repository:
//   - [TrackRepository] : hand-written SQL over database/sql and SQLite, with per-table sequences
//   - [GormRepository] : generic GORM adapter for any model, on SQLite or PostgreSQL
//   - [MemoryRepository] : generic in-memory adapter for tests and the "memory" driver
//
// All three honour the same search and query semantics by sharing a query.Schema: search is a
// case-insensitive substring match over searchable fields, queries are AIP-160 filters.
// SQL adapters soft-delete through a deleted_at column and exclude deleted rows everywhere.
//
// [TxManager] and [GormTransactor] implement crud.Transactor by carrying the open transaction in
// the context, so every repository call made inside the boundary joins it.
package repositories
