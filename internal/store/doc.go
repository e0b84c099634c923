// Package store persists commentary rows.
//
// Two backends implement Store: SQLite (the default, a single file under the
// data directory) and PostgreSQL with the pgvector extension. Both keep the
// same commentaries table shape. Embeddings are optional per row; rows without
// one are simply invisible to Search.
//
// The SQLite schema is versioned in schema.go. Bump sqliteSchemaVersion when
// schema_sqlite.sql changes; users clear the database to adopt the new schema.
package store
