// Package stores provides the run journal: a SQLite database (WAL mode,
// embedded migrations) holding one row per run and one row per recorded
// action result. The journal is history only. Planning always probes the
// live host and never consults it.
package stores
