// Package stores provides the SQLite persistence layer for archetype.
// It records generation and creation runs (the history shown by
// `archetype history`), keeps the catalog index built by `archetype crawl`
// and an audit trail of repository and registry changes. Migrations are
// embedded and applied with golang-migrate.
package stores
