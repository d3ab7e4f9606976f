// Package pg provides PostgreSQL connection management for the platform:
// pooled connect with retry, readiness probing, goose migrations, and
// error classifiers shared by the module stores.
package pg
