// Package slug generates URL-safe identifiers from display names,
// used for organization slugs.
package slug
