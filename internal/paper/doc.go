// Package paper defines the core types and interfaces shared by the ingest
// pipeline, the stores, and the HTTP layer.
package paper
