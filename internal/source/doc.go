// Package source routes a venue to the adapter that scrapes it.
//
// Adapters live in subpackages (acl, mlconf, arxiv) and share a
// paper.Fetcher so politeness, archiving, and metrics apply uniformly.
package source
