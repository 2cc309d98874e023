// Package testutil provides in-memory workload sources for testing the
// catalog, registry, and HTTP serving paths without a live release service.
package testutil
