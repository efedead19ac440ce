// Package server provides the HTTP API surface of the TeachTap service:
// offline cache and sync queue operations, live session control, catalog
// search and monitoring endpoints.
package server
