// Package feed defines the learning-feed domain model shared across the
// offline cache, sync queue and public API client.
package feed
