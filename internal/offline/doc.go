// Package offline implements the bounded offline video cache and the
// deferred sync-action queue replayed on reconnect.
package offline
