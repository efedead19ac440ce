// Package store provides the durable on-device key-value store backing
// the offline video cache and the pending sync-action queue.
package store
