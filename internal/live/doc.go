// Package live implements the bidirectional audio session client: the
// duplex remote channel, boundary message decoding, the owned resource
// bundle and the session lifecycle controller.
package live
