// Package queue bridges the external broker and the in-process channel
// registry: a consumer loop that routes inbound deliveries into broadcast
// groups, and a publisher used by the REST gateway. Both sides speak the
// same JSON envelope.
package queue

// Envelope is the wire structure exchanged with the broker in both
// directions. channel_id decouples the publish target from the broker's own
// physical addressing.
type Envelope struct {
	ChannelID string `json:"channel_id"`
	Message   string `json:"message"`
}
