package ws

import (
	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/ginger-society/ginger-ws/internal/channel"
	"github.com/ginger-society/ginger-ws/internal/metrics"
)

// Session binds one WebSocket connection to one broadcast group. It runs two
// pumps: inbound (transport frames republished into the group) and outbound
// (group messages written to the transport). Either pump failing tears the
// whole session down; closing the transport unblocks both.
type Session struct {
	conn   *websocket.Conn
	group  *channel.Group
	sub    *channel.Subscription
	writer *clientWriter
	log    *slog.Logger
}

// NewSession subscribes the connection to group and starts the write side.
// Call Run to start pumping; Run blocks until the session is over.
func NewSession(conn *websocket.Conn, group *channel.Group, clock clockwork.Clock) *Session {
	return &Session{
		conn:   conn,
		group:  group,
		sub:    group.Subscribe(),
		writer: newClientWriter(conn, clock),
		log:    slog.With("channel", group.Name()),
	}
}

// Run pumps until the transport fails or the peer disconnects, then cleans
// up the subscription and writer. It never returns an error: transport
// failures end the session, they are not reported upward.
func (s *Session) Run() {
	metrics.WebSocketConnectedClients.Inc()
	defer metrics.WebSocketConnectedClients.Dec()

	s.log.Debug("Subscriber session started", "subscribers", s.group.Subscribers())

	outboundDone := make(chan struct{})
	go func() {
		defer close(outboundDone)
		s.outboundPump()
	}()

	s.inboundPump()

	// Read side is gone: detach the subscription so the outbound pump's
	// receive loop terminates, then stop the writer.
	s.sub.Close()
	s.writer.stop()
	<-outboundDone

	s.log.Debug("Subscriber session closed", "subscribers", s.group.Subscribers())
}

// inboundPump reads frames from the transport and republishes text payloads
// into the session's own channel. Returns on any read error, including the
// deadline expiring without a pong.
func (s *Session) inboundPump() {
	for {
		msgType, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Subscriber read failed", "error", err)
			}
			return
		}
		if msgType == websocket.TextMessage {
			s.group.Publish(string(payload))
			metrics.PublishesTotal.WithLabelValues("websocket", "ok").Inc()
		}
	}
}

// outboundPump forwards broadcast messages to the transport until the
// subscription closes or a write fails.
func (s *Session) outboundPump() {
	for msg := range s.sub.Receive() {
		if !s.writer.send([]byte(msg)) {
			// Writer died; close the transport so the read pump unblocks.
			_ = s.conn.Close()
			return
		}
	}
}
