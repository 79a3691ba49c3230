package sink

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"chat-relay/domain/event"
	"chat-relay/errors"

	"github.com/gorilla/websocket"
)

// WebSocketSink pushes events to one WebSocket client. Consume hands the
// encoded frame to a buffered out channel; a dedicated write loop owns the
// connection, so concurrent broadcasts never interleave writes on the
// wire.
type WebSocketSink struct {
	log          *slog.Logger
	conn         *websocket.Conn
	out          chan []byte
	done         chan struct{}
	once         sync.Once
	writeTimeout time.Duration
}

func NewWebSocketSink(log *slog.Logger, conn *websocket.Conn,
	bufferSize int, writeTimeout time.Duration) *WebSocketSink {
	s := &WebSocketSink{
		log:          log,
		conn:         conn,
		out:          make(chan []byte, bufferSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
	go s.writeLoop()
	return s
}

func (s *WebSocketSink) Consume(ctx context.Context, e event.BroadcastEvent) error {
	data, err := json.Marshal(event.ToEnvelope(e))
	if err != nil {
		return err
	}
	// Closed wins over a free buffer slot: once the write loop has exited,
	// anything enqueued would be dropped silently, so report the dead sink
	// instead and let the dispatcher evict the connection.
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	default:
	}
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.out <- data:
		return nil
	}
}

// Send enqueues a transport-level frame (command acknowledgements and
// errors) on the same write loop as broadcast events, so frames never
// interleave.
func (s *WebSocketSink) Send(data []byte) error {
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	default:
	}
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	case s.out <- data:
		return nil
	}
}

// Close stops the write loop and closes the underlying connection.
// Idempotent: both the transport's read loop and the dispatcher's eviction
// path may race to call it.
func (s *WebSocketSink) Close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *WebSocketSink) writeLoop() {
	defer s.Close()
	for {
		select {
		case <-s.done:
			return
		case data := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug("websocket write failed, closing sink", "error", err)
				return
			}
		}
	}
}
