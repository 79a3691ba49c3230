package sink

import (
	"context"
	"testing"
	"time"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"

	"github.com/stretchr/testify/require"
)

func Test_StreamSink_Delivers_In_Order(t *testing.T) {
	req := require.New(t)
	streamSink := NewStreamSink(4)
	defer streamSink.Close()

	created := event.MessageCreated{Message: domain.Snapshot{Group: "general"}}
	updated := event.MessageUpdated{Message: domain.Snapshot{Group: "general"}}
	req.NoError(streamSink.Consume(context.Background(), created))
	req.NoError(streamSink.Consume(context.Background(), updated))

	req.Equal(event.KindMessageCreated, (<-streamSink.Events()).Kind())
	req.Equal(event.KindMessageUpdated, (<-streamSink.Events()).Kind())
}

func Test_StreamSink_Full_Buffer_Respects_Deadline(t *testing.T) {
	req := require.New(t)
	streamSink := NewStreamSink(1)
	defer streamSink.Close()

	evt := event.LivenessPing{Group: "general"}
	req.NoError(streamSink.Consume(context.Background(), evt))

	// When the buffer is full and nobody drains it
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := streamSink.Consume(ctx, evt)

	// Then Consume gives up at the deadline instead of blocking forever
	req.ErrorIs(err, context.DeadlineExceeded)
}

func Test_StreamSink_Closed_Rejects_Consume(t *testing.T) {
	req := require.New(t)
	// Buffer deliberately larger than the attempts below: even with free
	// slots, a closed sink must never accept an event.
	streamSink := NewStreamSink(16)

	streamSink.Close()
	streamSink.Close() // second close is harmless

	for i := 0; i < 10; i++ {
		err := streamSink.Consume(context.Background(), event.LivenessPing{Group: "general"})
		req.ErrorIs(err, errors.ErrSinkClosed)
	}
	req.Empty(streamSink.Events())
}
