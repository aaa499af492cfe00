package websocket

import (
	"chat-realtime/domain/event"
	"chat-realtime/errors"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSink_FullThenClosed(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	sink := NewSink(1, 10*time.Millisecond)

	// Given a sink whose single slot is taken
	req.NoError(sink.Send(ctx, event.New(event.MessageNew, "first")))

	// When nobody drains it
	err := sink.Send(ctx, event.New(event.MessageNew, "second"))

	// Then the frame is refused after the timeout
	req.ErrorIs(err, errors.ErrSinkFull)

	sink.Close()
	sink.Close()
	req.ErrorIs(sink.Send(ctx, event.New(event.MessageNew, "third")), errors.ErrSinkClosed)

	// The queued frame is still there for the write pump
	frame := <-sink.Frames()
	req.Equal("first", frame.Data)
}
