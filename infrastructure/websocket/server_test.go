package websocket

import (
	"chat-realtime/auth"
	"chat-realtime/contract"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/runtime"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	sinks        chan contract.EventSink
	inbound      chan event.Inbound
	disconnected chan runtime.Client
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		sinks:        make(chan contract.EventSink, 1),
		inbound:      make(chan event.Inbound, 10),
		disconnected: make(chan runtime.Client, 1),
	}
}

func (g *fakeGateway) Connect(_ context.Context, userID domain.UserID, sink contract.EventSink) (runtime.Client, error) {
	g.sinks <- sink
	return runtime.Client{ConnectionID: "conn-1", UserID: userID}, nil
}

func (g *fakeGateway) Dispatch(_ context.Context, _ runtime.Client, in event.Inbound) error {
	g.inbound <- in
	return nil
}

func (g *fakeGateway) Disconnect(c runtime.Client) {
	g.disconnected <- c
}

func newTestServer(t *testing.T, gateway Gateway) (*httptest.Server, *auth.Verifier) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	verifier := auth.NewVerifier("a_secret_long_enough_for_hs256", "chat-realtime")
	server := NewServer(log, gateway, verifier, auth.NewFailedAttemptTracker(2, time.Minute), Config{
		BufferSize:  8,
		SinkTimeout: 50 * time.Millisecond,
	})
	ts := httptest.NewServer(server)
	t.Cleanup(ts.Close)
	return ts, verifier
}

func wsURL(ts *httptest.Server, token string) string {
	u := "ws" + strings.TrimPrefix(ts.URL, "http")
	if token != "" {
		u += "?token=" + token
	}
	return u
}

func TestServer_Handshake_Rejections(t *testing.T) {
	req := require.New(t)
	ts, _ := newTestServer(t, newFakeGateway())

	// Missing token
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	req.Error(err)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	// Two invalid tokens exhaust the allowance
	for i := 0; i < 2; i++ {
		_, resp, err = websocket.DefaultDialer.Dial(wsURL(ts, "forged"), nil)
		req.Error(err)
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	}

	// Then the address is blocked even before the token is looked at
	_, resp, err = websocket.DefaultDialer.Dial(wsURL(ts, "forged"), nil)
	req.Error(err)
	req.Equal(http.StatusTooManyRequests, resp.StatusCode)
}

func TestServer_FramesBothWays(t *testing.T) {
	req := require.New(t)
	gateway := newFakeGateway()
	ts, verifier := newTestServer(t, gateway)

	token, err := verifier.GenerateToken("alice", time.Hour)
	req.NoError(err)

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), header)
	req.NoError(err)
	defer conn.Close()

	sink := <-gateway.sinks

	// Inbound frame reaches the hub
	req.NoError(conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"chat:focus","data":{"chatRoomId":"room-1"}}`)))
	select {
	case in := <-gateway.inbound:
		req.Equal(event.ChatFocus, in.Event)
		req.JSONEq(`{"chatRoomId":"room-1"}`, string(in.Data))
	case <-time.After(time.Second):
		req.Fail("inbound frame not dispatched")
	}

	// Outbound frame queued before close is still delivered
	req.NoError(sink.Send(context.Background(),
		event.New(event.Closed, event.ClosedPayload{Reason: event.CloseNewWindow})))
	sink.Close()

	req.NoError(conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	req.NoError(err)
	var frame struct {
		Event event.Name          `json:"event"`
		Data  event.ClosedPayload `json:"data"`
	}
	req.NoError(json.Unmarshal(data, &frame))
	req.Equal(event.Closed, frame.Event)
	req.Equal(event.CloseNewWindow, frame.Data.Reason)

	// And the server-side close tears the session down
	_, _, err = conn.ReadMessage()
	req.Error(err)
	select {
	case c := <-gateway.disconnected:
		req.Equal(domain.UserID("alice"), c.UserID)
	case <-time.After(time.Second):
		req.Fail("disconnect not reported")
	}
}
