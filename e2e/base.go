// Package e2e runs whole-server scenarios in-process: real Badger, real
// websockets, real JWTs. Only the clock of the test itself is simulated.
package e2e

import (
	"chat-realtime/auth"
	"chat-realtime/domain"
	"chat-realtime/domain/event"
	"chat-realtime/infrastructure/websocket"
	"chat-realtime/moderation"
	"chat-realtime/repositories"
	"chat-realtime/runtime"
	"chat-realtime/runtime/workers"
	"chat-realtime/services"
	"context"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/gookit/color"
	gorilla "github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type Frame struct {
	Event event.Name      `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type BaseSuite struct {
	suite.Suite
	Config       Config
	frameTimeout time.Duration

	db           *badger.DB
	Store        *repositories.Store
	Orchestrator *runtime.Orchestrator
	Chat         *services.ChatService
	registry     *runtime.ConnectionRegistry
	membership   *runtime.RoomMembershipService
	verifier     *auth.Verifier
	server       *httptest.Server
	cancel       context.CancelFunc
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.frameTimeout, err = time.ParseDuration(s.Config.FrameTimeout)
	s.Require().NoError(err)
}

// SetupTest starts a fresh server on an empty database.
func (s *BaseSuite) SetupTest() {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)
	s.db = db
	s.Store = repositories.NewStore(db, log, 0)

	dictionary, err := runtime.DefaultCensoredWords()
	s.Require().NoError(err)
	moderator, err := moderation.NewModerator(dictionary.Words, '*', log)
	s.Require().NoError(err)

	registry := runtime.NewConnectionRegistry()
	membership := runtime.NewRoomMembershipService(log)
	s.registry, s.membership = registry, membership
	presence := runtime.NewPresenceBroadcaster(s.Store, registry)
	calls := runtime.NewCallSessionManager(log, s.Store)
	router := runtime.NewEventRouter(log, registry, membership, presence, calls, s.Store, moderator)
	s.Orchestrator = runtime.NewOrchestrator(log, workers.NewSupervisor(log, 10*time.Millisecond),
		registry, membership, calls, router, s.Store, 16)
	s.Chat = services.NewChatService(log, s.Store, s.Store, s.Orchestrator)
	s.Orchestrator.Bus().Subscribe(s.Chat)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.Require().NoError(s.Orchestrator.Start(ctx))

	s.verifier = auth.NewVerifier("e2e_secret_long_enough_for_hs256", "chat-realtime")
	wsServer := websocket.NewServer(log, s.Orchestrator, s.verifier, auth.NewFailedAttemptTracker(5, time.Minute),
		websocket.Config{BufferSize: 32, SinkTimeout: 100 * time.Millisecond})
	s.server = httptest.NewServer(wsServer)
}

func (s *BaseSuite) TearDownTest() {
	s.server.Close()
	s.Orchestrator.Stop()
	s.cancel()
	_ = s.db.Close()
}

// CreateRoom stores a room with the given members through the chat service.
func (s *BaseSuite) CreateRoom(name string, users ...domain.UserID) domain.RoomID {
	members := make([]domain.Member, 0, len(users))
	for _, u := range users {
		members = append(members, domain.Member{UserID: u, Username: string(u)})
	}
	room, err := s.Chat.CreateRoom(context.Background(), name, len(users) > 2, members)
	s.Require().NoError(err)
	return room.ID
}

// Client is a websocket peer driven by a scenario.
type Client struct {
	s      *BaseSuite
	name   string
	conn   *gorilla.Conn
	frames chan Frame
}

// Connect opens an authenticated websocket for userID.
func (s *BaseSuite) Connect(userID domain.UserID) *Client {
	header := fmt.Sprintf("  ====== %s connects ======", userID)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	previous, _ := s.registry.Lookup(userID)
	token, err := s.verifier.GenerateToken(userID, time.Hour)
	s.Require().NoError(err)
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "?token=" + token
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)

	c := &Client{s: s, name: string(userID), conn: conn, frames: make(chan Frame, 64)}
	go c.readLoop()
	s.T().Cleanup(func() { _ = conn.Close() })

	// The upgrade completes before the hub has subscribed the connection
	rooms, err := s.Store.ListRoomsForUser(context.Background(), userID)
	s.Require().NoError(err)
	s.Require().Eventually(func() bool {
		current, ok := s.registry.Lookup(userID)
		return ok && current.ID != previous.ID && len(s.membership.Rooms(current.ID)) == len(rooms)
	}, s.frameTimeout, 5*time.Millisecond)
	return c
}

// WaitFocused waits until the focus sent by userID has been applied.
func (s *BaseSuite) WaitFocused(userID domain.UserID, roomID domain.RoomID) {
	s.Require().Eventually(func() bool {
		conn, ok := s.registry.Lookup(userID)
		return ok && conn.IsFocused(roomID)
	}, s.frameTimeout, 5*time.Millisecond)
}

// WaitSubscribed waits until the live connection of userID follows roomID.
func (s *BaseSuite) WaitSubscribed(userID domain.UserID, roomID domain.RoomID) {
	s.Require().Eventually(func() bool {
		conn, ok := s.registry.Lookup(userID)
		return ok && s.membership.IsSubscribed(conn.ID, roomID)
	}, s.frameTimeout, 5*time.Millisecond)
}

func (c *Client) readLoop() {
	defer close(c.frames)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		if c.s.Config.DebugJSON {
			c.s.T().Logf("%s <- %s", c.name, data)
		}
		c.frames <- f
	}
}

func (c *Client) Send(name event.Name, data any) {
	payload, err := json.Marshal(event.New(name, data))
	c.s.Require().NoError(err)
	if c.s.Config.DebugJSON {
		c.s.T().Logf("%s -> %s", c.name, payload)
	}
	c.s.Require().NoError(c.conn.WriteMessage(gorilla.TextMessage, payload))
}

// Expect skips frames until one named name arrives and decodes its data into out.
func (c *Client) Expect(name event.Name, out any) {
	deadline := time.After(c.s.frameTimeout)
	for {
		select {
		case f, ok := <-c.frames:
			c.s.Require().True(ok, "%s: connection closed while waiting for %s", c.name, name)
			if f.Event != name {
				continue
			}
			if out != nil {
				c.s.Require().NoError(json.Unmarshal(f.Data, out))
			}
			return
		case <-deadline:
			c.s.Require().Failf("frame not received", "%s never received %s", c.name, name)
			return
		}
	}
}

// ExpectNone fails if a frame named name shows up within wait.
func (c *Client) ExpectNone(name event.Name, wait time.Duration) {
	deadline := time.After(wait)
	for {
		select {
		case f, ok := <-c.frames:
			if !ok {
				return
			}
			c.s.Require().NotEqual(name, f.Event, "%s received unexpected %s", c.name, name)
		case <-deadline:
			return
		}
	}
}

// Closed waits until the server closes the connection.
func (c *Client) Closed() {
	deadline := time.After(c.s.frameTimeout)
	for {
		select {
		case _, ok := <-c.frames:
			if !ok {
				return
			}
		case <-deadline:
			c.s.Require().Failf("connection still open", "%s was not closed", c.name)
			return
		}
	}
}
