package socket

import (
	"context"
	"dwilive/auth"
	"dwilive/domain"
	"dwilive/domain/event"
	"dwilive/errors"
	"dwilive/repositories"
	"dwilive/runtime"
	"dwilive/services"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type server struct {
	url           string
	tokens        *auth.TokenManager
	users         *repositories.UserRepository
	conversations *repositories.ConversationRepository
	registry      *runtime.Registry
}

// wireFrame is the client view of an outbound frame.
type wireFrame struct {
	Event event.Name      `json:"event"`
	AckID string          `json:"ackId"`
	Data  json.RawMessage `json:"data"`
}

type wireAck struct {
	Status event.Status    `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Code   errors.Code     `json:"code"`
}

func newServer(t *testing.T) *server {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	users := repositories.NewUserRepository(db)
	conversations := repositories.NewConversationRepository(db)
	messages := repositories.NewMessageRepository(db, users, log)
	registry := runtime.NewRegistry(log)
	chat := services.NewChatService(services.NewMembershipOracle(conversations), registry, messages, conversations, nil, log, 2000)
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	opts := DefaultOptions()
	opts.BufferSize = 16
	handler := auth.Middleware(auth.NewIdentityResolver(tokens, users), log)(NewHandler(chat, registry, opts, log))
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return &server{
		url:           "ws" + strings.TrimPrefix(ts.URL, "http"),
		tokens:        tokens,
		users:         users,
		conversations: conversations,
		registry:      registry,
	}
}

func (s *server) user(t *testing.T, username string) (domain.User, string) {
	t.Helper()
	u, err := s.users.Create(context.Background(), username, "hash", "")
	require.NoError(t, err)
	token, err := s.tokens.GenerateToken(u.ID)
	require.NoError(t, err)
	return u, token
}

func (s *server) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.url+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, name event.Name, ackID string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(event.Inbound{Event: name, AckID: ackID, Data: raw}))
}

// next reads frames until one named name arrives.
func next(t *testing.T, conn *websocket.Conn, name event.Name) wireFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f wireFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Event == name {
			return f
		}
	}
}

func nextAck(t *testing.T, conn *websocket.Conn, ackID string) wireAck {
	t.Helper()
	f := next(t, conn, event.Acknowledgment)
	require.Equal(t, ackID, f.AckID)
	var ack wireAck
	require.NoError(t, json.Unmarshal(f.Data, &ack))
	return ack
}

func TestHandler_Rejects_Unauthenticated_Upgrade(t *testing.T) {
	req := require.New(t)
	s := newServer(t)

	tests := []string{"", "?token=garbage"}
	for _, query := range tests {
		_, resp, err := websocket.DefaultDialer.Dial(s.url+query, nil)
		req.ErrorIs(err, websocket.ErrBadHandshake)
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	}
	connections, _ := s.registry.Counts()
	req.Zero(connections)
}

func TestHandler_Message_Flow(t *testing.T) {
	req := require.New(t)
	s := newServer(t)
	alice, aliceToken := s.user(t, "alice")
	bob, bobToken := s.user(t, "bob")
	conv, err := domain.NewDirectConversation(alice.ID, bob.ID, time.Now().UTC())
	req.NoError(err)
	req.NoError(s.conversations.Create(context.Background(), conv))
	aliceConn, bobConn := s.dial(t, aliceToken), s.dial(t, bobToken)
	room := event.ConversationRequest{ConversationID: conv.ID.String()}

	// Given both users in the room
	send(t, aliceConn, event.JoinConversation, "a1", room)
	req.Equal(event.StatusOK, nextAck(t, aliceConn, "a1").Status)
	send(t, bobConn, event.JoinConversation, "b1", room)
	req.Equal(event.StatusOK, nextAck(t, bobConn, "b1").Status)
	joined := next(t, aliceConn, event.UserJoinedConversation)
	req.Contains(string(joined.Data), bob.ID.String())

	// When alice sends a message
	send(t, aliceConn, event.SendMessage, "a2", event.SendMessageRequest{ConversationID: conv.ID.String(), Content: "hello bob"})

	// Then her ack carries the stored message and bob receives the same payload
	ack := nextAck(t, aliceConn, "a2")
	req.Equal(event.StatusOK, ack.Status)
	var acked event.MessageDTO
	req.NoError(json.Unmarshal(ack.Data, &acked))
	req.Equal("hello bob", acked.Content)
	req.Equal(alice.ID.String(), acked.Sender.ID)

	received := next(t, bobConn, event.ReceiveMessage)
	req.JSONEq(string(ack.Data), string(received.Data))
}

func TestHandler_Failures_Are_Acknowledged(t *testing.T) {
	req := require.New(t)
	s := newServer(t)
	_, token := s.user(t, "mallory")
	conn := s.dial(t, token)
	stranger := event.ConversationRequest{ConversationID: domain.NewConversationID().String()}

	// A frame without ackId is answered by nothing, so the next ack read is "2"
	send(t, conn, event.TypingStart, "", stranger)
	send(t, conn, event.JoinConversation, "2", stranger)
	ack := nextAck(t, conn, "2")
	req.Equal(event.StatusError, ack.Status)
	req.Equal(errors.CodeUnauthorized, ack.Code)

	send(t, conn, "dance", "3", stranger)
	ack = nextAck(t, conn, "3")
	req.Equal(errors.CodeValidation, ack.Code)

	// The connection survives every failure
	send(t, conn, event.LeaveConversation, "4", event.ConversationRequest{})
	req.Equal(errors.CodeValidation, nextAck(t, conn, "4").Code)
}

func TestHandler_Disconnect_Clears_Subscriptions(t *testing.T) {
	req := require.New(t)
	s := newServer(t)
	alice, token := s.user(t, "alice")
	conv, err := domain.NewGroupConversation("team", alice.ID, nil, true, time.Now().UTC())
	req.NoError(err)
	req.NoError(s.conversations.Create(context.Background(), conv))
	conn := s.dial(t, token)
	send(t, conn, event.JoinConversation, "1", event.ConversationRequest{ConversationID: conv.ID.String()})
	req.Equal(event.StatusOK, nextAck(t, conn, "1").Status)

	// When the client goes away
	req.NoError(conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = conn.Close()

	// Then the registry forgets the connection and its room
	req.Eventually(func() bool {
		connections, rooms := s.registry.Counts()
		return connections == 0 && rooms == 0
	}, 5*time.Second, 10*time.Millisecond)
}
