package e2e

import (
	"bytes"
	"dwilive/auth"
	"dwilive/domain/event"
	"dwilive/services"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

const password = "E2ePassword1"

type BaseSuite struct {
	suite.Suite
	Config Config
	http   *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("SERVER_ADDR is not set")
	}
	s.http = &http.Client{Timeout: 10 * time.Second}
}

// Step prints a colorized header for a scenario step.
func (s *BaseSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Do sends body as JSON to the REST API and decodes the answer into out when given.
func (s *BaseSuite) Do(method, path, token string, body, out any) int {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	r, err := http.NewRequest(method, "http://"+s.Config.ServerAddr+path, reader)
	s.Require().NoError(err)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.http.Do(r)
	s.Require().NoError(err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	s.T().Logf("HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON && len(raw) > 0 {
		s.T().Logf("RESPONSE:\n%s", raw)
	}
	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return resp.StatusCode
}

// Register creates a throwaway account; handles are unique per run.
func (s *BaseSuite) Register(name string) services.AuthResult {
	var res services.AuthResult
	username := name + "_" + strings.Split(uuid.NewString(), "-")[0]
	status := s.Do(http.MethodPost, "/api/v1/auth/register", "",
		auth.RegisterRequest{Username: username, Password: password, DisplayName: name}, &res)
	s.Require().Equal(http.StatusCreated, status)
	return res
}

// Socket is a test client over the websocket endpoint.
type Socket struct {
	s    *BaseSuite
	conn *websocket.Conn
	next int
}

func (s *BaseSuite) Dial(token string) *Socket {
	url := "ws://" + s.Config.ServerAddr + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	return &Socket{s: s, conn: conn}
}

// Emit sends an event and waits for its acknowledgment.
func (c *Socket) Emit(name event.Name, data any) Ack {
	c.next++
	ackID := fmt.Sprint(c.next)
	raw, err := json.Marshal(data)
	c.s.Require().NoError(err)
	c.s.Require().NoError(c.conn.WriteJSON(event.Inbound{Event: name, AckID: ackID, Data: raw}))
	for {
		f := c.Next(event.Acknowledgment)
		if f.AckID == ackID {
			var ack Ack
			c.s.Require().NoError(json.Unmarshal(f.Data, &ack))
			return ack
		}
	}
}

type Frame struct {
	Event event.Name      `json:"event"`
	AckID string          `json:"ackId"`
	Data  json.RawMessage `json:"data"`
}

type Ack struct {
	Status event.Status    `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
	Code   string          `json:"code"`
}

// Next skips frames until one named name arrives.
func (c *Socket) Next(name event.Name) Frame {
	c.s.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(10 * time.Second)))
	for {
		var f Frame
		c.s.Require().NoError(c.conn.ReadJSON(&f))
		if c.s.Config.DebugJSON {
			c.s.T().Logf("FRAME %s %s", f.Event, f.Data)
		}
		if f.Event == name {
			return f
		}
	}
}
