package protocol

import (
	"io"
	"net/http"
	"net/http/httptest"
	"roomchat/domain"
	"roomchat/domain/event"
	"roomchat/errors"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// echoServer answers every command with RoomLeft for the same room, or a malformed error.
func echoServer(t *testing.T) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		commands, events := NewWebsocketServerConn(conn, Options{MaxFrameSize: 256})
		for {
			cmd, err := commands.ReadCommand()
			if err != nil {
				_ = events.WriteEvent(event.Error{Code: event.CodeMalformedFrame, Reason: err.Error()})
				return
			}
			if c, ok := cmd.(domain.RoomCommand); ok {
				_ = events.WriteEvent(event.RoomLeft{Room: c.RoomID()})
			}
		}
	}))
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestWebsocket_Command_And_Event_Round_Trip(t *testing.T) {
	req := require.New(t)
	server := echoServer(t)
	defer server.Close()
	conn := dial(t, server)
	defer conn.Close()

	events, commands := NewWebsocketClientConn(conn, Options{WriteTimeout: time.Second})
	req.NoError(commands.WriteCommand(domain.LeaveRoomCommand{Room: "random"}))

	evt, err := events.ReadEvent()
	req.NoError(err)
	req.Equal(event.RoomLeft{Room: "random"}, evt)
}

func TestWebsocket_Malformed_Frame_Is_Reported(t *testing.T) {
	req := require.New(t)
	server := echoServer(t)
	defer server.Close()
	conn := dial(t, server)
	defer conn.Close()

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"t":"dance"}`)))

	events, _ := NewWebsocketClientConn(conn, Options{})
	evt, err := events.ReadEvent()
	req.NoError(err)
	req.Equal(event.CodeMalformedFrame, evt.(event.Error).Code)

	// Then the server closes the connection
	_, err = events.ReadEvent()
	req.Error(err)
}

func TestWebsocket_Normal_Close_Is_EOF(t *testing.T) {
	req := require.New(t)
	closed := make(chan error, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		commands, _ := NewWebsocketServerConn(conn, Options{})
		_, err = commands.ReadCommand()
		closed <- err
	}))
	defer server.Close()

	conn := dial(t, server)
	req.NoError(conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	defer conn.Close()

	select {
	case err := <-closed:
		req.ErrorIs(err, io.EOF)
		req.NotErrorIs(err, errors.ErrMalformedFrame)
	case <-time.After(time.Second):
		req.Fail("server never observed the close frame")
	}
}
