package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"roomchat/domain"
	"roomchat/domain/event"
	"roomchat/infrastructure/tcp"
	"roomchat/observability"
	"roomchat/protocol"
	"roomchat/runtime"
	"roomchat/runtime/workers"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type BaseTCPSuite struct {
	suite.Suite
	Config Config

	cancel context.CancelFunc
	done   chan error
}

// SetupSuite loads the environment configuration and starts a server unless one is given.
func (s *BaseTCPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr != "" {
		return
	}

	log := logs.GetLoggerFromLevel(slog.LevelError)
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	orchestrator, err := runtime.NewOrchestrator(ctx, log, workers.NewSupervisor(log, workers.DefaultRestartInterval),
		runtime.NewFileRoomSource(s.Config.RoomsFile), observability.NewMetrics(),
		runtime.Options{BroadcastCapacity: 64, FanInBufferSize: 16})
	s.Require().NoError(err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.Config.ServerAddr = listener.Addr().String()

	server := tcp.NewServer(log, s.Config.ServerAddr, orchestrator.Sessions(), protocol.Options{MaxContentLength: 500})
	s.done = make(chan error, 1)
	go func() { s.done <- server.Serve(ctx, listener) }()
}

func (s *BaseTCPSuite) TearDownSuite() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.Require().NoError(<-s.done)
}

// Client is one chat connection driven by a test step.
type Client struct {
	s      *BaseTCPSuite
	name   string
	conn   net.Conn
	events protocol.EventReader
	cmds   protocol.CommandWriter
}

// Connect opens a connection, logs a colored header and renames the session to name.
func (s *BaseTCPSuite) Connect(name string) *Client {
	header := fmt.Sprintf("  ====== %s connects ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	conn, err := net.Dial("tcp", s.Config.ServerAddr)
	s.Require().NoError(err, "Failed to connect to chat server at "+s.Config.ServerAddr)
	events, cmds := protocol.SplitClient(conn, protocol.Options{})
	c := &Client{s: s, name: name, conn: conn, events: events, cmds: cmds}

	_, ok := c.Next().(event.LoginAccepted)
	s.Require().True(ok, "first event must be login_accepted")
	c.Send(domain.LoginCommand{Username: name})
	accepted, ok := c.Next().(event.LoginAccepted)
	s.Require().True(ok)
	s.Require().Equal(name, accepted.Username)
	return c
}

func (c *Client) Send(cmd domain.Command) {
	c.s.Require().NoError(c.cmds.WriteCommand(cmd))
}

// Next reads one event within the configured read timeout.
func (c *Client) Next() event.Event {
	c.s.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(c.s.Config.ReadTimeout)))
	evt, err := c.events.ReadEvent()
	c.s.Require().NoError(err, c.name+" expected an event")
	if c.s.Config.DebugFrames {
		c.s.T().Logf("%s <- %T %+v", c.name, evt, evt)
	}
	return evt
}

// ReadError reads until the connection fails and returns that error.
func (c *Client) ReadError() error {
	c.s.Require().NoError(c.conn.SetReadDeadline(time.Now().Add(c.s.Config.ReadTimeout)))
	for {
		if _, err := c.events.ReadEvent(); err != nil {
			return err
		}
	}
}

func (c *Client) Close() {
	_ = c.conn.Close()
}
