package session

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"
	"roomchat/contract"
	"roomchat/domain"
	"roomchat/domain/event"
	"roomchat/errors"
	"roomchat/protocol"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type State int32

const (
	Connected State = iota // logged in, no room
	Active                 // member of at least one room
	Closed
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Active:
		return "active"
	default:
		return "closed"
	}
}

// Factory holds what every session of the server shares.
type Factory struct {
	log             *slog.Logger
	manager         contract.IRoomManager
	moderator       contract.IModerator
	metrics         contract.IMetrics
	fanInBufferSize int
}

// NewFactory builds sessions on top of manager. moderator and metrics may be nil.
func NewFactory(log *slog.Logger, manager contract.IRoomManager, moderator contract.IModerator,
	metrics contract.IMetrics, fanInBufferSize int) *Factory {
	return &Factory{
		log:             log,
		manager:         manager,
		moderator:       moderator,
		metrics:         metrics,
		fanInBufferSize: fanInBufferSize,
	}
}

// New creates the actor of one connection. closer is closed when the session ends.
func (f *Factory) New(reader protocol.CommandReader, writer protocol.EventWriter, closer io.Closer) *Session {
	id := uuid.New()
	log := f.log.With("session_id", id)
	return &Session{
		id:        id,
		username:  "guest-" + id.String()[:8],
		log:       log,
		manager:   f.manager,
		moderator: f.moderator,
		metrics:   f.metrics,
		reader:    reader,
		writer:    writer,
		closer:    closer,
		fanIn:     NewFanIn(log, f.fanInBufferSize, f.metrics),
		handles:   make(map[domain.RoomID]contract.RoomHandle),
	}
}

type readResult struct {
	cmd domain.Command
	err error
}

// Session is the actor of one client connection. Only the goroutine running
// Run touches its rooms, so commands of a session are applied in order.
type Session struct {
	id        uuid.UUID
	username  string
	log       *slog.Logger
	manager   contract.IRoomManager
	moderator contract.IModerator
	metrics   contract.IMetrics
	reader    protocol.CommandReader
	writer    protocol.EventWriter
	closer    io.Closer
	fanIn     *FanIn
	handles   map[domain.RoomID]contract.RoomHandle
	state     atomic.Int32
}

func (s *Session) ID() uuid.UUID { return s.id }
func (s *Session) State() State { return State(s.state.Load()) }
func (s *Session) Username() string { return s.username }

// Run serves the connection until the client quits or disconnects, a
// transport error occurs or ctx is canceled. Every room handle is given
// back before Run returns, panics included.
func (s *Session) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.metrics != nil {
		s.metrics.SessionOpened()
		defer s.metrics.SessionClosed()
	}

	readerDone := make(chan struct{})
	defer s.release(cancel, readerDone)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Session panicked", "panic", r)
			err = fmt.Errorf("%w: %v", errors.ErrSessionPanic, r)
		}
	}()

	// The reader starts first so release always has a goroutine to wait for.
	// Commands stay queued until the greeting is written.
	commands := make(chan readResult)
	go s.readLoop(ctx, commands, readerDone)

	if err := s.writer.WriteEvent(event.LoginAccepted{SessionID: s.id, Username: s.username}); err != nil {
		return err
	}
	s.log.Info("Session opened", "username", s.username)

	for {
		select {
		case <-ctx.Done():
			s.log.Debug("Session canceled")
			return nil
		case res := <-commands:
			if res.err != nil {
				return s.readFailure(res.err)
			}
			quit, err := s.handle(res.cmd)
			if err != nil {
				return err
			}
			if quit {
				s.log.Info("Client quit")
				return nil
			}
		case item := <-s.fanIn.Out():
			e, ok := s.fanIn.Admit(item)
			if !ok {
				continue
			}
			if err := s.writer.WriteEvent(e); err != nil {
				return fmt.Errorf("writing event: %w", err)
			}
		}
	}
}

// readLoop decodes commands until the transport fails. The error is the last thing sent.
func (s *Session) readLoop(ctx context.Context, commands chan<- readResult, done chan<- struct{}) {
	defer close(done)
	for {
		cmd, err := s.reader.ReadCommand()
		select {
		case <-ctx.Done():
			return
		case commands <- readResult{cmd: cmd, err: err}:
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) readFailure(err error) error {
	switch {
	case goerrors.Is(err, io.EOF):
		s.log.Info("Client disconnected")
		return nil
	case goerrors.Is(err, errors.ErrMalformedFrame):
		s.log.Warn("Malformed frame, closing session", "error", err)
		s.report(event.CodeMalformedFrame, err)
		return err
	default:
		return fmt.Errorf("reading command: %w", err)
	}
}

// handle applies one command. It returns true when the session must end cleanly.
func (s *Session) handle(cmd domain.Command) (bool, error) {
	switch c := cmd.(type) {
	case domain.JoinRoomCommand:
		return false, s.join(c.Room)
	case domain.LeaveRoomCommand:
		return false, s.leave(c.Room)
	case domain.SendMessageCommand:
		return false, s.send(c)
	case domain.LoginCommand:
		return false, s.login(c.Username)
	case domain.QuitCommand:
		return true, nil
	default:
		return false, s.report(event.CodeInvalidCommand, fmt.Errorf("unsupported command %q", cmd.Name()))
	}
}

func (s *Session) join(roomID domain.RoomID) error {
	if _, ok := s.handles[roomID]; ok {
		return s.report(event.CodeAlreadyJoined, fmt.Errorf("%w: %q", errors.ErrAlreadyJoined, roomID))
	}
	handle, receiver, err := s.manager.Join(s.id, roomID)
	if err != nil {
		if goerrors.Is(err, errors.ErrUnknownRoom) {
			return s.report(event.CodeUnknownRoom, err)
		}
		return err
	}
	if err := s.fanIn.Add(roomID, receiver); err != nil {
		s.manager.Leave(handle)
		return fmt.Errorf("subscribing to room %q: %w", roomID, err)
	}
	s.handles[roomID] = handle
	s.updateState()

	descriptor, err := s.manager.Descriptor(roomID)
	if err != nil {
		return err
	}
	if err := s.writer.WriteEvent(event.RoomJoined{Room: roomID, Descriptor: descriptor}); err != nil {
		return err
	}
	s.log.Debug("Joined room", "room_id", roomID)
	return s.publish(roomID, event.RoomParticipation{Room: roomID, Username: s.username, Status: event.Joined})
}

func (s *Session) leave(roomID domain.RoomID) error {
	handle, ok := s.handles[roomID]
	if !ok {
		return s.report(event.CodeNotMember, fmt.Errorf("%w: %q", errors.ErrNotMember, roomID))
	}
	s.fanIn.Remove(roomID)
	s.manager.Leave(handle)
	delete(s.handles, roomID)
	s.updateState()

	if err := s.writer.WriteEvent(event.RoomLeft{Room: roomID}); err != nil {
		return err
	}
	s.log.Debug("Left room", "room_id", roomID)
	return s.publish(roomID, event.RoomParticipation{Room: roomID, Username: s.username, Status: event.Left})
}

func (s *Session) send(cmd domain.SendMessageCommand) error {
	if _, ok := s.handles[cmd.Room]; !ok {
		return s.report(event.CodeNotMember, fmt.Errorf("%w: %q", errors.ErrNotMember, cmd.Room))
	}
	content := cmd.Content
	if s.moderator != nil {
		var words []string
		content, words = s.moderator.Censor(content)
		if len(words) > 0 {
			s.log.Info("Message moderated", "room_id", cmd.Room, "censored", len(words))
		}
	}
	return s.publish(cmd.Room, event.RoomMessage{
		ID:            uuid.New(),
		Room:          cmd.Room,
		SenderSession: s.id,
		Sender:        s.username,
		Content:       content,
		At:            time.Now().UTC(),
	})
}

func (s *Session) login(username string) error {
	if len(s.handles) > 0 {
		return s.report(event.CodeInvalidCommand, errors.ErrNickLocked)
	}
	s.log.Info("Username changed", "from", s.username, "to", username)
	s.username = username
	return s.writer.WriteEvent(event.LoginAccepted{SessionID: s.id, Username: s.username})
}

// publish fails the session when the room manager rejects a room the session is a member of.
func (s *Session) publish(roomID domain.RoomID, e event.RoomEvent) error {
	if err := s.manager.Publish(roomID, e); err != nil {
		s.log.Error("Publish rejected", "room_id", roomID, "error", err)
		s.report(event.CodeInternal, fmt.Errorf("room %q is unavailable", roomID))
		return err
	}
	return nil
}

// report sends an error event to the client. Only a write failure is returned.
func (s *Session) report(code event.ErrorCode, err error) error {
	if s.metrics != nil {
		s.metrics.SessionError(string(code))
	}
	s.log.Debug("Command rejected", "code", code, "error", err)
	return s.writer.WriteEvent(event.Error{Code: code, Reason: err.Error()})
}

func (s *Session) updateState() {
	if len(s.handles) > 0 {
		s.state.Store(int32(Active))
		return
	}
	s.state.Store(int32(Connected))
}

// release gives every handle back and tells the other members this session is gone.
func (s *Session) release(stop context.CancelFunc, readerDone <-chan struct{}) {
	stop()
	s.fanIn.Close()
	rooms := lo.Keys(s.handles)
	for _, roomID := range rooms {
		s.manager.Leave(s.handles[roomID])
		delete(s.handles, roomID)
		err := s.manager.Publish(roomID, event.RoomParticipation{Room: roomID, Username: s.username, Status: event.Left})
		if err != nil {
			s.log.Debug("Departure not broadcast", "room_id", roomID, "error", err)
		}
	}
	s.state.Store(int32(Closed))
	if err := s.closer.Close(); err != nil {
		s.log.Debug("Closing connection", "error", err)
	}
	<-readerDone
	s.log.Info("Session closed", "rooms_released", len(rooms))
}
