// Package protocol defines how Commands and Events travel on a byte stream.
//
// Every frame is a JSON object tagged by "t" with short field names:
//
//	{"t":"join_room","r":"general"}
//	{"t":"user_message","i":"...","r":"general","u":"alice","c":"hi","at":"..."}
//
// The framing itself (newline or WebSocket message) lives in stream.go and websocket.go.
package protocol

import (
	"encoding/json"
	"fmt"
	"roomchat/domain"
	"roomchat/domain/event"
	"roomchat/errors"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const DefaultMaxContentLength = 2000

type envelope struct {
	T string `json:"t"`
}

type loginFrame struct {
	T        string `json:"t"`
	Username string `json:"u"`
}

type roomFrame struct {
	T    string `json:"t"`
	Room string `json:"r"`
}

type sendMessageFrame struct {
	T       string `json:"t"`
	Room    string `json:"r"`
	Content string `json:"c"`
}

type loginAcceptedFrame struct {
	T        string `json:"t"`
	Session  string `json:"s"`
	Username string `json:"u"`
}

type roomJoinedFrame struct {
	T    string `json:"t"`
	Room string `json:"r"`
	Name string `json:"n"`
}

type userMessageFrame struct {
	T       string    `json:"t"`
	ID      string    `json:"i"`
	Room    string    `json:"r"`
	Session string    `json:"sid,omitempty"`
	User    string    `json:"u"`
	Content string    `json:"c"`
	At      time.Time `json:"at"`
}

type participationFrame struct {
	T      string `json:"t"`
	Room   string `json:"r"`
	User   string `json:"u"`
	Status string `json:"s"`
}

type laggedFrame struct {
	T      string `json:"t"`
	Room   string `json:"r"`
	Missed uint64 `json:"m"`
}

type errorFrame struct {
	T      string `json:"t"`
	Code   string `json:"e"`
	Reason string `json:"m"`
}

// Codec turns frames into domain values and back. It is safe for concurrent use.
type Codec struct {
	validate         *validator.Validate
	maxContentLength int
}

func NewCodec(maxContentLength int) Codec {
	if maxContentLength <= 0 {
		maxContentLength = DefaultMaxContentLength
	}
	return Codec{validate: validator.New(), maxContentLength: maxContentLength}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errors.ErrMalformedFrame, fmt.Sprintf(format, args...))
}

// DecodeCommand parses and validates a client frame.
// Every failure wraps errors.ErrMalformedFrame.
func (c Codec) DecodeCommand(data []byte) (domain.Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, malformed("invalid json: %v", err)
	}

	var cmd domain.Command
	switch env.T {
	case "login":
		var f loginFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, malformed("login: %v", err)
		}
		cmd = domain.LoginCommand{Username: f.Username}
	case "join_room":
		var f roomFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, malformed("join_room: %v", err)
		}
		cmd = domain.JoinRoomCommand{Room: domain.RoomID(f.Room)}
	case "leave_room":
		var f roomFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, malformed("leave_room: %v", err)
		}
		cmd = domain.LeaveRoomCommand{Room: domain.RoomID(f.Room)}
	case "send_message":
		var f sendMessageFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, malformed("send_message: %v", err)
		}
		if utf8.RuneCountInString(f.Content) > c.maxContentLength {
			return nil, malformed("content longer than %d characters", c.maxContentLength)
		}
		cmd = domain.SendMessageCommand{Room: domain.RoomID(f.Room), Content: f.Content}
	case "quit":
		return domain.QuitCommand{}, nil
	default:
		return nil, malformed("unknown command %q", env.T)
	}

	if err := c.validate.Struct(cmd); err != nil {
		return nil, malformed("%s: %v", cmd.Name(), err)
	}
	return cmd, nil
}

func (c Codec) EncodeCommand(cmd domain.Command) ([]byte, error) {
	switch v := cmd.(type) {
	case domain.LoginCommand:
		return json.Marshal(loginFrame{T: v.Name(), Username: v.Username})
	case domain.JoinRoomCommand:
		return json.Marshal(roomFrame{T: v.Name(), Room: v.Room.String()})
	case domain.LeaveRoomCommand:
		return json.Marshal(roomFrame{T: v.Name(), Room: v.Room.String()})
	case domain.SendMessageCommand:
		return json.Marshal(sendMessageFrame{T: v.Name(), Room: v.Room.String(), Content: v.Content})
	case domain.QuitCommand:
		return json.Marshal(envelope{T: v.Name()})
	default:
		return nil, fmt.Errorf("unsupported command %T", cmd)
	}
}

func (c Codec) EncodeEvent(evt event.Event) ([]byte, error) {
	t := string(evt.Type())
	switch v := evt.(type) {
	case event.LoginAccepted:
		return json.Marshal(loginAcceptedFrame{T: t, Session: v.SessionID.String(), Username: v.Username})
	case event.RoomJoined:
		return json.Marshal(roomJoinedFrame{T: t, Room: v.Room.String(), Name: v.Descriptor.Name})
	case event.RoomLeft:
		return json.Marshal(roomFrame{T: t, Room: v.Room.String()})
	case event.RoomMessage:
		return json.Marshal(userMessageFrame{
			T:       t,
			ID:      v.ID.String(),
			Room:    v.Room.String(),
			Session: sessionString(v.SenderSession),
			User:    v.Sender,
			Content: v.Content,
			At:      v.At,
		})
	case event.RoomParticipation:
		return json.Marshal(participationFrame{T: t, Room: v.Room.String(), User: v.Username, Status: string(v.Status)})
	case event.Lagged:
		return json.Marshal(laggedFrame{T: t, Room: v.Room.String(), Missed: v.Missed})
	case event.Error:
		return json.Marshal(errorFrame{T: t, Code: string(v.Code), Reason: v.Reason})
	default:
		return nil, fmt.Errorf("unsupported event %T", evt)
	}
}

func sessionString(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	return id.String()
}

// DecodeEvent parses a server frame. Every failure wraps errors.ErrMalformedFrame.
func (c Codec) DecodeEvent(data []byte) (event.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, malformed("invalid json: %v", err)
	}

	switch event.Type(env.T) {
	case event.LoginAcceptedType:
		var f loginAcceptedFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, malformed("%s: %v", env.T, err)
		}
		id, err := uuid.Parse(f.Session)
		if err != nil {
			return nil, malformed("%s: %v", env.T, err)
		}
		return event.LoginAccepted{SessionID: id, Username: f.Username}, nil
	case event.RoomJoinedType:
		var f roomJoinedFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, malformed("%s: %v", env.T, err)
		}
		id := domain.RoomID(f.Room)
		return event.RoomJoined{Room: id, Descriptor: domain.RoomDescriptor{ID: id, Name: f.Name}}, nil
	case event.RoomLeftType:
		var f roomFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, malformed("%s: %v", env.T, err)
		}
		return event.RoomLeft{Room: domain.RoomID(f.Room)}, nil
	case event.RoomMessageType:
		var f userMessageFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, malformed("%s: %v", env.T, err)
		}
		id, err := uuid.Parse(f.ID)
		if err != nil {
			return nil, malformed("%s: %v", env.T, err)
		}
		var sender uuid.UUID
		if f.Session != "" {
			if sender, err = uuid.Parse(f.Session); err != nil {
				return nil, malformed("%s: %v", env.T, err)
			}
		}
		return event.RoomMessage{
			ID:            id,
			Room:          domain.RoomID(f.Room),
			SenderSession: sender,
			Sender:        f.User,
			Content:       f.Content,
			At:            f.At,
		}, nil
	case event.RoomParticipationType:
		var f participationFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, malformed("%s: %v", env.T, err)
		}
		return event.RoomParticipation{
			Room:     domain.RoomID(f.Room),
			Username: f.User,
			Status:   event.ParticipationStatus(f.Status),
		}, nil
	case event.LaggedType:
		var f laggedFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, malformed("%s: %v", env.T, err)
		}
		return event.Lagged{Room: domain.RoomID(f.Room), Missed: f.Missed}, nil
	case event.ErrorType:
		var f errorFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, malformed("%s: %v", env.T, err)
		}
		return event.Error{Code: event.ErrorCode(f.Code), Reason: f.Reason}, nil
	default:
		return nil, malformed("unknown event %q", env.T)
	}
}
