package runtime

import (
	"fmt"
	"log/slog"
	"roomchat/broadcast"
	"roomchat/contract"
	"roomchat/domain"
	"roomchat/domain/event"
	"roomchat/errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const DefaultBroadcastCapacity = 256

// UserSessionHandle proves that a session is counted as a member of a room.
// It is handed out by RoomManager.Join and consumed once by RoomManager.Leave.
type UserSessionHandle struct {
	sessionID uuid.UUID
	room      domain.RoomID
	joinedAt  time.Time
	receiver  *broadcast.Receiver[event.Event]
	released  atomic.Bool
}

func (h *UserSessionHandle) SessionID() uuid.UUID { return h.sessionID }
func (h *UserSessionHandle) Room() domain.RoomID { return h.room }
func (h *UserSessionHandle) JoinedAt() time.Time { return h.joinedAt }

type roomChannel struct {
	descriptor domain.RoomDescriptor
	channel    *broadcast.Channel[event.Event]
	members    atomic.Int64
}

// RoomManager owns one broadcast channel per room. The room set is fixed at
// construction so lookups need no lock; membership is an atomic counter.
type RoomManager struct {
	log     *slog.Logger
	order   []domain.RoomID
	rooms   map[domain.RoomID]*roomChannel
	metrics contract.IMetrics
}

// NewRoomManager creates every room channel of the registry up front.
// metrics may be nil.
func NewRoomManager(log *slog.Logger, registry *Registry, capacity int, metrics contract.IMetrics) *RoomManager {
	if capacity <= 0 {
		capacity = DefaultBroadcastCapacity
	}
	rooms := make(map[domain.RoomID]*roomChannel, registry.Len())
	for _, d := range registry.List() {
		rooms[d.ID] = &roomChannel{descriptor: d, channel: broadcast.New[event.Event](capacity)}
	}
	return &RoomManager{
		log:     log,
		order:   registry.IDs(),
		rooms:   rooms,
		metrics: metrics,
	}
}

func (m *RoomManager) lookup(roomID domain.RoomID) (*roomChannel, error) {
	rc, ok := m.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownRoom, roomID)
	}
	return rc, nil
}

// Join subscribes the session to the room and counts it as a member.
// An unknown room leaves every counter untouched.
func (m *RoomManager) Join(sessionID uuid.UUID, roomID domain.RoomID) (contract.RoomHandle, *broadcast.Receiver[event.Event], error) {
	rc, err := m.lookup(roomID)
	if err != nil {
		return nil, nil, err
	}
	receiver := rc.channel.Subscribe()
	members := rc.members.Add(1)
	if m.metrics != nil {
		m.metrics.RoomMembersDelta(roomID, 1)
	}
	m.log.Debug("Session joined room", "session_id", sessionID, "room_id", roomID, "members", members)

	handle := &UserSessionHandle{
		sessionID: sessionID,
		room:      roomID,
		joinedAt:  time.Now().UTC(),
		receiver:  receiver,
	}
	return handle, receiver, nil
}

// Leave gives a handle back. A handle already given back is reported and ignored.
func (m *RoomManager) Leave(handle contract.RoomHandle) {
	h, ok := handle.(*UserSessionHandle)
	if !ok || h == nil {
		m.log.Warn("Ignoring a handle not issued by the room manager")
		return
	}
	if !h.released.CompareAndSwap(false, true) {
		m.log.Warn("Room handle released twice", "session_id", h.sessionID, "room_id", h.room)
		return
	}
	rc, err := m.lookup(h.room)
	if err != nil {
		// Handles only exist for known rooms
		m.log.Error("Releasing handle of unknown room", "room_id", h.room, "error", err)
		return
	}
	h.receiver.Close()
	members := rc.members.Add(-1)
	if m.metrics != nil {
		m.metrics.RoomMembersDelta(h.room, -1)
	}
	m.log.Debug("Session left room", "session_id", h.sessionID, "room_id", h.room, "members", members)
}

// Publish hands the event to every current subscriber of the room. It never blocks.
func (m *RoomManager) Publish(roomID domain.RoomID, e event.Event) error {
	rc, err := m.lookup(roomID)
	if err != nil {
		return err
	}
	if _, err := rc.channel.Publish(e); err != nil {
		return fmt.Errorf("publishing to room %q: %w", roomID, err)
	}
	if m.metrics != nil {
		m.metrics.MessagePublished(roomID)
	}
	return nil
}

func (m *RoomManager) Descriptor(roomID domain.RoomID) (domain.RoomDescriptor, error) {
	rc, err := m.lookup(roomID)
	if err != nil {
		return domain.RoomDescriptor{}, err
	}
	return rc.descriptor, nil
}

// Members returns the number of outstanding handles for the room.
func (m *RoomManager) Members(roomID domain.RoomID) (int64, error) {
	rc, err := m.lookup(roomID)
	if err != nil {
		return 0, err
	}
	return rc.members.Load(), nil
}

// Stats returns a snapshot per room, in bootstrap order.
func (m *RoomManager) Stats() []domain.RoomStats {
	return lo.Map(m.order, func(id domain.RoomID, _ int) domain.RoomStats {
		rc := m.rooms[id]
		return domain.RoomStats{
			Room:        rc.descriptor,
			Members:     rc.members.Load(),
			Published:   rc.channel.Published(),
			Subscribers: rc.channel.Subscribers(),
		}
	})
}

// Close shuts every room channel. Receivers drain what is left then stop.
func (m *RoomManager) Close() {
	for _, id := range m.order {
		m.rooms[id].channel.Close()
	}
	m.log.Info("Room channels closed", "rooms", len(m.order))
}
