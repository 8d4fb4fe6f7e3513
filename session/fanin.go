// Package session runs one actor per client connection.
package session

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"roomchat/broadcast"
	"roomchat/contract"
	"roomchat/domain"
	"roomchat/domain/event"
	"roomchat/errors"
	"slices"
	"sync"
)

const DefaultFanInBufferSize = 64

// Item is one event pulled from a room, tagged with the subscription it came from.
type Item struct {
	Room  domain.RoomID
	Event event.Event
	gen   uint64
}

type source struct {
	gen      uint64
	receiver *broadcast.Receiver[event.Event]
	cancel   context.CancelFunc
}

// FanIn merges a changing set of room receivers into one stream.
// Each receiver is drained by its own goroutine, so a quiet room never delays a busy one.
// Items of a removed room that are still buffered are dropped by Admit.
type FanIn struct {
	log     *slog.Logger
	metrics contract.IMetrics
	out     chan Item
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	sources map[domain.RoomID]*source
	nextGen uint64
}

func NewFanIn(log *slog.Logger, bufferSize int, metrics contract.IMetrics) *FanIn {
	if bufferSize <= 0 {
		bufferSize = DefaultFanInBufferSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &FanIn{
		log:     log,
		metrics: metrics,
		out:     make(chan Item, bufferSize),
		ctx:     ctx,
		cancel:  cancel,
		sources: make(map[domain.RoomID]*source),
	}
}

// Add starts pulling events from receiver under the room id.
func (f *FanIn) Add(roomID domain.RoomID, receiver *broadcast.Receiver[event.Event]) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ctx.Err() != nil {
		return errors.ErrClosed
	}
	if _, ok := f.sources[roomID]; ok {
		return fmt.Errorf("%w: %q", errors.ErrAlreadyJoined, roomID)
	}
	f.nextGen++
	ctx, cancel := context.WithCancel(f.ctx)
	src := &source{gen: f.nextGen, receiver: receiver, cancel: cancel}
	f.sources[roomID] = src

	f.wg.Add(1)
	go f.pump(ctx, roomID, src)
	return nil
}

// Remove stops pulling from the room. No event of that room is admitted afterwards.
func (f *FanIn) Remove(roomID domain.RoomID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[roomID]
	if !ok {
		return false
	}
	src.cancel()
	delete(f.sources, roomID)
	return true
}

// Out is the merged stream. Every item read from it must go through Admit.
func (f *FanIn) Out() <-chan Item {
	return f.out
}

// Admit returns the event of item if its room subscription is still the current one.
func (f *FanIn) Admit(item Item) (event.Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[item.Room]
	if !ok || src.gen != item.gen {
		return nil, false
	}
	return item.Event, true
}

// Next blocks until an admitted event is available or ctx is done.
func (f *FanIn) Next(ctx context.Context) (event.Event, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.ctx.Done():
			return nil, errors.ErrClosed
		case item := <-f.out:
			if e, ok := f.Admit(item); ok {
				return e, nil
			}
		}
	}
}

// Rooms lists the current sources, sorted.
func (f *FanIn) Rooms() []domain.RoomID {
	f.mu.Lock()
	defer f.mu.Unlock()
	rooms := make([]domain.RoomID, 0, len(f.sources))
	for id := range f.sources {
		rooms = append(rooms, id)
	}
	slices.Sort(rooms)
	return rooms
}

func (f *FanIn) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources)
}

// Close stops every pump and waits for them.
func (f *FanIn) Close() {
	f.mu.Lock()
	f.cancel()
	f.sources = make(map[domain.RoomID]*source)
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *FanIn) pump(ctx context.Context, roomID domain.RoomID, src *source) {
	defer f.wg.Done()
	for {
		e, err := src.receiver.Recv(ctx)
		if err != nil {
			var lag *broadcast.LagError
			switch {
			case goerrors.As(err, &lag):
				f.log.Warn("Session lagged behind room", "room_id", roomID, "missed", lag.Missed)
				if f.metrics != nil {
					f.metrics.Lagged(roomID, lag.Missed)
				}
				e = event.Lagged{Room: roomID, Missed: lag.Missed}
			case goerrors.Is(err, errors.ErrClosed):
				f.log.Debug("Room channel closed", "room_id", roomID)
				return
			default:
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case f.out <- Item{Room: roomID, Event: e, gen: src.gen}:
		}
	}
}
