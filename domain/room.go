// Package domain contains core concepts of the chat system.
// This file defines Room identities as loaded at bootstrap.
// No runtime, network, or UI logic should be added here.
package domain

// RoomID identifies a room for the whole lifetime of the server.
type RoomID string

func (r RoomID) String() string {
	return string(r)
}

// RoomDescriptor is read-only once the registry is built.
type RoomDescriptor struct {
	ID   RoomID `json:"id" validate:"required,max=64"`
	Name string `json:"name" validate:"required,max=128"`
}

// RoomStats is a point-in-time view of a room's activity.
type RoomStats struct {
	Room        RoomDescriptor `json:"room"`
	Members     int64          `json:"members"`
	Published   uint64         `json:"published"`
	Subscribers int            `json:"subscribers"`
}
