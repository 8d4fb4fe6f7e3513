package domain

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestRoomDescriptor_Validation(t *testing.T) {
	validate := validator.New()
	cases := []struct {
		name  string
		room  RoomDescriptor
		valid bool
	}{
		{"valid", RoomDescriptor{ID: "general", Name: "General"}, true},
		{"missing id", RoomDescriptor{Name: "General"}, false},
		{"missing name", RoomDescriptor{ID: "general"}, false},
		{"id too long", RoomDescriptor{ID: RoomID(strings.Repeat("x", 65)), Name: "X"}, false},
		{"name too long", RoomDescriptor{ID: "x", Name: strings.Repeat("x", 129)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validate.Struct(tc.room)
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestCommands_AddressTheirRoom(t *testing.T) {
	req := require.New(t)
	commands := []RoomCommand{
		JoinRoomCommand{Room: "general"},
		LeaveRoomCommand{Room: "general"},
		SendMessageCommand{Room: "general", Content: "hi"},
	}
	for _, cmd := range commands {
		req.Equal(RoomID("general"), cmd.RoomID())
	}
	req.Equal("general", RoomID("general").String())
}
