package protocol

import (
	"bytes"
	"io"
	"net"
	"roomchat/domain"
	"roomchat/domain/event"
	"roomchat/errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSplitServer_Reads_Newline_Delimited_Commands(t *testing.T) {
	req := require.New(t)
	input := "{\"t\":\"join_room\",\"r\":\"general\"}\n\n   \n{\"t\":\"send_message\",\"r\":\"general\",\"c\":\"hi\"}\n"
	reader, _ := SplitServer(&rwBuffer{in: strings.NewReader(input)}, Options{})

	cmd, err := reader.ReadCommand()
	req.NoError(err)
	req.Equal(domain.JoinRoomCommand{Room: "general"}, cmd)

	// Blank lines are skipped
	cmd, err = reader.ReadCommand()
	req.NoError(err)
	req.Equal(domain.SendMessageCommand{Room: "general", Content: "hi"}, cmd)

	// End of stream is a clean io.EOF
	_, err = reader.ReadCommand()
	req.ErrorIs(err, io.EOF)
}

func TestSplitServer_Oversized_Frame_Is_Malformed(t *testing.T) {
	req := require.New(t)
	input := `{"t":"send_message","r":"general","c":"` + strings.Repeat("x", 200) + "\"}\n"
	reader, _ := SplitServer(&rwBuffer{in: strings.NewReader(input)}, Options{MaxFrameSize: 64})

	_, err := reader.ReadCommand()
	req.ErrorIs(err, errors.ErrMalformedFrame)
	req.ErrorIs(err, errors.ErrFrameTooLarge)
}

func TestSplitServer_Writes_One_Line_Per_Event(t *testing.T) {
	req := require.New(t)
	rw := &rwBuffer{in: strings.NewReader("")}
	_, writer := SplitServer(rw, Options{})

	req.NoError(writer.WriteEvent(event.RoomLeft{Room: "general"}))
	req.NoError(writer.WriteEvent(event.Error{Code: event.CodeNotMember, Reason: "x"}))

	lines := strings.Split(strings.TrimSuffix(rw.out.String(), "\n"), "\n")
	req.Len(lines, 2)
	req.JSONEq(`{"t":"room_left","r":"general"}`, lines[0])
}

func TestSplit_Client_And_Server_Over_A_Pipe(t *testing.T) {
	req := require.New(t)
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	commands, events := SplitServer(serverConn, Options{WriteTimeout: time.Second})
	incoming, outgoing := SplitClient(clientConn, Options{WriteTimeout: time.Second})

	// When the client sends a command
	go func() { _ = outgoing.WriteCommand(domain.JoinRoomCommand{Room: "general"}) }()
	cmd, err := commands.ReadCommand()
	req.NoError(err)
	req.Equal(domain.JoinRoomCommand{Room: "general"}, cmd)

	// And the server answers
	go func() { _ = events.WriteEvent(event.RoomLeft{Room: "general"}) }()
	evt, err := incoming.ReadEvent()
	req.NoError(err)
	req.Equal(event.RoomLeft{Room: "general"}, evt)
}

type rwBuffer struct {
	in  io.Reader
	out bytes.Buffer
}

func (b *rwBuffer) Read(p []byte) (int, error)  { return b.in.Read(p) }
func (b *rwBuffer) Write(p []byte) (int, error) { return b.out.Write(p) }
