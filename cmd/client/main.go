package main

import (
	"bufio"
	goerrors "errors"
	"fmt"
	"io"
	"net"
	"os"
	"roomchat/domain"
	"roomchat/domain/event"
	"roomchat/protocol"
	"strings"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
)

var errUsage = goerrors.New("usage: /join room | /leave room | /nick name | /quit | room message")

func main() {
	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}
	if err := run(config.ServerAddress, config.Nickname, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Client terminated with error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (Config, error) {
	_ = godotenv.Load()
	var config Config
	_, err := env.UnmarshalFromEnviron(&config)
	return config, err
}

func run(address, nick string, in io.Reader, out io.Writer) error {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	defer conn.Close()

	events, commands := protocol.SplitClient(conn, protocol.Options{})
	if nick != "" {
		if err := commands.WriteCommand(domain.LoginCommand{Username: nick}); err != nil {
			return err
		}
	}

	done := make(chan error, 1)
	go func() {
		for {
			evt, err := events.ReadEvent()
			if err != nil {
				if goerrors.Is(err, io.EOF) {
					err = nil
				}
				done <- err
				return
			}
			_, _ = fmt.Fprintln(out, render(evt))
		}
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		cmd, err := parseLine(scanner.Text())
		if err != nil {
			_, _ = fmt.Fprintln(out, color.Yellow.Render(err.Error()))
			continue
		}
		if cmd == nil {
			continue
		}
		if err := commands.WriteCommand(cmd); err != nil {
			return err
		}
		if _, ok := cmd.(domain.QuitCommand); ok {
			return <-done
		}
	}
	// stdin closed: leave cleanly so the server releases our rooms
	if err := commands.WriteCommand(domain.QuitCommand{}); err != nil {
		return err
	}
	return <-done
}

// parseLine turns one line of user input into a command. Blank lines give nil.
func parseLine(line string) (domain.Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, nil
	}
	head, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch head {
	case "/quit":
		return domain.QuitCommand{}, nil
	case "/join", "/leave", "/nick":
		if rest == "" {
			return nil, errUsage
		}
		switch head {
		case "/join":
			return domain.JoinRoomCommand{Room: domain.RoomID(rest)}, nil
		case "/leave":
			return domain.LeaveRoomCommand{Room: domain.RoomID(rest)}, nil
		default:
			return domain.LoginCommand{Username: rest}, nil
		}
	}
	if strings.HasPrefix(head, "/") || rest == "" {
		return nil, errUsage
	}
	return domain.SendMessageCommand{Room: domain.RoomID(head), Content: rest}, nil
}

func render(evt event.Event) string {
	switch e := evt.(type) {
	case event.LoginAccepted:
		return color.Green.Sprintf("connected as %s", e.Username)
	case event.RoomJoined:
		return color.Green.Sprintf("joined #%s (%s)", e.Room, e.Descriptor.Name)
	case event.RoomLeft:
		return color.Green.Sprintf("left #%s", e.Room)
	case event.RoomMessage:
		return fmt.Sprintf("%s %s %s",
			color.Gray.Sprintf("[%s #%s]", e.At.Local().Format("15:04:05"), e.Room),
			color.Cyan.Sprintf("%s:", e.Sender),
			e.Content)
	case event.RoomParticipation:
		return color.Gray.Sprintf("* %s %s #%s", e.Username, e.Status, e.Room)
	case event.Lagged:
		return color.Yellow.Sprintf("! missed %d messages in #%s", e.Missed, e.Room)
	case event.Error:
		return color.Red.Sprintf("error %s: %s", e.Code, e.Reason)
	default:
		return fmt.Sprintf("%v", evt)
	}
}
