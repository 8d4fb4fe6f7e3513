package protocol

import (
	"bufio"
	"bytes"
	goerrors "errors"
	"fmt"
	"io"
	"roomchat/domain"
	"roomchat/domain/event"
	"roomchat/errors"
	"sync"
	"time"
)

const DefaultMaxFrameSize = 64 * 1024

// CommandReader is the server side read half of a connection.
// It returns io.EOF when the peer closed the stream cleanly.
type CommandReader interface {
	ReadCommand() (domain.Command, error)
}

// EventWriter is the server side write half of a connection.
type EventWriter interface {
	WriteEvent(evt event.Event) error
}

// EventReader is the client side read half of a connection.
type EventReader interface {
	ReadEvent() (event.Event, error)
}

// CommandWriter is the client side write half of a connection.
type CommandWriter interface {
	WriteCommand(cmd domain.Command) error
}

type Options struct {
	MaxFrameSize     int
	MaxContentLength int
	// IdleTimeout bounds the wait for the next frame. Zero waits forever.
	IdleTimeout time.Duration
	// WriteTimeout bounds every frame write. Zero disables it.
	WriteTimeout time.Duration
}

func (o Options) maxFrameSize() int {
	if o.MaxFrameSize <= 0 {
		return DefaultMaxFrameSize
	}
	return o.MaxFrameSize
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// lineReader reads one frame per '\n' terminated line.
type lineReader struct {
	r       io.Reader
	scanner *bufio.Scanner
	codec   Codec
	opts    Options
}

func newLineReader(r io.Reader, opts Options) *lineReader {
	scanner := bufio.NewScanner(r)
	size := opts.maxFrameSize()
	scanner.Buffer(make([]byte, 0, min(size, 4096)), size)
	return &lineReader{r: r, scanner: scanner, codec: NewCodec(opts.MaxContentLength), opts: opts}
}

func (l *lineReader) next() ([]byte, error) {
	for {
		if d, ok := l.r.(readDeadliner); ok && l.opts.IdleTimeout > 0 {
			if err := d.SetReadDeadline(time.Now().Add(l.opts.IdleTimeout)); err != nil {
				return nil, err
			}
		}
		if !l.scanner.Scan() {
			err := l.scanner.Err()
			switch {
			case err == nil:
				return nil, io.EOF
			case goerrors.Is(err, bufio.ErrTooLong):
				return nil, fmt.Errorf("%w: %w", errors.ErrMalformedFrame, errors.ErrFrameTooLarge)
			default:
				return nil, err
			}
		}
		line := l.scanner.Bytes()
		// Blank lines act as keep-alives.
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return line, nil
	}
}

func (l *lineReader) ReadCommand() (domain.Command, error) {
	line, err := l.next()
	if err != nil {
		return nil, err
	}
	return l.codec.DecodeCommand(line)
}

func (l *lineReader) ReadEvent() (event.Event, error) {
	line, err := l.next()
	if err != nil {
		return nil, err
	}
	return l.codec.DecodeEvent(line)
}

// lineWriter serializes frame writes; each frame is written with a single Write call.
type lineWriter struct {
	mu    sync.Mutex
	w     io.Writer
	codec Codec
	opts  Options
}

func newLineWriter(w io.Writer, opts Options) *lineWriter {
	return &lineWriter{w: w, codec: NewCodec(opts.MaxContentLength), opts: opts}
}

func (l *lineWriter) write(data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if d, ok := l.w.(writeDeadliner); ok && l.opts.WriteTimeout > 0 {
		if err := d.SetWriteDeadline(time.Now().Add(l.opts.WriteTimeout)); err != nil {
			return err
		}
	}
	_, err := l.w.Write(append(data, '\n'))
	return err
}

func (l *lineWriter) WriteEvent(evt event.Event) error {
	data, err := l.codec.EncodeEvent(evt)
	if err != nil {
		return err
	}
	return l.write(data)
}

func (l *lineWriter) WriteCommand(cmd domain.Command) error {
	data, err := l.codec.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return l.write(data)
}

// SplitServer splits a raw stream into its server halves.
// The halves are independent: they can be used from two goroutines.
func SplitServer(rw io.ReadWriter, opts Options) (CommandReader, EventWriter) {
	return newLineReader(rw, opts), newLineWriter(rw, opts)
}

// SplitClient splits a raw stream into its client halves.
func SplitClient(rw io.ReadWriter, opts Options) (EventReader, CommandWriter) {
	return newLineReader(rw, opts), newLineWriter(rw, opts)
}
