// Package session sequences typed-buffer batches for publication.
//
// A Session owns the framing of one producer's traffic: named buffer pairs,
// the accumulated command text, and the control sentinels. Everything goes
// out through a single Sender in the exact order the consumer's state
// machine expects.
//
// # Batch Framing
//
// A batch carrying N buffers is exactly 2N+2 discrete messages:
//
//	header_1    "data|x|d|100|(100,)"
//	payload_1   raw native-endian bytes, count x width
//	...
//	header_N
//	payload_N
//	commands    the accumulated (dedented) script text, one message
//	"finalize"  batch-termination sentinel
//
// The consumer pairs each header with the payload that follows it, executes
// the command text on arrival, and resets its per-batch state on "finalize".
// A session sends "exit" exactly once when it closes, instructing the
// consumer to terminate.
//
// # Validation
//
// Every buffer is checked before anything is sent for it: the name must be
// valid for the header format, the element type must have a registry entry,
// and the payload length must equal count x width. A failed check surfaces
// a wrapped ErrUnsupportedType, ErrShapeMismatch, or wire.ErrBadName and
// leaves the batch open with earlier pairs already published; the consumer
// discards incomplete batches by framing.
//
// # Concurrency
//
// Session methods are not safe for concurrent use. The session holds
// mutable state (the command buffer, batch counters) with no internal
// locking; callers introducing multiple producer goroutines must serialize
// all operations externally. Payload bytes are borrowed, never retained
// past the Send call that publishes them.
package session

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/muralivnv/gopyplot/buffers"
	"github.com/muralivnv/gopyplot/dedent"
	"github.com/muralivnv/gopyplot/wire"
)

var (
	// ErrClosed is returned by operations invoked after Close.
	ErrClosed = errors.New("session closed")

	// ErrUnsupportedType is returned when a buffer's element type has no
	// registry entry (its descriptor is the sentinel).
	ErrUnsupportedType = errors.New("unsupported element type")

	// ErrShapeMismatch is returned when a buffer's payload length does not
	// equal its element count times its element width.
	ErrShapeMismatch = errors.New("payload size does not match shape")
)

// Sender publishes one discrete framed message. Send blocks until the
// transport has accepted the message for delivery and must not retain data
// after it returns.
type Sender interface {
	Send(data []byte) error
}

// Logger is an optional interface for debug logging.
// If not set, no logging is performed.
type Logger interface {
	// Printf formats and logs a debug message.
	Printf(format string, v ...interface{})
}

// NamedBuffer pairs a caller-chosen wire name with the buffer to publish
// under it. Names are always explicit; nothing is derived from Go
// identifiers.
type NamedBuffer struct {
	Name string
	Data buffers.Buffer
}

// Named is a convenience constructor for NamedBuffer.
func Named(name string, data buffers.Buffer) NamedBuffer {
	return NamedBuffer{Name: name, Data: data}
}

// Session accumulates command text and publishes buffer batches through a
// Sender. Create one with New; see the package documentation for the
// framing and concurrency contracts.
type Session struct {
	id     uuid.UUID
	sender Sender
	logger Logger

	cmds      strings.Builder
	batchOpen bool
	sentPairs int // buffer pairs published in the open batch
	batches   int // batches flushed so far

	closed   bool
	exitOnce sync.Once
}

// Option configures a Session.
type Option func(*Session)

// WithID sets the session identity instead of generating one.
func WithID(id uuid.UUID) Option {
	return func(s *Session) { s.id = id }
}

// WithLogger sets the logger for debug logging.
// This is optional - if not set, no logging is performed.
func WithLogger(l Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates a session that publishes through sender.
func New(sender Sender, opts ...Option) *Session {
	s := &Session{
		id:     uuid.New(),
		sender: sender,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the unique identifier of the session.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// EnableDebugLogging enables debug logging to stderr using the standard log package.
func (s *Session) EnableDebugLogging() {
	s.logger = log.New(os.Stderr, "[gopyplot] ", log.LstdFlags)
}

// BeginBatch marks the start of a new batch. Calling it is optional: the
// first Push, PushRaw, or SendBuffers after a flush opens a batch
// implicitly. On an already-open batch it is a no-op.
func (s *Session) BeginBatch() error {
	if s.closed {
		return ErrClosed
	}
	s.openBatch()
	return nil
}

// Push appends one line of command text to the current batch, adding the
// trailing newline.
func (s *Session) Push(text string) error {
	if s.closed {
		return ErrClosed
	}
	s.openBatch()
	s.cmds.WriteString(text)
	s.cmds.WriteByte('\n')
	return nil
}

// PushRaw dedents a multi-line block and appends it to the current batch
// verbatim. Use it for script fragments written inline at the indentation
// of the surrounding Go source.
func (s *Session) PushRaw(raw string) error {
	if s.closed {
		return ErrClosed
	}
	s.openBatch()
	s.cmds.WriteString(dedent.Dedent(raw))
	return nil
}

// SendBuffers publishes the given pairs strictly in caller order: for each
// pair a header message, then the payload bytes aliasing the buffer's own
// storage. On the first failed pair SendBuffers stops and returns; pairs
// already published stay published and the batch stays open.
func (s *Session) SendBuffers(pairs ...NamedBuffer) error {
	if s.closed {
		return ErrClosed
	}
	s.openBatch()
	for _, p := range pairs {
		if err := s.sendPair(p); err != nil {
			return err
		}
	}
	return nil
}

// Flush publishes the accumulated command text as one message (possibly
// empty), then the "finalize" sentinel, closing the batch. The command
// buffer and batch state reset whether or not the sends succeed: an
// interrupted batch is the consumer's discard case, never resent.
func (s *Session) Flush() error {
	if s.closed {
		return ErrClosed
	}
	s.openBatch()
	text := s.cmds.String()
	pairs := s.sentPairs

	s.cmds.Reset()
	s.batchOpen = false
	s.sentPairs = 0

	if err := s.sender.Send([]byte(text)); err != nil {
		return fmt.Errorf("send command text: %w", err)
	}
	if err := s.sender.Send([]byte(wire.FinalizeMessage)); err != nil {
		return fmt.Errorf("send finalize: %w", err)
	}
	s.batches++
	s.logf("[session] batch %d flushed: %d buffer pairs, %d command bytes",
		s.batches, pairs, len(text))
	return nil
}

// Close sends the "exit" sentinel exactly once and marks the session
// closed. The send is best-effort and happens even after earlier send
// failures. Close does not flush a pending batch; the consumer discards it
// by framing. Repeated Close calls return nil.
func (s *Session) Close() error {
	var err error
	s.exitOnce.Do(func() {
		s.closed = true
		if sendErr := s.sender.Send([]byte(wire.ExitMessage)); sendErr != nil {
			err = fmt.Errorf("send exit: %w", sendErr)
		}
		s.logf("[session] closed after %d batches", s.batches)
	})
	return err
}

func (s *Session) openBatch() {
	if s.batchOpen {
		return
	}
	s.batchOpen = true
	s.sentPairs = 0
	s.logf("[session] batch %d open", s.batches+1)
}

func (s *Session) sendPair(p NamedBuffer) error {
	if err := wire.ValidateName(p.Name); err != nil {
		return err
	}
	if p.Data == nil {
		return fmt.Errorf("buffer %q: %w: nil buffer", p.Name, ErrUnsupportedType)
	}
	d := p.Data.Descriptor()
	if !d.Valid() {
		return fmt.Errorf("buffer %q: %w", p.Name, ErrUnsupportedType)
	}
	count := p.Data.Len()
	payload := p.Data.Bytes()
	if len(payload) != count*d.Width {
		return fmt.Errorf("buffer %q: %w: %d payload bytes for %d %d-byte elements",
			p.Name, ErrShapeMismatch, len(payload), count, d.Width)
	}

	header := wire.BuildHeader(p.Name, d, count, p.Data.Shape())
	s.logf("[session] sending %s", header)
	if err := s.sender.Send([]byte(header)); err != nil {
		return fmt.Errorf("send header for %q: %w", p.Name, err)
	}
	if err := s.sender.Send(payload); err != nil {
		return fmt.Errorf("send payload for %q: %w", p.Name, err)
	}
	s.sentPairs++
	return nil
}

// logf logs a debug message if a logger is configured.
func (s *Session) logf(format string, v ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, v...)
	}
}
