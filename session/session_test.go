package session

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unsafe"

	"github.com/google/uuid"

	"github.com/muralivnv/gopyplot/buffers"
	"github.com/muralivnv/gopyplot/wire"
)

// mockSender records every published message in order. failAt makes the
// n-th Send call (1-based) return errSend without recording.
type mockSender struct {
	messages [][]byte
	calls    int
	failAt   int
}

var errSend = errors.New("send rejected")

func newMockSender() *mockSender {
	return &mockSender{}
}

func (m *mockSender) Send(data []byte) error {
	m.calls++
	if m.failAt > 0 && m.calls == m.failAt {
		return errSend
	}
	m.messages = append(m.messages, data)
	return nil
}

func (m *mockSender) strings() []string {
	out := make([]string, len(m.messages))
	for i, msg := range m.messages {
		out[i] = string(msg)
	}
	return out
}

func TestBatchFraming(t *testing.T) {
	sender := newMockSender()
	s := New(sender)

	xs := []float64{1.5, 2.5, 3.5}
	m, err := buffers.NewMatrix(2, 2, []int32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("NewMatrix failed: %v", err)
	}

	if err := s.Push("a = 1"); err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if err := s.SendBuffers(
		Named("x", buffers.Vector[float64](xs)),
		Named("m", m),
	); err != nil {
		t.Fatalf("SendBuffers failed: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// Two pairs => 2*2+2 = 6 messages.
	if len(sender.messages) != 6 {
		t.Fatalf("got %d messages, want 6: %q", len(sender.messages), sender.strings())
	}

	if got := string(sender.messages[0]); got != "data|x|d|3|(3,)" {
		t.Errorf("header 1 = %q, want %q", got, "data|x|d|3|(3,)")
	}
	if got := len(sender.messages[1]); got != 3*8 {
		t.Errorf("payload 1 length = %d, want %d", got, 3*8)
	}
	if got := string(sender.messages[2]); got != "data|m|i|4|(2,2)" {
		t.Errorf("header 2 = %q, want %q", got, "data|m|i|4|(2,2)")
	}
	if got := len(sender.messages[3]); got != 4*4 {
		t.Errorf("payload 2 length = %d, want %d", got, 4*4)
	}
	if got := string(sender.messages[4]); got != "a = 1\n" {
		t.Errorf("command text = %q, want %q", got, "a = 1\n")
	}
	if got := string(sender.messages[5]); got != wire.FinalizeMessage {
		t.Errorf("sentinel = %q, want %q", got, wire.FinalizeMessage)
	}
}

func TestFlushEmptyBatch(t *testing.T) {
	sender := newMockSender()
	s := New(sender)

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	want := []string{"", wire.FinalizeMessage}
	got := sender.strings()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("messages = %q, want %q", got, want)
	}
}

func TestPushAppendsNewline(t *testing.T) {
	sender := newMockSender()
	s := New(sender)

	s.Push("import numpy as np")
	s.Push("x = np.arange(10)")
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	want := "import numpy as np\nx = np.arange(10)\n"
	if got := string(sender.messages[0]); got != want {
		t.Errorf("command text = %q, want %q", got, want)
	}
}

func TestPushRawDedents(t *testing.T) {
	sender := newMockSender()
	s := New(sender)

	s.Push("plt.figure()")
	s.PushRaw(`
		plt.plot(x, y)
		plt.grid(True)
`)
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	want := "plt.figure()\nplt.plot(x, y)\nplt.grid(True)\n"
	if got := string(sender.messages[0]); got != want {
		t.Errorf("command text = %q, want %q", got, want)
	}
}

func TestFlushResetsCommandBuffer(t *testing.T) {
	sender := newMockSender()
	s := New(sender)

	s.Push("first")
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	s.Push("second")
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	// Batch 2's command message must not carry batch 1's text.
	if got := string(sender.messages[2]); got != "second\n" {
		t.Errorf("batch 2 command text = %q, want %q", got, "second\n")
	}
}

func TestFlushResetsEvenOnSendFailure(t *testing.T) {
	sender := newMockSender()
	sender.failAt = 1 // command-text send fails
	s := New(sender)

	s.Push("doomed")
	if err := s.Flush(); !errors.Is(err, errSend) {
		t.Fatalf("Flush error = %v, want errSend", err)
	}

	// The buffer was still cleared: the next batch starts fresh.
	s.Push("fresh")
	if err := s.Flush(); err != nil {
		t.Fatalf("second Flush failed: %v", err)
	}
	if got := string(sender.messages[0]); got != "fresh\n" {
		t.Errorf("command text after failed flush = %q, want %q", got, "fresh\n")
	}
}

func TestPayloadAliasesCallerStorage(t *testing.T) {
	sender := newMockSender()
	s := New(sender)

	xs := []float64{1, 2, 3}
	if err := s.SendBuffers(Named("x", buffers.Vector[float64](xs))); err != nil {
		t.Fatalf("SendBuffers failed: %v", err)
	}

	payload := sender.messages[1]
	if unsafe.Pointer(&payload[0]) != unsafe.Pointer(&xs[0]) {
		t.Error("payload message does not alias caller storage")
	}
}

func TestCloseSendsExitOnce(t *testing.T) {
	sender := newMockSender()
	s := New(sender)

	s.Push("x")
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	exits := 0
	for _, msg := range sender.strings() {
		if msg == wire.ExitMessage {
			exits++
		}
	}
	if exits != 1 {
		t.Errorf("got %d exit messages, want exactly 1", exits)
	}
}

func TestCloseAfterSendFailure(t *testing.T) {
	sender := newMockSender()
	sender.failAt = 1
	s := New(sender)

	s.Push("x")
	if err := s.Flush(); !errors.Is(err, errSend) {
		t.Fatalf("Flush error = %v, want errSend", err)
	}

	// Teardown is still attempted after a failed batch.
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	got := sender.strings()
	if len(got) == 0 || got[len(got)-1] != wire.ExitMessage {
		t.Errorf("messages = %q, want trailing %q", got, wire.ExitMessage)
	}
}

func TestOperationsAfterClose(t *testing.T) {
	s := New(newMockSender())
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	checks := []struct {
		name string
		err  error
	}{
		{"BeginBatch", s.BeginBatch()},
		{"Push", s.Push("x")},
		{"PushRaw", s.PushRaw("x")},
		{"SendBuffers", s.SendBuffers(Named("x", buffers.Vector[int32]{1}))},
		{"Flush", s.Flush()},
	}
	for _, c := range checks {
		if !errors.Is(c.err, ErrClosed) {
			t.Errorf("%s after Close = %v, want ErrClosed", c.name, c.err)
		}
	}
}

// sentinelBuffer reports the unsupported-type descriptor.
type sentinelBuffer struct{}

func (sentinelBuffer) Descriptor() wire.Descriptor { return wire.Sentinel }
func (sentinelBuffer) Len() int                    { return 3 }
func (sentinelBuffer) Shape() string               { return "(3,)" }
func (sentinelBuffer) Bytes() []byte               { return []byte{1, 2, 3} }

// shortBuffer reports fewer payload bytes than count x width.
type shortBuffer struct{}

func (shortBuffer) Descriptor() wire.Descriptor { return wire.Of[float64]() }
func (shortBuffer) Len() int                    { return 3 }
func (shortBuffer) Shape() string               { return "(3,)" }
func (shortBuffer) Bytes() []byte               { return make([]byte, 5) }

func TestSendBuffersValidationGate(t *testing.T) {
	tests := []struct {
		name    string
		pair    NamedBuffer
		wantErr error
	}{
		{"empty name", Named("", buffers.Vector[float64]{1}), wire.ErrBadName},
		{"name with delimiter", Named("a|b", buffers.Vector[float64]{1}), wire.ErrBadName},
		{"unsupported element type", Named("x", sentinelBuffer{}), ErrUnsupportedType},
		{"nil buffer", Named("x", nil), ErrUnsupportedType},
		{"payload size mismatch", Named("x", shortBuffer{}), ErrShapeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := newMockSender()
			s := New(sender)
			err := s.SendBuffers(tt.pair)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SendBuffers error = %v, want %v", err, tt.wantErr)
			}
			// The gate fires before anything reaches the wire.
			if len(sender.messages) != 0 {
				t.Errorf("published %d messages for invalid pair, want 0", len(sender.messages))
			}
		})
	}
}

func TestSendBuffersStopsAtFirstInvalidPair(t *testing.T) {
	sender := newMockSender()
	s := New(sender)

	err := s.SendBuffers(
		Named("good", buffers.Vector[float64]{1, 2}),
		Named("bad", sentinelBuffer{}),
		Named("never", buffers.Vector[float64]{3}),
	)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("SendBuffers error = %v, want ErrUnsupportedType", err)
	}
	// The valid pair before the failure was already published.
	if len(sender.messages) != 2 {
		t.Errorf("got %d messages, want 2 (header+payload of first pair)", len(sender.messages))
	}
}

func TestSendBuffersTransportFailure(t *testing.T) {
	sender := newMockSender()
	sender.failAt = 2 // payload send fails
	s := New(sender)

	err := s.SendBuffers(Named("x", buffers.Vector[int16]{1, 2, 3}))
	if !errors.Is(err, errSend) {
		t.Fatalf("SendBuffers error = %v, want errSend", err)
	}
	if !strings.Contains(err.Error(), `"x"`) {
		t.Errorf("error %q does not name the failing buffer", err)
	}
}

func TestWithID(t *testing.T) {
	id := uuid.New()
	s := New(newMockSender(), WithID(id))
	if s.ID() != id {
		t.Errorf("ID() = %s, want %s", s.ID(), id)
	}
}

// recordingLogger captures formatted debug lines.
type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Printf(format string, v ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func TestWithLogger(t *testing.T) {
	logger := &recordingLogger{}
	s := New(newMockSender(), WithLogger(logger))

	s.Push("x")
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if len(logger.lines) == 0 {
		t.Fatal("expected debug lines with a logger configured")
	}
	found := false
	for _, line := range logger.lines {
		if strings.Contains(line, "batch 1") {
			found = true
		}
	}
	if !found {
		t.Errorf("no batch line logged: %q", logger.lines)
	}
}
