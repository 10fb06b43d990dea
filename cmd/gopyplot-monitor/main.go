// gopyplot-monitor subscribes to a plot subject and prints the framed
// traffic as it arrives: buffer headers, payload sizes, script text and
// batch boundaries. It is a consumer-side debugging aid for checking what
// a producer actually publishes without starting a renderer.
//
// Usage:
//
//	gopyplot-monitor [-url nats://127.0.0.1:5555] [-subject gopyplot.data] [-v]
//
// The monitor runs until the producer publishes its exit notice or the
// process is interrupted.
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/muralivnv/gopyplot/transport"
	"github.com/muralivnv/gopyplot/wire"
)

func main() {
	defaultURL := fmt.Sprintf("nats://%s:%d", transport.DefaultHost, transport.DefaultPort)
	url := flag.String("url", defaultURL, "NATS server URL to subscribe through")
	subject := flag.String("subject", transport.DefaultSubject, "subject carrying the plot traffic")
	verbose := flag.Bool("v", false, "print script text and payload previews")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        colorable.NewColorableStdout(),
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Str("app", "gopyplot-monitor").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *url, *subject, *verbose, logger); err != nil {
		logger.Fatal().Err(err).Msg("monitor failed")
	}
}

func run(ctx context.Context, url, subject string, verbose bool, logger zerolog.Logger) error {
	conn, err := nats.Connect(url,
		nats.Name("gopyplot-monitor"),
		nats.Timeout(transport.DefaultConnectTimeout))
	if err != nil {
		return fmt.Errorf("connect to %s: %w", url, err)
	}
	defer conn.Close()

	sub, err := conn.SubscribeSync(subject)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	if err := conn.Flush(); err != nil {
		return err
	}
	logger.Info().Str("url", url).Str("subject", subject).Msg("listening")

	m := &monitor{log: logger, verbose: verbose}
	for {
		msg, err := sub.NextMsgWithContext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				m.summary()
				return nil
			}
			return err
		}
		if done := m.handle(msg.Data); done {
			m.summary()
			return nil
		}
	}
}

// monitor tracks framing state across messages: after a header line the
// next message on the subject is that buffer's payload.
type monitor struct {
	log     zerolog.Logger
	verbose bool

	pending *wire.Header
	batches int
	buffers int
	scripts int
}

// handle classifies one message and reports it. It returns true once the
// producer's exit notice arrives.
func (m *monitor) handle(data []byte) bool {
	if m.pending != nil {
		m.payload(data)
		return false
	}

	s := string(data)
	switch {
	case s == wire.FinalizeMessage:
		m.batches++
		m.log.Info().
			Int("batch", m.batches).
			Int("buffers", m.buffers).
			Int("scripts", m.scripts).
			Msg("batch complete")
	case s == wire.ExitMessage:
		m.log.Info().Msg("producer exited")
		return true
	case strings.HasPrefix(s, wire.HeaderTag+string(wire.Delim)):
		h, err := wire.ParseHeader(s)
		if err != nil {
			m.log.Warn().Err(err).Str("line", s).Msg("bad header")
			return false
		}
		m.pending = &h
	default:
		m.scripts++
		m.log.Info().Int("lines", strings.Count(s, "\n")).Int("bytes", len(data)).Msg("script")
		if m.verbose && len(s) > 0 {
			fmt.Print(indent(s))
		}
	}
	return false
}

func (m *monitor) payload(data []byte) {
	h := *m.pending
	m.pending = nil
	m.buffers++

	want := h.Count * h.Desc.Width
	ev := m.log.Info()
	if len(data) != want {
		ev = m.log.Warn().Int("want_bytes", want)
	}
	ev.Str("name", h.Name).
		Str("tag", string(h.Desc.Tag)).
		Str("shape", h.Shape).
		Int("count", h.Count).
		Int("bytes", len(data)).
		Msg("buffer")

	if m.verbose && len(data) == want {
		fmt.Printf("    %s = %s\n", h.Name, preview(h.Desc, data))
	}
}

func (m *monitor) summary() {
	m.log.Info().
		Int("batches", m.batches).
		Int("buffers", m.buffers).
		Int("scripts", m.scripts).
		Msg("done")
}

// preview renders the first few elements of a payload. The float tags
// decode to numbers; every other element type shows as raw bytes.
func preview(d wire.Descriptor, data []byte) string {
	const maxElems = 4
	n := len(data) / d.Width
	if n == 0 {
		return "[]"
	}
	shown := n
	if shown > maxElems {
		shown = maxElems
	}

	parts := make([]string, 0, shown)
	for i := 0; i < shown; i++ {
		chunk := data[i*d.Width:]
		switch d.Tag {
		case 'd':
			parts = append(parts, fmt.Sprintf("%g", math.Float64frombits(binary.NativeEndian.Uint64(chunk))))
		case 'f':
			parts = append(parts, fmt.Sprintf("%g", math.Float32frombits(binary.NativeEndian.Uint32(chunk))))
		default:
			parts = append(parts, fmt.Sprintf("0x%x", chunk[:d.Width]))
		}
	}
	s := "[" + strings.Join(parts, ", ")
	if shown < n {
		s += ", ..."
	}
	return s + "]"
}

func indent(s string) string {
	s = strings.TrimRight(s, "\n")
	return "    " + strings.ReplaceAll(s, "\n", "\n    ") + "\n"
}
