package transport

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Defaults for the classic single-machine deployment.
const (
	// DefaultSubject is the subject buffer traffic is published on.
	DefaultSubject = "gopyplot.data"

	// DefaultHost is the loopback listen address for an embedded broker.
	DefaultHost = "127.0.0.1"

	// DefaultPort is the listen port for an embedded broker.
	DefaultPort = 5555

	// DefaultConnectTimeout bounds the initial dial.
	DefaultConnectTimeout = 5 * time.Second
)

// Publisher sends discrete messages to one subject over core NATS. It is
// safe for concurrent use, though batch framing requires callers to
// serialize sends at the session level anyway.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// Connect dials a NATS server and binds a Publisher to subject. Extra
// options are applied after the defaults (connection name, connect
// timeout), so they may override either.
func Connect(url, subject string, opts ...nats.Option) (*Publisher, error) {
	if subject == "" {
		return nil, nats.ErrBadSubject
	}
	base := []nats.Option{
		nats.Name("gopyplot"),
		nats.Timeout(DefaultConnectTimeout),
	}
	conn, err := nats.Connect(url, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	return &Publisher{conn: conn, subject: subject}, nil
}

// Subject returns the subject this publisher is bound to.
func (p *Publisher) Subject() string {
	return p.subject
}

// Send publishes data as one message. The client copies data into its
// write buffer before returning; the caller may reuse the slice
// immediately.
func (p *Publisher) Send(data []byte) error {
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	return nil
}

// Flush blocks until the server has processed everything published so far.
func (p *Publisher) Flush() error {
	return p.conn.Flush()
}

// Close flushes pending messages and closes the connection. It returns the
// flush error, if any; the connection is closed either way. Close is safe
// to call more than once.
func (p *Publisher) Close() error {
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	err := p.conn.Flush()
	p.conn.Close()
	return err
}
