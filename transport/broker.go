package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

const (
	// DefaultMaxPayload is the largest single message the embedded broker
	// accepts. The stock NATS limit of 1 MiB is too small for dense
	// matrices, so the broker raises it.
	DefaultMaxPayload = 64 << 20 // 64 MiB

	// DefaultReadyTimeout bounds the wait for the broker's listener.
	DefaultReadyTimeout = 5 * time.Second
)

// ErrBrokerNotReady is returned when the embedded broker's listener does
// not come up within the ready timeout.
var ErrBrokerNotReady = errors.New("broker not ready before timeout")

// BrokerOptions configures an embedded broker. Zero values select the
// defaults above.
type BrokerOptions struct {
	// Host is the listen address. Default 127.0.0.1.
	Host string
	// Port is the listen port. Default 5555; -1 picks an ephemeral port,
	// which is what tests want.
	Port int
	// MaxPayload caps the size of a single message.
	MaxPayload int32
	// ReadyTimeout bounds the wait for the listener.
	ReadyTimeout time.Duration
}

// Broker is a NATS server embedded in the producer process. It serves the
// self-hosted topology: the producer owns the endpoint, consumers dial in,
// and no external infrastructure is needed.
type Broker struct {
	srv *server.Server
}

// StartBroker launches an embedded broker and waits until it accepts
// connections.
func StartBroker(opts BrokerOptions) (*Broker, error) {
	host := opts.Host
	if host == "" {
		host = DefaultHost
	}
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	maxPayload := opts.MaxPayload
	if maxPayload == 0 {
		maxPayload = DefaultMaxPayload
	}
	ready := opts.ReadyTimeout
	if ready == 0 {
		ready = DefaultReadyTimeout
	}

	srv, err := server.NewServer(&server.Options{
		Host:       host,
		Port:       port,
		MaxPayload: maxPayload,
		NoLog:      true,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("configure broker: %w", err)
	}

	go srv.Start()
	if !srv.ReadyForConnections(ready) {
		srv.Shutdown()
		return nil, ErrBrokerNotReady
	}
	return &Broker{srv: srv}, nil
}

// ClientURL returns the URL clients use to reach this broker.
func (b *Broker) ClientURL() string {
	return b.srv.ClientURL()
}

// Shutdown stops the broker and waits for it to finish.
func (b *Broker) Shutdown() {
	b.srv.Shutdown()
	b.srv.WaitForShutdown()
}
