package gopyplot

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/muralivnv/gopyplot/config"
	"github.com/muralivnv/gopyplot/session"
	"github.com/muralivnv/gopyplot/transport"
)

// Version is the library version.
const Version = "0.1.0-dev"

// rendererStopTimeout bounds the wait for the renderer to exit after the
// session's exit sentinel. A renderer that ignores the sentinel is killed.
const rendererStopTimeout = 5 * time.Second

// The publisher must satisfy the session's sender contract.
var _ session.Sender = (*transport.Publisher)(nil)

// Plotter owns one producer-side pipeline: an optional embedded broker, a
// NATS publisher, an optional renderer process, and the session that frames
// the traffic. Like the session it wraps, a Plotter is not safe for
// concurrent use.
type Plotter struct {
	cfg      config.Config
	url      string
	broker   *transport.Broker
	pub      *transport.Publisher
	renderer *exec.Cmd
	sess     *session.Session
	logger   session.Logger

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Plotter.
type Option func(*Plotter)

// WithLogger sets the logger for debug logging, shared with the session.
// This is optional - if not set, no logging is performed.
func WithLogger(l session.Logger) Option {
	return func(p *Plotter) { p.logger = l }
}

// New wires up a Plotter from cfg: the embedded broker when configured, the
// publisher, the renderer process when configured, and the session. On any
// failure everything already started is torn down before New returns.
func New(cfg config.Config, opts ...Option) (*Plotter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Plotter{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}

	url := cfg.ServerURL
	if cfg.EmbedBroker {
		broker, err := transport.StartBroker(transport.BrokerOptions{
			Host: cfg.ListenHost,
			Port: cfg.ListenPort,
		})
		if err != nil {
			return nil, fmt.Errorf("start broker: %w", err)
		}
		p.broker = broker
		url = broker.ClientURL()
	}

	p.url = url

	pub, err := transport.Connect(url, cfg.Subject)
	if err != nil {
		p.shutdownBroker()
		return nil, err
	}
	p.pub = pub

	if cfg.Renderer.Command != "" {
		if err := p.startRenderer(url); err != nil {
			_ = pub.Close()
			p.shutdownBroker()
			return nil, err
		}
	}

	var sessOpts []session.Option
	if p.logger != nil {
		sessOpts = append(sessOpts, session.WithLogger(p.logger))
	}
	p.sess = session.New(pub, sessOpts...)
	p.logf("[plotter] session %s publishing to %s on %s", p.sess.ID(), cfg.Subject, url)
	return p, nil
}

// ID returns the unique identifier of the underlying session.
func (p *Plotter) ID() uuid.UUID {
	return p.sess.ID()
}

// ServerURL returns the URL traffic is published to. With an embedded
// broker on an ephemeral port this is the only way to learn the actual
// endpoint consumers must dial.
func (p *Plotter) ServerURL() string {
	return p.url
}

// Session exposes the underlying session for direct use.
func (p *Plotter) Session() *session.Session {
	return p.sess
}

// BeginBatch marks the start of a new batch. Optional; the first push or
// send after a flush opens one implicitly.
func (p *Plotter) BeginBatch() error {
	return p.sess.BeginBatch()
}

// Push appends one line of command text to the current batch.
func (p *Plotter) Push(text string) error {
	return p.sess.Push(text)
}

// PushRaw dedents a multi-line block and appends it to the current batch.
func (p *Plotter) PushRaw(raw string) error {
	return p.sess.PushRaw(raw)
}

// SendBuffers publishes named buffers strictly in caller order, each as a
// header message followed by its zero-copy payload.
func (p *Plotter) SendBuffers(pairs ...session.NamedBuffer) error {
	return p.sess.SendBuffers(pairs...)
}

// Flush ends the current batch: the accumulated command text, then the
// finalize sentinel.
func (p *Plotter) Flush() error {
	return p.sess.Flush()
}

// Close tears the pipeline down in order: the session's exit sentinel, the
// publisher (flushing pending messages), the renderer process, and the
// embedded broker. It returns the first error encountered and is safe to
// call more than once.
func (p *Plotter) Close() error {
	p.closeOnce.Do(func() {
		if err := p.sess.Close(); err != nil {
			p.closeErr = err
		}
		if err := p.pub.Close(); err != nil && p.closeErr == nil {
			p.closeErr = err
		}
		if err := p.stopRenderer(); err != nil && p.closeErr == nil {
			p.closeErr = err
		}
		p.shutdownBroker()
	})
	return p.closeErr
}

// startRenderer spawns the consumer with the server URL and subject
// appended to its argv, then waits StartupWait so it can subscribe before
// the first batch. Core pub/sub has no replay; publishing earlier would
// lose messages.
func (p *Plotter) startRenderer(url string) error {
	args := append(append([]string{}, p.cfg.Renderer.Args...), url, p.cfg.Subject)
	cmd := exec.Command(p.cfg.Renderer.Command, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start renderer: %w", err)
	}
	p.renderer = cmd
	p.logf("[plotter] renderer pid %d: %s", cmd.Process.Pid, p.cfg.Renderer.Command)

	if wait := p.cfg.Renderer.StartupWait; wait > 0 {
		time.Sleep(wait)
	}
	return nil
}

// stopRenderer waits for the renderer to exit on the exit sentinel,
// killing it after rendererStopTimeout.
func (p *Plotter) stopRenderer() error {
	if p.renderer == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- p.renderer.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(rendererStopTimeout):
		p.logf("[plotter] renderer ignored exit sentinel, killing pid %d",
			p.renderer.Process.Pid)
		_ = p.renderer.Process.Kill()
		return <-done
	}
}

func (p *Plotter) shutdownBroker() {
	if p.broker != nil {
		p.broker.Shutdown()
	}
}

// logf logs a debug message if a logger is configured.
func (p *Plotter) logf(format string, v ...interface{}) {
	if p.logger != nil {
		p.logger.Printf(format, v...)
	}
}
