// Package config holds the injected deployment settings: where buffer
// traffic goes and how the renderer process is launched. Endpoints and
// launch commands are configuration, never compiled in; a TOML file
// overrides the defaults field by field.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/muralivnv/gopyplot/transport"
)

// Config selects the transport topology and the renderer launch.
type Config struct {
	// ServerURL is the NATS server to publish to. Ignored when
	// EmbedBroker is set; required otherwise.
	ServerURL string
	// Subject is the subject all session traffic is published on.
	Subject string
	// EmbedBroker runs a broker inside this process instead of dialing an
	// external server.
	EmbedBroker bool
	// ListenHost and ListenPort are the embedded broker's bind address.
	ListenHost string
	ListenPort int
	// Renderer describes the consumer process to spawn. An empty Command
	// means no process is spawned and an externally managed consumer is
	// expected to subscribe.
	Renderer RendererConfig
}

// RendererConfig describes how the consumer process is launched.
type RendererConfig struct {
	// Command is the executable, e.g. "python3".
	Command string
	// Args are passed before the server URL and subject, which are always
	// appended so the renderer knows where to subscribe.
	Args []string
	// StartupWait is how long to wait after spawning before publishing,
	// giving the renderer time to subscribe. Messages published earlier
	// would be lost: core pub/sub has no replay.
	StartupWait time.Duration
}

// Default returns the single-machine defaults: an embedded broker on
// loopback, no renderer spawn.
func Default() Config {
	return Config{
		Subject:     transport.DefaultSubject,
		EmbedBroker: true,
		ListenHost:  transport.DefaultHost,
		ListenPort:  transport.DefaultPort,
		Renderer: RendererConfig{
			StartupWait: 1500 * time.Millisecond,
		},
	}
}

type fileConfig struct {
	ServerURL   string       `toml:"server_url"`
	Subject     string       `toml:"subject"`
	EmbedBroker bool         `toml:"embed_broker"`
	ListenHost  string       `toml:"listen_host"`
	ListenPort  int          `toml:"listen_port"`
	Renderer    fileRenderer `toml:"renderer"`
}

type fileRenderer struct {
	Command     string   `toml:"command"`
	Args        []string `toml:"args"`
	StartupWait string   `toml:"startup_wait"`
}

// Load reads a TOML file, applies it over Default, and validates the
// result. Only keys present in the file override defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("server_url") {
		cfg.ServerURL = strings.TrimSpace(raw.ServerURL)
	}
	if meta.IsDefined("subject") {
		cfg.Subject = strings.TrimSpace(raw.Subject)
	}
	if meta.IsDefined("embed_broker") {
		cfg.EmbedBroker = raw.EmbedBroker
	}
	if meta.IsDefined("listen_host") {
		cfg.ListenHost = strings.TrimSpace(raw.ListenHost)
	}
	if meta.IsDefined("listen_port") {
		cfg.ListenPort = raw.ListenPort
	}
	if meta.IsDefined("renderer", "command") {
		cfg.Renderer.Command = strings.TrimSpace(raw.Renderer.Command)
	}
	if meta.IsDefined("renderer", "args") {
		cfg.Renderer.Args = raw.Renderer.Args
	}
	if meta.IsDefined("renderer", "startup_wait") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Renderer.StartupWait))
		if err != nil {
			return Config{}, fmt.Errorf("parse renderer startup_wait: %w", err)
		}
		cfg.Renderer.StartupWait = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the facade cannot act on.
func (c Config) Validate() error {
	if c.Subject == "" {
		return errors.New("config: subject must not be empty")
	}
	if c.EmbedBroker {
		if c.ListenPort < -1 || c.ListenPort > 65535 {
			return fmt.Errorf("config: listen_port %d out of range", c.ListenPort)
		}
	} else if c.ServerURL == "" {
		return errors.New("config: server_url required when embed_broker is false")
	}
	if c.Renderer.StartupWait < 0 {
		return errors.New("config: renderer startup_wait must not be negative")
	}
	if c.Renderer.Command == "" && len(c.Renderer.Args) > 0 {
		return errors.New("config: renderer args given without a command")
	}
	return nil
}
