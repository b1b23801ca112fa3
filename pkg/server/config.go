package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for the HTTP/WebSocket server.
type Config struct {
	// Address is the address to listen on (e.g., ":8080" or "localhost:3000").
	// Default: ":8080".
	Address string

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the request origin.
	// Default: allows all origins.
	CheckOrigin func(r *http.Request) bool

	// MaxMessageSize is the maximum size of an incoming WebSocket message.
	// Default: 1MB.
	MaxMessageSize int64

	// ReadTimeout is the maximum time to wait for a message or pong from
	// the client. Pings are sent at 9/10 of it.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// SendQueue is the number of frames buffered per connection. Frames
	// sent while the queue is full are dropped.
	// Default: 256.
	SendQueue int

	// MessagesPerSecond limits inbound messages per connection. Zero
	// disables limiting.
	// Default: 50.
	MessagesPerSecond float64

	// Burst is the inbound message burst allowed per connection.
	// Default: 100.
	Burst int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// MetricsPath is where Gatherer is exposed. Empty disables the route.
	MetricsPath string

	// Gatherer provides the metrics served on MetricsPath.
	// Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           ":8080",
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		CheckOrigin:       func(*http.Request) bool { return true },
		MaxMessageSize:    1 << 20,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SendQueue:         256,
		MessagesPerSecond: 50,
		Burst:             100,
		ShutdownTimeout:   30 * time.Second,
		MetricsPath:       "/metrics",
		Gatherer:          prometheus.DefaultGatherer,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = d.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = d.WriteBufferSize
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = d.CheckOrigin
	}
	if out.MaxMessageSize == 0 {
		out.MaxMessageSize = d.MaxMessageSize
	}
	if out.ReadTimeout == 0 {
		out.ReadTimeout = d.ReadTimeout
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.SendQueue == 0 {
		out.SendQueue = d.SendQueue
	}
	if out.Burst == 0 {
		out.Burst = d.Burst
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.Gatherer == nil {
		out.Gatherer = d.Gatherer
	}
	return &out
}
