package server

import (
	"errors"
	"fmt"
	"os"
	"time"
)

var ErrInvalidConfig = errors.New("invalid server config")

// Config holds the startup parameters. It is read once by New and never
// mutated afterwards.
type Config struct {
	// Addr is the TCP address to listen on, e.g. ":8080"
	Addr string

	// DocumentRoot is the directory files are served from
	DocumentRoot string

	// Workers is the number of connections served concurrently
	Workers int

	// QueueSize bounds accepted connections waiting for a worker. When
	// the queue is full the accept loop blocks and new clients wait in
	// the kernel backlog.
	QueueSize int

	// ReadTimeout, when non-zero, is a deadline for reading the whole
	// request. Zero means a stalled client can hold a worker forever.
	ReadTimeout time.Duration

	// Confine rejects targets that resolve outside DocumentRoot
	Confine bool
}

// DefaultConfig returns the stock configuration
func DefaultConfig() Config {
	return Config{
		Addr:      ":8080",
		Workers:   10,
		QueueSize: 1024,
	}
}

// Validate checks the config and the document root on disk
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: empty listen address", ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("%w: negative queue size %d", ErrInvalidConfig, c.QueueSize)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("%w: negative read timeout %s", ErrInvalidConfig, c.ReadTimeout)
	}
	if c.DocumentRoot == "" {
		return fmt.Errorf("%w: empty document root", ErrInvalidConfig)
	}
	info, err := os.Stat(c.DocumentRoot)
	if err != nil {
		return fmt.Errorf("%w: document root: %v", ErrInvalidConfig, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: document root %s is not a directory", ErrInvalidConfig, c.DocumentRoot)
	}
	return nil
}
