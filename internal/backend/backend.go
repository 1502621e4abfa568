// Package backend wires a record store, the optional mirror publisher and
// the record service from configuration.
package backend

import (
	"context"
	"errors"
	"fmt"

	"laundrytrack/internal/config"
	"laundrytrack/internal/records"
	"laundrytrack/internal/services"
)

// Type names a record store implementation.
type Type string

const (
	SQLite Type = config.BackendSQLite
	Memory Type = config.BackendMemory
)

// Types lists the supported store implementations.
func Types() []Type {
	return []Type{SQLite, Memory}
}

func (t Type) IsValid() bool {
	return t == SQLite || t == Memory
}

func (t Type) String() string {
	return string(t)
}

// MirrorConfig points at the AMQP broker feeding the mirror worker. An
// empty URL disables mirroring.
type MirrorConfig struct {
	URL      string
	Exchange string
	Queue    string
}

// Config selects and parameterizes a backend.
type Config struct {
	Type         Type
	SQLiteDBPath string
	// DataFile persists the memory store. Empty keeps records in memory only.
	DataFile string
	Mirror   MirrorConfig
}

// FromAppConfig extracts the backend settings of the application config.
func FromAppConfig(c *config.Config) (Config, error) {
	if c == nil {
		return Config{}, errors.New("app config is nil")
	}
	t := Type(c.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", c.DataBackend)
	}
	return Config{
		Type:         t,
		SQLiteDBPath: c.SQLiteDBPath,
		DataFile:     c.DataFile,
		Mirror: MirrorConfig{
			URL:      c.AMQPURL,
			Exchange: c.AMQPExchange,
			Queue:    c.AMQPQueue,
		},
	}, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if !c.Type.IsValid() {
		errs = append(errs, fmt.Errorf("invalid backend type %q: must be one of %v", c.Type, Types()))
	}
	if c.Type == SQLite && c.SQLiteDBPath == "" {
		errs = append(errs, errors.New("sqlite backend requires a database path"))
	}
	// The mirror worker reads sync state from SQLite only.
	if c.Type == Memory && c.Mirror.URL != "" {
		errs = append(errs, errors.New("mirroring requires the sqlite backend"))
	}
	if c.Type == SQLite && c.DataFile != "" {
		errs = append(errs, errors.New("data file applies to the memory backend only"))
	}
	return errors.Join(errs...)
}

// Backend is a ready-to-use record service and the store behind it.
type Backend struct {
	Type    Type
	Store   records.Store
	Service *services.RecordService
	// SchemaVersion is the migration version of a SQLite store, 0 otherwise.
	SchemaVersion uint
	// Mirrored reports whether writes are published to the mirror queue.
	Mirrored bool

	ready func(ctx context.Context) error
}

// Ready reports whether the store can serve requests.
func (b *Backend) Ready(ctx context.Context) error {
	if b.ready == nil {
		return nil
	}
	return b.ready(ctx)
}

// Close releases the store and the publisher.
func (b *Backend) Close() error {
	return b.Service.Close()
}
