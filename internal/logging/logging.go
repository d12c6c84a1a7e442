// Package logging constructs the process's root zap.Logger and the
// named per-subsystem children the rest of the module pulls from,
// mirroring the teacher's decoderLog/streamLog/reassemblyLog pattern.
package logging

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Loggers bundles one named child logger per subsystem so the
// composition root can hand each component exactly the logger it
// needs without every component reaching into a global.
type Loggers struct {
	Root *zap.Logger

	Capture    *zap.Logger
	Assembler  *zap.Logger
	Decoder    *zap.Logger
	Storage    *zap.Logger
	Dispatcher *zap.Logger
	Aggregator *zap.Logger
	Bus        *zap.Logger
	Archive    *zap.Logger
	Metrics    *zap.Logger
	Summary    *zap.Logger
}

// New builds a root logger at levelName — development encoder when
// debug is set, JSON/production encoder otherwise — then derives the
// named children.
func New(levelName string, debug bool) (*Loggers, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		level = zapcore.InfoLevel
	}

	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	root, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "logging: build root logger")
	}

	return &Loggers{
		Root:       root,
		Capture:    root.Named("capture"),
		Assembler:  root.Named("assembler"),
		Decoder:    root.Named("decoder"),
		Storage:    root.Named("storage"),
		Dispatcher: root.Named("dispatcher"),
		Aggregator: root.Named("aggregator"),
		Bus:        root.Named("bus"),
		Archive:    root.Named("archive"),
		Metrics:    root.Named("metrics"),
		Summary:    root.Named("summary"),
	}, nil
}

// Sync flushes any buffered log entries; call on shutdown. Errors are
// expected and ignorable when the underlying sink is a terminal.
func (l *Loggers) Sync() {
	_ = l.Root.Sync()
}
