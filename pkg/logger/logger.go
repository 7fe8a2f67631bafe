package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Logger interface {
	Upload(localPath, remotePath string)
	Delete(remotePath string)
	Error(operation, path string, err error)
	Info(format string, args ...interface{})
	Debug(message string)
}

// SyncLogger writes human readable, structured lines for one run.
type SyncLogger struct {
	IsDryRun bool
	IsQuiet  bool
	log      zerolog.Logger
}

// NewSyncLogger creates a logger writing to w. runID is attached to every line.
func NewSyncLogger(w io.Writer, runID string, dryRun, quiet, verbose bool) *SyncLogger {
	if w == nil {
		w = os.Stderr
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	log := zerolog.New(console).Level(level).With().Timestamp().Str("run", runID).Logger()

	return &SyncLogger{
		IsDryRun: dryRun,
		IsQuiet:  quiet,
		log:      log,
	}
}

func (l *SyncLogger) prefix() string {
	if l.IsDryRun {
		return "(dryrun) "
	}
	return ""
}

func (l *SyncLogger) Upload(localPath, remotePath string) {
	if l.IsQuiet {
		return
	}
	l.log.Info().Str("from", localPath).Str("to", remotePath).Msg(l.prefix() + "upload")
}

func (l *SyncLogger) Delete(remotePath string) {
	if l.IsQuiet {
		return
	}
	l.log.Info().Str("target", remotePath).Msg(l.prefix() + "delete")
}

// Error is never suppressed by quiet mode.
func (l *SyncLogger) Error(operation, path string, err error) {
	l.log.Error().Err(err).Str("path", path).Msg(operation + " failed")
}

func (l *SyncLogger) Info(format string, args ...interface{}) {
	if l.IsQuiet {
		return
	}
	l.log.Info().Msg(l.prefix() + fmt.Sprintf(format, args...))
}

func (l *SyncLogger) Debug(message string) {
	l.log.Debug().Msg(message)
}

type NullLogger struct{}

func (NullLogger) Upload(localPath, remotePath string) {}

func (NullLogger) Delete(remotePath string) {}

func (NullLogger) Error(operation, path string, err error) {}

func (NullLogger) Info(format string, args ...interface{}) {}

func (NullLogger) Debug(message string) {}
