package common

import (
	"io"
	"log"
	"os"
)

// Verbosity levels.
const (
	LevelSilent = 0
	LevelInfo   = 1
	LevelDebug  = 2
)

// Logger prefixes lines with their level and drops anything above the
// configured verbosity. Errors are always written.
type Logger struct {
	level int
	out   *log.Logger
}

// NewLogger writes to w with the standard log flags.
func NewLogger(w io.Writer, level int) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{level: level, out: log.New(w, "", log.LstdFlags)}
}

// Enabled reports whether messages at level are written.
func (l *Logger) Enabled(level int) bool {
	return l != nil && level <= l.level
}

func (l *Logger) Infof(format string, args ...any) {
	if l.Enabled(LevelInfo) {
		l.out.Printf("INFO: "+format, args...)
	}
}

func (l *Logger) Debugf(format string, args ...any) {
	if l.Enabled(LevelDebug) {
		l.out.Printf("DEBUG: "+format, args...)
	}
}

func (l *Logger) Errorf(format string, args ...any) {
	if l == nil {
		log.Printf("ERROR: "+format, args...)
		return
	}
	l.out.Printf("ERROR: "+format, args...)
}
