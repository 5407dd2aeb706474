// Package logging writes session-scoped debug logs. Every component in a
// process shares one log file under ~/.vouch/logs, named after a session
// id generated at first use.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const entryTimeLayout = "2006-01-02 15:04:05.000"

// session holds the process-wide id and log directory. Initialized once;
// tests swap the whole struct to redirect logs.
var session = struct {
	once sync.Once
	id   string
	dir  string
	err  error
}{}

func sessionInfo() (id, dir string, err error) {
	session.once.Do(func() {
		session.id = uuid.New().String()
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			session.err = fmt.Errorf("resolving home directory: %w", homeErr)
			return
		}
		session.dir = filepath.Join(home, ".vouch", "logs")
		if mkErr := os.MkdirAll(session.dir, 0750); mkErr != nil {
			session.err = fmt.Errorf("creating log directory: %w", mkErr)
		}
	})
	return session.id, session.dir, session.err
}

// Logger appends timestamped, leveled entries for one component to the
// shared session file. There is no level filtering; every call is written.
type Logger struct {
	component string
	sessionID string
	path      string

	mu        sync.Mutex
	out       *log.Logger
	file      *os.File
	closeOnce sync.Once
}

// NewLogger opens the session log file for the given component, appending
// if another component opened it first. On failure it returns a
// stderr-backed logger together with the error, so the caller always gets
// a usable logger.
func NewLogger(component string) (*Logger, error) {
	id, dir, err := sessionInfo()
	if err != nil {
		return stderrLogger(component, id, err), err
	}

	path := filepath.Join(dir, id+"-vouch.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		err = fmt.Errorf("opening log file: %w", err)
		return stderrLogger(component, id, err), err
	}

	return &Logger{
		component: component,
		sessionID: id,
		path:      path,
		out:       log.New(file, "", 0),
		file:      file,
	}, nil
}

func stderrLogger(component, id string, cause error) *Logger {
	out := log.New(os.Stderr, "["+component+"] ", log.LstdFlags)
	out.Printf("file logging unavailable, writing to stderr: %v", cause)
	return &Logger{component: component, sessionID: id, out: out}
}

func (l *Logger) emit(level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Printf("[%s] [%s] [%s] %s",
		time.Now().Format(entryTimeLayout), l.component, level, fmt.Sprintf(format, v...))
}

// Debugf logs at DEBUG level.
func (l *Logger) Debugf(format string, v ...interface{}) { l.emit("DEBUG", format, v...) }

// Infof logs at INFO level.
func (l *Logger) Infof(format string, v ...interface{}) { l.emit("INFO", format, v...) }

// Printf logs at INFO level, for call sites that do not care about levels.
func (l *Logger) Printf(format string, v ...interface{}) { l.emit("INFO", format, v...) }

// Warnf logs at WARN level.
func (l *Logger) Warnf(format string, v ...interface{}) { l.emit("WARN", format, v...) }

// Errorf logs at ERROR level.
func (l *Logger) Errorf(format string, v ...interface{}) { l.emit("ERROR", format, v...) }

// SessionID returns the id shared by every component logger in this process.
func (l *Logger) SessionID() string {
	return l.sessionID
}

// Close releases the log file. Safe to call more than once; a stderr
// fallback logger closes as a no-op.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
