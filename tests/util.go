package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/absento/core/absence"
)

// CreateAbsence stores an unjustified absence of student starting at slotStart.
func CreateAbsence(
	t *testing.T,
	repo absence.Repository,
	student string,
	slotStart time.Time,
	opts ...func(*absence.Absence),
) absence.Absence {
	t.Helper()
	abs := absence.Absence{
		ID:           uuid.New().String(),
		StudentID:    student,
		CourseSlotID: "slot-" + slotStart.UTC().Format("20060102T1504"),
		SlotStart:    slotStart.UTC(),
		Status:       absence.StatusAbsent,
	}
	for _, opt := range opts {
		opt(&abs)
	}
	abs, err := repo.CreateAbsence(context.Background(), abs)
	if err != nil {
		t.Fatalf("CreateAbsence() failed: %v", err)
	}
	return abs
}

// GetAbsence reloads an absence or fails the test.
func GetAbsence(t *testing.T, repo absence.Repository, id string) absence.Absence {
	t.Helper()
	abs, err := repo.GetAbsence(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAbsence(%s) failed: %v", id, err)
	}
	return abs
}

// FixedClock returns a clock stuck at t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Log levels recorded by Logger.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger is a core.Logger that records entries instead of printing them.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewLogger() *Logger {
	return &Logger{}
}

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log(LevelFatal, msg, args)
	panic(fmt.Sprintf("fatal: %s", msg))
}

// Messages returns the recorded messages of level.
func (l *Logger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var msgs []string
	for _, e := range l.entries {
		if e.Level == level {
			msgs = append(msgs, e.Msg)
		}
	}
	return msgs
}
