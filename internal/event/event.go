package event

import (
	"time"

	"github.com/bamsammich/ward/internal/report"
)

// Type identifies the kind of event.
type Type int

const (
	WalkStarted Type = iota + 1
	WalkComplete
	FileToggled
	FileAlready
	FileSkipped
	FileFailed
	DirToggled
	SurveyProgress
)

var typeNames = [...]string{
	WalkStarted:    "WalkStarted",
	WalkComplete:   "WalkComplete",
	FileToggled:    "FileToggled",
	FileAlready:    "FileAlready",
	FileSkipped:    "FileSkipped",
	FileFailed:     "FileFailed",
	DirToggled:     "DirToggled",
	SurveyProgress: "SurveyProgress",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from the engine.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // relative to the run root
	Reason    report.SkipReason
	Error     error
	WorkerID  int
	Examined  int64 // SurveyProgress: entries examined so far
}
