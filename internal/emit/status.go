package emit

import (
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Mode is the visual state of a status line
type Mode string

const (
	ModeReady Mode = "ready"
	ModeBusy  Mode = "busy"
	ModeOK    Mode = "ok"
	ModeErr   Mode = "err"
)

// Status is one progress report
type Status struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Mode   Mode   `json:"mode"`
}

// StatusSink receives progress reports
type StatusSink interface {
	Report(title, detail string, mode Mode)
}

// Discard ignores every report
var Discard StatusSink = discard{}

type discard struct{}

func (discard) Report(string, string, Mode) {}

// LogSink forwards reports to a logrus logger
type LogSink struct {
	Logger *logrus.Logger
	Fields logrus.Fields
}

func (l LogSink) Report(title, detail string, mode Mode) {
	entry := l.Logger.WithFields(l.Fields).WithFields(logrus.Fields{
		"status": title,
		"mode":   string(mode),
	})
	switch mode {
	case ModeErr:
		entry.Warn(detail)
	case ModeBusy:
		entry.Debug(detail)
	default:
		entry.Info(detail)
	}
}

// Theme selects the console palette
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// ParseTheme returns ThemeLight for "light" and ThemeDark otherwise
func ParseTheme(s string) Theme {
	if s == string(ThemeLight) {
		return ThemeLight
	}
	return ThemeDark
}

type palette map[Mode]func(a ...any) string

func newPalette(theme Theme) palette {
	if theme == ThemeLight {
		return palette{
			ModeReady: color.New(color.FgBlack).SprintFunc(),
			ModeBusy:  color.New(color.FgBlue).SprintFunc(),
			ModeOK:    color.New(color.FgGreen).SprintFunc(),
			ModeErr:   color.New(color.FgRed, color.Bold).SprintFunc(),
		}
	}
	return palette{
		ModeReady: color.New(color.FgCyan).SprintFunc(),
		ModeBusy:  color.New(color.FgYellow).SprintFunc(),
		ModeOK:    color.New(color.FgHiGreen).SprintFunc(),
		ModeErr:   color.New(color.FgHiRed, color.Bold).SprintFunc(),
	}
}

// ConsoleSink prints coloured status lines
type ConsoleSink struct {
	mu      sync.Mutex
	out     io.Writer
	palette palette
}

// NewConsoleSink writes to out using the palette for theme
func NewConsoleSink(out io.Writer, theme Theme) *ConsoleSink {
	return &ConsoleSink{out: out, palette: newPalette(theme)}
}

func (c *ConsoleSink) Report(title, detail string, mode Mode) {
	paint, ok := c.palette[mode]
	if !ok {
		paint = fmt.Sprint
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, "%s %s\n", paint("["+title+"]"), detail)
}

// RecordingSink keeps every report
type RecordingSink struct {
	mu      sync.Mutex
	entries []Status
}

func (r *RecordingSink) Report(title, detail string, mode Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Status{Title: title, Detail: detail, Mode: mode})
}

// Entries returns the reports received so far
func (r *RecordingSink) Entries() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}

// Last returns the most recent report
func (r *RecordingSink) Last() (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return Status{}, false
	}
	return r.entries[len(r.entries)-1], true
}

// MultiSink fans a report out to several sinks in order
type MultiSink []StatusSink

func (m MultiSink) Report(title, detail string, mode Mode) {
	for _, s := range m {
		if s != nil {
			s.Report(title, detail, mode)
		}
	}
}
