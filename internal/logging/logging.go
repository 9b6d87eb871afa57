// Package logging wires up apex/log the same way the teacher's CLI does:
// a colorized, level-prefixed handler for terminals plus a plain handler
// for redirected output, with error values rendering their stack trace.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
)

var levelLabel = [...]string{
	log.DebugLevel: "DEBUG",
	log.InfoLevel:  " INFO",
	log.WarnLevel:  " WARN",
	log.ErrorLevel: "ERROR",
	log.FatalLevel: "FATAL",
}

var levelColor = [...]*color.Color{
	log.DebugLevel: color.New(color.FgWhite),
	log.InfoLevel:  color.New(color.FgBlue),
	log.WarnLevel:  color.New(color.FgYellow),
	log.ErrorLevel: color.New(color.FgRed),
	log.FatalLevel: color.New(color.FgRed),
}

var bold = color.New(color.Bold)
var boldRed = color.New(color.Bold, color.FgRed)

// Handler is an apex/log.Handler that renders entries the way the
// teacher's loggers/cli.Handler does: a bold, padded level marker, a
// timestamp, the message, then "key=value" fields, with a stack trace
// dumped beneath any entry carrying an "error" field.
type Handler struct {
	mu      sync.Mutex
	Writer  io.Writer
	Padding int
}

// New returns a Handler writing to w. useColors selects whether ANSI color
// codes are emitted; Configure below always requests colors for os.Stderr.
func New(w io.Writer, useColors bool) *Handler {
	if f, ok := w.(*os.File); ok && useColors {
		return &Handler{Writer: colorable.NewColorable(f), Padding: 2}
	}
	return &Handler{Writer: colorable.NewNonColorable(w), Padding: 2}
}

// HandleLog implements log.Handler.
func (h *Handler) HandleLog(e *log.Entry) error {
	c := levelColor[e.Level]
	level := levelLabel[e.Level]
	names := e.Fields.Names()

	h.mu.Lock()
	defer h.mu.Unlock()

	c.Fprintf(h.Writer, "%s: [%s] %-25s", bold.Sprintf("%*s", h.Padding+1, level), time.Now().Format(time.StampMilli), e.Message)

	for _, name := range names {
		if name == "source" {
			continue
		}
		fmt.Fprintf(h.Writer, " %s=%v", c.Sprint(name), e.Fields.Get(name))
	}
	fmt.Fprintln(h.Writer)

	for _, name := range names {
		if name != "error" {
			continue
		}
		if err, ok := e.Fields.Get("error").(error); ok {
			err = errors.WithStackDepthIf(err, 1)
			fmt.Fprintf(h.Writer, "\n%s\n%+v\n\n", boldRed.Sprintf("Stacktrace:"), err)
		}
	}

	return nil
}

// Configure installs a terminal-appropriate handler on the default apex/log
// logger and applies lvl as the minimum emitted level.
func Configure(lvl log.Level) {
	log.SetHandler(New(os.Stderr, true))
	log.SetLevel(lvl)
}

// ParseLevel maps a config-file log level string to an apex/log.Level,
// defaulting to Info for anything unrecognized.
func ParseLevel(s string) log.Level {
	lvl, err := log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
