package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

var levelColor = map[Lvl]color.Attribute{
	LvlCrit:  color.FgMagenta,
	LvlError: color.FgRed,
	LvlWarn:  color.FgYellow,
	LvlInfo:  color.FgGreen,
	LvlDebug: color.FgCyan,
	LvlTrace: color.FgWhite,
}

// StreamHandler writes records to w, one line per record, optionally
// colorized by level.
type StreamHandler struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewTerminalHandler returns a StreamHandler that colorizes its output when w
// is a TTY (detected via mattn/go-isatty) and wraps w with mattn/go-colorable
// so ANSI codes render correctly on Windows consoles too; it falls back to
// plain text otherwise — e.g. when output has been redirected to a log file.
func NewTerminalHandler(w io.Writer) *StreamHandler {
	useColor := false
	out := w
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd())
		out = colorable.NewColorable(f)
	}
	return &StreamHandler{w: out, color: useColor}
}

// NewPlainHandler returns a StreamHandler with colorization forced off,
// suitable for the final metrics/log dump to a file.
func NewPlainHandler(w io.Writer) *StreamHandler {
	return &StreamHandler{w: w, color: false}
}

func (h *StreamHandler) Log(r *Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	level := r.Lvl.String()
	if h.color {
		c := color.New(levelColor[r.Lvl]).SprintFunc()
		level = c(level)
	}

	line := fmt.Sprintf("%s [%s] %s", r.Time.Format("2006-01-02T15:04:05.000"), level, r.Msg)
	if ctx := fmtCtx(r.Ctx); ctx != "" {
		line += " " + ctx
	}
	line += fmt.Sprintf(" (%+v)", r.Call)
	_, err := fmt.Fprintln(h.w, line)
	return err
}

// MultiHandler fans a record out to every handler in hs.
type MultiHandler []Handler

func (hs MultiHandler) Log(r *Record) error {
	var firstErr error
	for _, h := range hs {
		if err := h.Log(r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
