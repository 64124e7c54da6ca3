// Copyright 2019 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package log is a minimal structured logger: package-level level functions
// taking alternating key/value context pairs, rendered through a swappable
// Handler.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Lvl is the level of a log record.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// Record is a single logged event.
type Record struct {
	Time time.Time
	Lvl  Lvl
	Msg  string
	Ctx  []interface{}
	Call stack.Call
}

// Handler writes a Record out somewhere.
type Handler interface {
	Log(r *Record) error
}

var (
	root   Handler = StreamHandler(os.Stderr, TerminalFormat(isatty.IsTerminal(os.Stderr.Fd())))
	rootMu sync.RWMutex
)

// SetHandler replaces the process-wide root handler, for example to
// redirect logging into a buffer.
func SetHandler(h Handler) {
	rootMu.Lock()
	defer rootMu.Unlock()
	root = h
}

func write(lvl Lvl, msg string, ctx ...interface{}) {
	rootMu.RLock()
	h := root
	rootMu.RUnlock()

	r := &Record{Time: time.Now(), Lvl: lvl, Msg: msg, Ctx: ctx}
	if lvl == LvlCrit {
		r.Call = stack.Caller(2)
	}
	_ = h.Log(r)
}

func Debug(msg string, ctx ...interface{}) { write(LvlDebug, msg, ctx...) }
func Info(msg string, ctx ...interface{}) { write(LvlInfo, msg, ctx...) }
func Warn(msg string, ctx ...interface{}) { write(LvlWarn, msg, ctx...) }
func Error(msg string, ctx ...interface{}) { write(LvlError, msg, ctx...) }

// Crit logs at the critical level and additionally captures the call stack
// of the caller, mirroring the diagnostic-dump requirement attached to every
// fatal condition in the accounts-snapshot-coordinator's error taxonomy.
// It does not itself terminate the process; callers own the shutdown path.
func Crit(msg string, ctx ...interface{}) { write(LvlCrit, msg, ctx...) }

// StreamHandler writes formatted records to an io.Writer, one per line. If
// wr is an *os.File backed by a real terminal, it is wrapped with
// go-colorable so ANSI color codes render correctly on Windows consoles too.
func StreamHandler(wr io.Writer, fmtr func(*Record) []byte) Handler {
	if f, ok := wr.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		wr = colorable.NewColorable(f)
	}
	return &streamHandler{wr: wr, fmtr: fmtr}
}

type streamHandler struct {
	mu   sync.Mutex
	wr   io.Writer
	fmtr func(*Record) []byte
}

func (h *streamHandler) Log(r *Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.wr.Write(h.fmtr(r))
	return err
}

// TerminalFormat renders a record the way a developer reading a scrolling
// terminal wants to see it: level, message, then "key=value" pairs. Colors
// are only emitted when useColor is true (the caller decides this based on
// isatty).
func TerminalFormat(useColor bool) func(*Record) []byte {
	return func(r *Record) []byte {
		var b []byte
		if useColor {
			b = append(b, colorFor(r.Lvl)...)
		}
		b = append(b, fmt.Sprintf("[%s] %-5s %s", r.Time.Format("15:04:05.000"), r.Lvl, r.Msg)...)
		if useColor {
			b = append(b, resetColor...)
		}
		for i := 0; i+1 < len(r.Ctx); i += 2 {
			b = append(b, fmt.Sprintf(" %v=%v", r.Ctx[i], r.Ctx[i+1])...)
		}
		if r.Call != (stack.Call{}) {
			b = append(b, fmt.Sprintf(" stack=%+v", r.Call)...)
		}
		b = append(b, '\n')
		return b
	}
}

var resetColor = []byte("\x1b[0m")

func colorFor(l Lvl) []byte {
	switch l {
	case LvlCrit, LvlError:
		return []byte("\x1b[31m")
	case LvlWarn:
		return []byte("\x1b[33m")
	case LvlDebug:
		return []byte("\x1b[36m")
	default:
		return nil
	}
}
