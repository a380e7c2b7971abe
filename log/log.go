// Copyright 2024 by the Authors
// This file is part of the zcash-network-stack library.
//
// The zcash-network-stack library is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public License
// as published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// The zcash-network-stack library is distributed in the hope that it will be
// useful, but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU Lesser
// General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the zcash-network-stack library. If not, see
// <http://www.gnu.org/licenses/>.

// Package log is the structured, leveled logger used throughout this
// module: a Logger carries a chain of key-value context, every record
// captures its call site, and a Handler decides how a record is rendered.
package log

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-stack/stack"
)

// Lvl is a logging level, most to least severe.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "crit"
	case LvlError:
		return "error"
	case LvlWarn:
		return "warn"
	case LvlInfo:
		return "info"
	case LvlDebug:
		return "debug"
	case LvlTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// Record is one log event.
type Record struct {
	Time time.Time
	Lvl  Lvl
	Msg  string
	Ctx  []interface{}
	Call stack.Call
}

// Handler processes a Record, e.g. formatting and writing it somewhere.
type Handler interface {
	Log(r *Record) error
}

// Logger is the call surface the rest of this module uses.
type Logger interface {
	New(ctx ...interface{}) Logger

	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
}

type logger struct {
	ctx     []interface{}
	handler Handler
	level   Lvl
}

func (l *logger) New(ctx ...interface{}) Logger {
	child := &logger{
		ctx:     append(append([]interface{}{}, l.ctx...), ctx...),
		handler: l.handler,
		level:   l.level,
	}
	return child
}

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	if lvl > l.level {
		return
	}
	r := &Record{
		Time: time.Now(),
		Lvl:  lvl,
		Msg:  msg,
		Ctx:  append(append([]interface{}{}, l.ctx...), ctx...),
		Call: stack.Caller(2),
	}
	_ = l.handler.Log(r)
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

// New returns a Logger writing through handler at the given level.
func New(handler Handler, level Lvl) Logger {
	return &logger{handler: handler, level: level}
}

var (
	rootMu sync.Mutex
	root   Logger = New(NewTerminalHandler(os.Stderr), LvlInfo)
)

// Root returns the process-wide default logger.
func Root() Logger {
	rootMu.Lock()
	defer rootMu.Unlock()
	return root
}

// SetRoot replaces the process-wide default logger, e.g. so cmd/zcrawl can
// install a file handler alongside the terminal one.
func SetRoot(l Logger) {
	rootMu.Lock()
	root = l
	rootMu.Unlock()
}

// fmtCtx renders a logger's key-value context pairs as "k=v k2=v2 ...".
func fmtCtx(ctx []interface{}) string {
	s := ""
	for i := 0; i+1 < len(ctx); i += 2 {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%v=%v", ctx[i], ctx[i+1])
	}
	return s
}
