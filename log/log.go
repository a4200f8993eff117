/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package log wraps logrus behind one small interface: a process id
// stamped once and carried on every entry, and a no-op implementation
// usable as an always-non-nil default.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// pid is the cached OS process id, read once at package init and attached
// to every log entry produced through this package - the one piece of
// process-wide mutable state this module carries besides the default error
// handler in package util.
var pid = os.Getpid()

// Logger is the logging seam used throughout this module. Every component
// that can log takes a Logger field defaulting to Discard().
type Logger interface {
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger

	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
}

type entry struct {
	e *logrus.Entry
}

// New builds a Logger backed by logrus at the given level, writing to
// os.Stderr, with the process id pre-attached to every entry.
func New(level logrus.Level) Logger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetOutput(os.Stderr)
	return &entry{e: l.WithField("pid", pid)}
}

func (l *entry) WithField(key string, value interface{}) Logger {
	return &entry{e: l.e.WithField(key, value)}
}

func (l *entry) WithFields(fields map[string]interface{}) Logger {
	return &entry{e: l.e.WithFields(fields)}
}

func (l *entry) Debug(args ...interface{}) { l.e.Debug(args...) }
func (l *entry) Info(args ...interface{})  { l.e.Info(args...) }
func (l *entry) Warn(args ...interface{})  { l.e.Warn(args...) }
func (l *entry) Error(args ...interface{}) { l.e.Error(args...) }

type discard struct{}

// Discard returns a Logger that drops everything. It is the zero-config
// default for components that are not handed a real Logger.
func Discard() Logger { return discard{} }

func (discard) WithField(string, interface{}) Logger     { return discard{} }
func (discard) WithFields(map[string]interface{}) Logger { return discard{} }
func (discard) Debug(...interface{})                     {}
func (discard) Info(...interface{})                      {}
func (discard) Warn(...interface{})                      {}
func (discard) Error(...interface{})                     {}
