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

package util

import (
	"sync"

	"github.com/sabouaram/memcon/ipcerr"
)

// Matcher selects which errors a Handler in HandleErrors applies to: a
// single code, a list of codes, or the Else sentinel (valid only as the
// last matcher in the list).
type Matcher struct {
	codes  []ipcerr.CodeError
	isElse bool
}

// Code builds a Matcher that matches a single error code.
func Code(c ipcerr.CodeError) Matcher {
	return Matcher{codes: []ipcerr.CodeError{c}}
}

// Codes builds a Matcher that matches any of the given error codes.
func Codes(c ...ipcerr.CodeError) Matcher {
	return Matcher{codes: append([]ipcerr.CodeError{}, c...)}
}

// Else builds the catch-all Matcher. It belongs in the last entry passed
// to HandleErrors: it matches every code wherever it appears, so the
// entries after it are never reached.
func Else() Matcher {
	return Matcher{isElse: true}
}

func (m Matcher) matches(code ipcerr.CodeError) bool {
	if m.isElse {
		return true
	}
	for _, c := range m.codes {
		if c == code {
			return true
		}
	}
	return false
}

// MatchHandler pairs a Matcher with the handler invoked when it matches.
type MatchHandler struct {
	Matcher Matcher
	Handler func(err ipcerr.Error)
}

var (
	defaultHandlerMu sync.Mutex
	defaultHandler   = func(err ipcerr.Error) {
		Exit(1)
	}
)

// SetDefaultErrorHandler replaces the process-wide handler invoked by
// HandleErrors when no matcher in the list matches. The initial default
// aborts the process; this is the only way to replace it.
func SetDefaultErrorHandler(h func(err ipcerr.Error)) {
	defaultHandlerMu.Lock()
	defer defaultHandlerMu.Unlock()
	if h != nil {
		defaultHandler = h
	}
}

// HandleErrors dispatches err through matchers in order, invoking the
// Handler of the first Matcher that matches err's code. If err does not
// carry an ipcerr.Error (i.e. is nil, or a foreign error), HandleErrors
// does nothing. If no matcher matches, the process-wide default handler
// runs.
func HandleErrors(err error, matchers ...MatchHandler) {
	e, ok := ipcerr.As(err)
	if !ok {
		return
	}

	for _, m := range matchers {
		if m.Matcher.matches(e.Code()) {
			m.Handler(e)
			return
		}
	}

	defaultHandlerMu.Lock()
	h := defaultHandler
	defaultHandlerMu.Unlock()
	h(e)
}
