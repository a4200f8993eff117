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

package ipcerr

import (
	"errors"
	"strings"
)

// Error is the error type returned throughout this module. It carries a
// closed-vocabulary CodeError plus an optional chain of causing errors.
type Error interface {
	error

	// Code returns the CodeError this error was built from.
	Code() CodeError

	// Is reports whether code matches this error's code. Unlike the
	// standard library's errors.Is, this does not require a sentinel error
	// value: CodeError constants are plain values, not errors.
	Is(code CodeError) bool

	// Unwrap exposes the parent chain to errors.Is / errors.As.
	Unwrap() []error
}

type ipcError struct {
	code   CodeError
	msg    string
	parent []error
}

func (e *ipcError) Error() string {
	if len(e.parent) == 0 {
		return e.msg
	}

	parts := make([]string, 0, len(e.parent)+1)
	parts = append(parts, e.msg)
	for _, p := range e.parent {
		parts = append(parts, p.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ipcError) Code() CodeError {
	return e.code
}

func (e *ipcError) Is(code CodeError) bool {
	return e.code == code
}

func (e *ipcError) Unwrap() []error {
	return e.parent
}

// Is reports whether err wraps (via Unwrap chains, including multi-error
// Unwrap() []error) an Error whose Code() equals code. It is the preferred
// way to branch on a CodeError without type-asserting to the concrete type.
func Is(err error, code CodeError) bool {
	var e Error
	if errors.As(err, &e) {
		return e.Code() == code
	}
	return false
}

// As extracts the first Error in err's chain, the way errors.As works for
// concrete types.
func As(err error) (Error, bool) {
	var e Error
	ok := errors.As(err, &e)
	return e, ok
}
