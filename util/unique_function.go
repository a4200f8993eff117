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

// Package util provides the small language-support primitives the receiver
// state machine and router are built on: a move-only callable container, a
// fatal-exit primitive, and a typed-error dispatcher.
package util

import (
	"reflect"
	"sync/atomic"
)

// UniqueFunction is a move-only callable container. Go has no move
// semantics, so "move-only" is enforced at runtime: Take empties the
// original holder, and at most one caller ever obtains the callable.
//
// A zero-value UniqueFunction is valid and empty; calling Invoke on an
// empty instance aborts the process via Exit.
type UniqueFunction[Signature any] struct {
	fn atomic.Pointer[Signature]
}

// NewUniqueFunction wraps fn in a UniqueFunction. Passing a nil fn produces
// an empty instance.
func NewUniqueFunction[Signature any](fn Signature) *UniqueFunction[Signature] {
	u := &UniqueFunction[Signature]{}
	if rv := reflect.ValueOf(&fn).Elem(); rv.Kind() == reflect.Func && rv.IsNil() {
		return u
	}
	u.fn.Store(&fn)
	return u
}

// Empty reports whether this holder currently has no callable stored,
// either because it was never set or because Take already moved it out.
func (u *UniqueFunction[Signature]) Empty() bool {
	return u == nil || u.fn.Load() == nil
}

// Take atomically moves the stored callable out of u, leaving u empty.
// After Take, the holder is guaranteed empty regardless of concurrent
// callers, and at most one caller receives the non-nil result.
func (u *UniqueFunction[Signature]) Take() (Signature, bool) {
	var zero Signature
	if u == nil {
		return zero, false
	}
	if p := u.fn.Swap(nil); p != nil {
		return *p, true
	}
	return zero, false
}

// Reset clears the stored callable.
func (u *UniqueFunction[Signature]) Reset() {
	if u != nil {
		u.fn.Store(nil)
	}
}
