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

package router

import (
	"context"
	"sync"
)

// result carries a resolved method outcome: a value or an error, never
// both.
type result[T any] struct {
	value T
	err   error
}

// Promise is the producer side of one pending method call. It resolves at
// most once; later resolutions are dropped.
type Promise[T any] struct {
	once sync.Once
	ch   chan result[T]
}

// Future is the consumer side handed to the application.
type Future[T any] struct {
	p *Promise[T]

	mu   sync.Mutex
	done bool
	res  result[T]
}

// NewPromise pairs a Promise with its Future.
func NewPromise[T any]() (*Promise[T], *Future[T]) {
	p := &Promise[T]{ch: make(chan result[T], 1)}
	return p, &Future[T]{p: p}
}

// Resolve fulfills the promise with a value.
func (p *Promise[T]) Resolve(value T) {
	p.once.Do(func() {
		p.ch <- result[T]{value: value}
	})
}

// Reject fulfills the promise with an error.
func (p *Promise[T]) Reject(err error) {
	p.once.Do(func() {
		p.ch <- result[T]{err: err}
	})
}

// resolvedFuture builds a Future already fulfilled with err.
func resolvedFuture[T any](err error) *Future[T] {
	p, f := NewPromise[T]()
	p.Reject(err)
	return f
}

// Get blocks until the promise resolves or ctx ends. Repeated calls
// return the same outcome.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done {
		return f.res.value, f.res.err
	}

	select {
	case r := <-f.p.ch:
		f.done = true
		f.res = r
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Poll reports whether the promise has resolved, without blocking. The
// outcome is only meaningful when ready is true.
func (f *Future[T]) Poll() (value T, err error, ready bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done {
		return f.res.value, f.res.err, true
	}

	select {
	case r := <-f.p.ch:
		f.done = true
		f.res = r
		return r.value, r.err, true
	default:
		var zero T
		return zero, nil, false
	}
}
