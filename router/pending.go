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
	"sync"

	"github.com/sabouaram/memcon/identity"
	"github.com/sabouaram/memcon/ipcerr"
)

// PendingRequestMap correlates in-flight method calls with their promises,
// keyed by session id. It is internally synchronized and shared between
// the application threads inserting requests and the reactor resolving
// them; it exposes removal but never iteration.
type PendingRequestMap[T any] struct {
	mu      sync.Mutex
	pending map[identity.SessionId]*Promise[T]
}

// NewPendingRequestMap returns an empty map.
func NewPendingRequestMap[T any]() *PendingRequestMap[T] {
	return &PendingRequestMap[T]{pending: make(map[identity.SessionId]*Promise[T])}
}

// Insert registers the promise under session. A session already present is
// a protocol violation: the monotonic session counter guarantees at most
// one outstanding entry per id.
func (m *PendingRequestMap[T]) Insert(session identity.SessionId, p *Promise[T]) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pending[session]; ok {
		return ipcerr.CodeProtocolError.Errorf("session %d already pending", session)
	}

	m.pending[session] = p
	return nil
}

// MoveOutRequest removes and returns the promise registered under session.
// Removal is idempotent: a second call for the same id finds nothing.
func (m *PendingRequestMap[T]) MoveOutRequest(session identity.SessionId) (*Promise[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[session]
	if ok {
		delete(m.pending, session)
	}
	return p, ok
}

// MoveOutNextRequest removes and returns an arbitrary pending promise,
// for draining on cancellation.
func (m *PendingRequestMap[T]) MoveOutNextRequest() (*Promise[T], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for session, p := range m.pending {
		delete(m.pending, session)
		return p, true
	}
	return nil, false
}

// Len reports how many requests are currently pending.
func (m *PendingRequestMap[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
