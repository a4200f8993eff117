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

package identity

import "sync"

// SessionId correlates a method request with its response or
// application-error.
type SessionId uint32

// SessionGenerator is a per-proxy monotonic session counter with explicit
// wrap-around. A max limit of 0 means the natural type max.
type SessionGenerator struct {
	mu       sync.Mutex
	next     SessionId
	maxLimit SessionId
}

// NewSessionGenerator builds a generator. maxLimit of 0 means the natural
// uint32 max.
func NewSessionGenerator(maxLimit SessionId) *SessionGenerator {
	if maxLimit == 0 {
		maxLimit = ^SessionId(0)
	}
	return &SessionGenerator{maxLimit: maxLimit}
}

// Next returns the next session id, wrapping to 0 once maxLimit is
// exceeded.
func (g *SessionGenerator) Next() SessionId {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.next
	if g.next >= g.maxLimit {
		g.next = 0
	} else {
		g.next++
	}
	return id
}

// OfferState is a monotonically increasing session counter whose parity
// encodes offered (odd) or stopped (even).
type OfferState struct {
	mu      sync.Mutex
	counter uint64
}

// Start increments the counter if currently stopped, making IsOffered
// true. Repeated Start calls without an intervening Stop are equivalent
// to one: the counter does not advance while already offered.
func (o *OfferState) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counter%2 == 0 {
		o.counter++
	}
}

// Stop increments the counter if currently offered, making IsOffered
// false. Repeated Stop calls are equivalent to one.
func (o *OfferState) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counter%2 == 1 {
		o.counter++
	}
}

// IsOffered reports whether the service instance is currently offered:
// the counter's parity.
func (o *OfferState) IsOffered() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counter%2 == 1
}
