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

package sidechannel

import (
	"fmt"

	"github.com/sabouaram/memcon/access"
)

// AcceptanceError reports a peer rejected before any connection state
// exists. It is distinct from the transport error codes: the peer never
// became a protocol participant.
type AcceptanceError struct {
	Peer    access.IntegrityLevel
	Minimum access.IntegrityLevel
}

// Error implements error.
func (e *AcceptanceError) Error() string {
	return fmt.Sprintf("sidechannel: peer integrity level %s below required minimum %s", e.Peer, e.Minimum)
}

// Acceptor gates incoming side channels on the peer's integrity level
// before a connection object is built for them.
type Acceptor struct {
	Minimum access.IntegrityLevel
}

// Accept returns nil when the peer meets the configured minimum, or an
// *AcceptanceError when it must be rejected.
func (a Acceptor) Accept(peer access.IntegrityLevel) error {
	if peer.Meets(a.Minimum) {
		return nil
	}
	return &AcceptanceError{Peer: peer, Minimum: a.Minimum}
}
