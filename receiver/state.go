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

package receiver

import "fmt"

// State is the lifecycle position of one Receiver. StateDisconnected is
// terminal: no event moves a receiver out of it.
type State uint8

const (
	// StateConnecting is the initial state: the handshake has not been
	// acknowledged yet.
	StateConnecting State = iota

	// StateConnected means the peer acknowledged the handshake and the
	// client queue is mapped; the listening sub-state gates notifications.
	StateConnected

	// StateCorrupted means a protocol or peer failure made this connection
	// unusable; the only way out is StateDisconnected.
	StateCorrupted

	// StateDisconnected is terminal.
	StateDisconnected
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateCorrupted:
		return "Corrupted"
	case StateDisconnected:
		return "Disconnected"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// ListenState is the sub-state of StateConnected gating wake-up
// notifications. The initial sub-state is ListenPolling.
type ListenState uint8

const (
	// ListenPolling: the peer polls the queue itself; notifications are
	// suppressed.
	ListenPolling ListenState = iota

	// ListenNotified: the peer asked to be woken on every new slot.
	ListenNotified
)

// String implements fmt.Stringer.
func (s ListenState) String() string {
	switch s {
	case ListenPolling:
		return "Polling"
	case ListenNotified:
		return "Notified"
	default:
		return fmt.Sprintf("ListenState(%d)", uint8(s))
	}
}
