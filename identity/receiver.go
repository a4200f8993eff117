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

import "fmt"

// ReceiverId identifies a Receiver within one server. Index is unique among
// currently-active receivers and is < max_receivers; Generation detects
// stale handles across index re-use.
type ReceiverId struct {
	Index      int
	Generation uint64
}

// String renders the id as "index#generation".
func (r ReceiverId) String() string {
	return fmt.Sprintf("%d#%d", r.Index, r.Generation)
}

// ClassHandle is an opaque index into a server's receiver-class table.
type ClassHandle int

// ClientId identifies the client-side endpoint of a proxy method backend.
type ClientId uint16

// MethodId identifies one method within a service interface.
type MethodId uint16

// EventId identifies one event within a service interface.
type EventId uint16
