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

// Package ipcerr provides the error-kind vocabulary shared by the MemCon
// receiver state machine and the method/event router.
//
// Every fatal or application-visible condition in this module is one of a
// small, closed set of kinds (CodeError). A CodeError carries no parent by
// itself; Error() attaches zero or more causes chained under the code.
package ipcerr

import (
	"fmt"
)

// CodeError is a closed vocabulary of error kinds, never arbitrary strings.
type CodeError uint16

const (
	// CodeUnknown is the fallback for a code with no registered message.
	CodeUnknown CodeError = 0

	// CodeUnexpectedReceiverState: an operation invalid for the receiver's
	// current state (Connect called twice, Terminate after Disconnected...).
	CodeUnexpectedReceiverState CodeError = 100

	// CodePeerDisconnectedError: the peer closed the side channel without a
	// protocol-level Termination frame.
	CodePeerDisconnectedError CodeError = 101

	// CodePeerCrashedError: the side channel transport detected the peer
	// process ended abnormally.
	CodePeerCrashedError CodeError = 102

	// CodeProtocolError: an out-of-sequence or unexpected control frame.
	CodeProtocolError CodeError = 103

	// CodeMemoryError: the server builder failed to allocate slot or queue
	// shared memory.
	CodeMemoryError CodeError = 104

	// CodeServiceNotAvailable: a method was invoked while the service is
	// down, or a response indicated the same.
	CodeServiceNotAvailable CodeError = 105

	// CodeNetworkBindingFailure: an unspecified transport or deserialization
	// failure; also used for an application error with no configured domain.
	CodeNetworkBindingFailure CodeError = 106

	// CodeMethodArgumentsNotRetrieved: skeleton-side argument deserialization
	// failed.
	CodeMethodArgumentsNotRetrieved CodeError = 107
)

var message = map[CodeError]string{
	CodeUnexpectedReceiverState:     "operation is not valid for the current receiver state",
	CodePeerDisconnectedError:       "peer disconnected without protocol termination",
	CodePeerCrashedError:            "peer process ended abnormally",
	CodeProtocolError:               "unexpected or out-of-sequence control frame",
	CodeMemoryError:                 "failed to allocate shared memory",
	CodeServiceNotAvailable:         "service instance is not currently offered",
	CodeNetworkBindingFailure:       "transport or deserialization failure",
	CodeMethodArgumentsNotRetrieved: "failed to deserialize method arguments",
}

// Message returns the human-readable description registered for c, or the
// generic "unknown error" message if c is not one of the constants above.
func (c CodeError) Message() string {
	if m, ok := message[c]; ok {
		return m
	}
	return "unknown error"
}

// String implements fmt.Stringer.
func (c CodeError) String() string {
	return fmt.Sprintf("%d (%s)", uint16(c), c.Message())
}

// Error builds a chained Error from this code and zero or more causes.
func (c CodeError) Error(parent ...error) Error {
	return &ipcError{code: c, msg: c.Message(), parent: filterNil(parent)}
}

// Errorf builds an Error from this code and a formatted detail message. It
// attaches no parent causes.
func (c CodeError) Errorf(format string, args ...interface{}) Error {
	return &ipcError{code: c, msg: fmt.Sprintf("%s: %s", c.Message(), fmt.Sprintf(format, args...))}
}

func filterNil(in []error) []error {
	out := make([]error, 0, len(in))
	for _, e := range in {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}
