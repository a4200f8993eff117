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

// Package sidechannel frames and dispatches the out-of-band control
// messages coordinating a zero-copy connection: the connection handshake,
// listening on/off, content-free wake-up notifications, shutdown and
// termination. Frames are CBOR-encoded and length-prefixed over a
// reliable, in-order local transport.
package sidechannel

import (
	"encoding/binary"
	"fmt"
	"io"

	libcbr "github.com/fxamacker/cbor/v2"

	"github.com/sabouaram/memcon/logic"
	"github.com/sabouaram/memcon/shmem"
)

// MessageType discriminates the control frames on the side channel.
type MessageType uint8

const (
	// TypeConnection is the server's first frame after Connect: it offers
	// the slot pool and server queue mappings to the peer.
	TypeConnection MessageType = iota + 1

	// TypeAckConnection is the peer's answer to TypeConnection, carrying
	// the client queue it allocated in return.
	TypeAckConnection

	// TypeStartListening asks the server to wake the peer on new slots.
	TypeStartListening

	// TypeStopListening reverts the peer to polling; notifications stop.
	TypeStopListening

	// TypeNotification is the content-free wake-up, carrying only the
	// drops coalesced since the previous notification.
	TypeNotification

	// TypeShutdown announces the sender is closing the whole server.
	TypeShutdown

	// TypeTermination announces the sender is closing this one connection.
	TypeTermination
)

// String implements fmt.Stringer.
func (t MessageType) String() string {
	switch t {
	case TypeConnection:
		return "Connection"
	case TypeAckConnection:
		return "AckConnection"
	case TypeStartListening:
		return "StartListening"
	case TypeStopListening:
		return "StopListening"
	case TypeNotification:
		return "Notification"
	case TypeShutdown:
		return "Shutdown"
	case TypeTermination:
		return "Termination"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}

// ConnectionPayload is the handshake content: both region configurations
// plus the exchange handles granting the peer map access.
type ConnectionPayload struct {
	SlotConfig  shmem.SlotMemoryConfig  `cbor:"1,keyasint"`
	SlotHandle  shmem.ExchangeHandle    `cbor:"2,keyasint"`
	QueueConfig shmem.QueueMemoryConfig `cbor:"3,keyasint"`
	QueueHandle shmem.ExchangeHandle    `cbor:"4,keyasint"`
}

// AckPayload carries the client queue the peer allocated in answer to the
// handshake.
type AckPayload struct {
	QueueConfig shmem.QueueMemoryConfig `cbor:"1,keyasint"`
	QueueHandle shmem.ExchangeHandle    `cbor:"2,keyasint"`
}

// Frame is one typed control message. Exactly the payload matching Type is
// populated; all others stay nil and are omitted on the wire.
type Frame struct {
	Type       MessageType               `cbor:"1,keyasint"`
	Connection *ConnectionPayload        `cbor:"2,keyasint,omitempty"`
	Ack        *AckPayload               `cbor:"3,keyasint,omitempty"`
	Dropped    *logic.DroppedInformation `cbor:"4,keyasint,omitempty"`
}

// maxFrameSize bounds a decoded frame so a corrupted length prefix cannot
// drive an unbounded allocation.
const maxFrameSize = 1 << 20

// EncodeFrame renders f as a big-endian u32 length prefix followed by the
// CBOR body.
func EncodeFrame(f Frame) ([]byte, error) {
	body, err := libcbr.Marshal(f)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out[:4], uint32(len(body)))
	copy(out[4:], body)
	return out, nil
}

// DecodeFrame reads one length-prefixed frame from r. io.EOF is returned
// unwrapped when the stream ends cleanly between frames.
func DecodeFrame(r io.Reader) (Frame, error) {
	var (
		f      Frame
		prefix [4]byte
	)

	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return f, err
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size == 0 || size > maxFrameSize {
		return f, fmt.Errorf("sidechannel: invalid frame length %d", size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return f, err
	}

	if err := libcbr.Unmarshal(body, &f); err != nil {
		return f, err
	}

	return f, nil
}

// DecodeFrameBytes decodes one already-delimited frame body (prefix
// included).
func DecodeFrameBytes(b []byte) (Frame, error) {
	var f Frame

	if len(b) < 4 {
		return f, fmt.Errorf("sidechannel: frame shorter than its length prefix")
	}

	size := binary.BigEndian.Uint32(b[:4])
	if uint32(len(b)-4) != size {
		return f, fmt.Errorf("sidechannel: frame length %d does not match prefix %d", len(b)-4, size)
	}

	if err := libcbr.Unmarshal(b[4:], &f); err != nil {
		return f, err
	}

	return f, nil
}
