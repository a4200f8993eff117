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

import (
	"encoding/binary"
	"errors"
)

// ApplicationError is the wire payload of an application-error response:
// (error_domain:u64, error_code:u64, support_data:u64,
// user_message:length-prefixed-utf8), all integers big-endian. The user
// message is always parsed but never surfaced (R19-11 compatibility):
// Deserialize reads it off the wire to keep the cursor correctly
// positioned for anything following, then discards it.
type ApplicationError struct {
	ErrorDomain uint64
	ErrorCode   uint64
	SupportData uint64
	// UserMessage only has a non-empty value when constructed directly for
	// Serialize; it is always empty after Deserialize.
	UserMessage string
}

// Serialize encodes the ApplicationError as
// domain|code|support|len(message)|message, all integers big-endian.
func (a ApplicationError) Serialize() []byte {
	buf := make([]byte, 24+4+len(a.UserMessage))
	binary.BigEndian.PutUint64(buf[0:8], a.ErrorDomain)
	binary.BigEndian.PutUint64(buf[8:16], a.ErrorCode)
	binary.BigEndian.PutUint64(buf[16:24], a.SupportData)
	binary.BigEndian.PutUint32(buf[24:28], uint32(len(a.UserMessage)))
	copy(buf[28:], a.UserMessage)
	return buf
}

// DeserializeApplicationError round-trips (domain, code, support_data); the
// user message is always parsed to validate the frame length but always
// discarded (returned as "") on the output side.
func DeserializeApplicationError(b []byte) (ApplicationError, error) {
	if len(b) < 28 {
		return ApplicationError{}, errors.New("identity: application error frame too short")
	}

	domain := binary.BigEndian.Uint64(b[0:8])
	code := binary.BigEndian.Uint64(b[8:16])
	support := binary.BigEndian.Uint64(b[16:24])
	msgLen := binary.BigEndian.Uint32(b[24:28])

	if uint32(len(b)-28) < msgLen {
		return ApplicationError{}, errors.New("identity: application error message truncated")
	}

	return ApplicationError{
		ErrorDomain: domain,
		ErrorCode:   code,
		SupportData: support,
		UserMessage: "",
	}, nil
}
