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

package access

import "fmt"

// IntegrityLevel orders peers by the assurance level of their runtime
// environment. A skeleton configured with a minimum level rejects peers
// below it at side-channel acceptance, before any Receiver exists.
type IntegrityLevel uint8

const (
	IntegrityQM IntegrityLevel = iota
	IntegrityASILA
	IntegrityASILB
	IntegrityASILC
	IntegrityASILD
)

// Meets reports whether l satisfies the required minimum level.
func (l IntegrityLevel) Meets(minimum IntegrityLevel) bool {
	return l >= minimum
}

// String implements fmt.Stringer.
func (l IntegrityLevel) String() string {
	switch l {
	case IntegrityQM:
		return "QM"
	case IntegrityASILA:
		return "ASIL-A"
	case IntegrityASILB:
		return "ASIL-B"
	case IntegrityASILC:
		return "ASIL-C"
	case IntegrityASILD:
		return "ASIL-D"
	default:
		return fmt.Sprintf("IntegrityLevel(%d)", uint8(l))
	}
}
