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
	"fmt"

	"github.com/sabouaram/memcon/identity"
)

// AppErrorCode is the resolved error a future carries when the peer
// answered with an application error from a configured domain. Message is
// always empty: the wire user message is parsed but never surfaced.
type AppErrorCode struct {
	Domain      uint64
	Code        uint64
	SupportData uint64
	Message     string
}

// Error implements error.
func (e *AppErrorCode) Error() string {
	return fmt.Sprintf("application error domain=%d code=%d support=%d", e.Domain, e.Code, e.SupportData)
}

// ErrorDomain describes one configured application-error domain: its
// name and the codes a method may legally answer with.
type ErrorDomain struct {
	Name  string
	Codes map[uint64]struct{}
}

// ApplicationErrorTable maps wire error domains to their configuration.
// A nil table resolves nothing.
type ApplicationErrorTable struct {
	domains map[uint64]ErrorDomain
}

// NewApplicationErrorTable builds a table from the configured domains.
func NewApplicationErrorTable(domains map[uint64]ErrorDomain) *ApplicationErrorTable {
	return &ApplicationErrorTable{domains: domains}
}

// Resolve maps a wire application error to its typed code. It fails when
// the table is nil, the domain is not configured, or the code is outside
// the domain's set.
func (t *ApplicationErrorTable) Resolve(ae identity.ApplicationError) (*AppErrorCode, bool) {
	if t == nil || t.domains == nil {
		return nil, false
	}

	dom, ok := t.domains[ae.ErrorDomain]
	if !ok {
		return nil, false
	}

	if _, ok = dom.Codes[ae.ErrorCode]; !ok {
		return nil, false
	}

	return &AppErrorCode{
		Domain:      ae.ErrorDomain,
		Code:        ae.ErrorCode,
		SupportData: ae.SupportData,
		Message:     "",
	}, true
}
