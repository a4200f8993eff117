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

package server_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/memcon/ipcerr"
	. "github.com/sabouaram/memcon/server"
)

// complete fills every required parameter with small valid values.
func complete(b *Builder) {
	Expect(b.SetNumSlots(4)).To(Succeed())
	Expect(b.SetContentSize(128)).To(Succeed())
	Expect(b.SetContentAlignment(16)).To(Succeed())
	Expect(b.SetMaxReceivers(2)).To(Succeed())
	Expect(b.SetNumReceiverClasses(1)).To(Succeed())
	Expect(b.SetReceiverClassLimit(0, 2)).To(Succeed())
}

var _ = Describe("Builder", func() {
	var b *Builder

	BeforeEach(func() {
		b = NewBuilder(nil)
	})

	It("builds once every parameter is set", func() {
		complete(b)

		srv, err := b.Build()
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = srv.Close() }()
	})

	It("refuses a setter called twice", func() {
		Expect(b.SetNumSlots(4)).To(Succeed())

		err := b.SetNumSlots(8)
		Expect(ipcerr.Is(err, ipcerr.CodeUnexpectedReceiverState)).To(BeTrue())
	})

	It("refuses Build with a parameter missing", func() {
		Expect(b.SetNumSlots(4)).To(Succeed())

		_, err := b.Build()
		Expect(ipcerr.Is(err, ipcerr.CodeUnexpectedReceiverState)).To(BeTrue())
	})

	It("rejects a non-power-of-two alignment", func() {
		Expect(b.SetNumSlots(4)).To(Succeed())
		Expect(b.SetContentSize(128)).To(Succeed())
		Expect(b.SetContentAlignment(12)).To(Succeed())
		Expect(b.SetMaxReceivers(2)).To(Succeed())
		Expect(b.SetNumReceiverClasses(1)).To(Succeed())
		Expect(b.SetReceiverClassLimit(0, 2)).To(Succeed())

		_, err := b.Build()
		Expect(ipcerr.Is(err, ipcerr.CodeMemoryError)).To(BeTrue())
	})

	It("rejects a receiver count above the limit", func() {
		Expect(b.SetNumSlots(4)).To(Succeed())
		Expect(b.SetContentSize(128)).To(Succeed())
		Expect(b.SetContentAlignment(16)).To(Succeed())
		Expect(b.SetMaxReceivers(MaxReceiversLimit + 1)).To(Succeed())
		Expect(b.SetNumReceiverClasses(1)).To(Succeed())
		Expect(b.SetReceiverClassLimit(0, 2)).To(Succeed())

		_, err := b.Build()
		Expect(ipcerr.Is(err, ipcerr.CodeMemoryError)).To(BeTrue())
	})

	It("requires the class count before class limits", func() {
		err := b.SetReceiverClassLimit(0, 2)
		Expect(ipcerr.Is(err, ipcerr.CodeUnexpectedReceiverState)).To(BeTrue())
	})

	It("rejects a class outside the configured table", func() {
		Expect(b.SetNumReceiverClasses(1)).To(Succeed())

		err := b.SetReceiverClassLimit(3, 2)
		Expect(ipcerr.Is(err, ipcerr.CodeUnexpectedReceiverState)).To(BeTrue())
	})

	It("refuses a class left without a limit", func() {
		Expect(b.SetNumSlots(4)).To(Succeed())
		Expect(b.SetContentSize(128)).To(Succeed())
		Expect(b.SetContentAlignment(16)).To(Succeed())
		Expect(b.SetMaxReceivers(2)).To(Succeed())
		Expect(b.SetNumReceiverClasses(2)).To(Succeed())
		Expect(b.SetReceiverClassLimit(0, 2)).To(Succeed())

		_, err := b.Build()
		Expect(ipcerr.Is(err, ipcerr.CodeUnexpectedReceiverState)).To(BeTrue())
	})

	It("forbids every call after Build", func() {
		complete(b)

		srv, err := b.Build()
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = srv.Close() }()

		Expect(ipcerr.Is(b.SetMemoryTechnology(0), ipcerr.CodeUnexpectedReceiverState)).To(BeTrue())

		_, err = b.Build()
		Expect(ipcerr.Is(err, ipcerr.CodeUnexpectedReceiverState)).To(BeTrue())
	})
})
