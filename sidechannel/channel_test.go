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

package sidechannel_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/memcon/ipcerr"
	"github.com/sabouaram/memcon/logic"
	"github.com/sabouaram/memcon/shmem"
	. "github.com/sabouaram/memcon/sidechannel"
)

// recorder collects every dispatched callback for assertion.
type recorder struct {
	mu     sync.Mutex
	events []string
	errs   []ipcerr.CodeError
	acks   []AckPayload
	drops  []*logic.DroppedInformation
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.events...)
}

func (r *recorder) OnConnection(ConnectionPayload) { r.add("connection") }

func (r *recorder) OnAckConnection(p AckPayload) {
	r.mu.Lock()
	r.acks = append(r.acks, p)
	r.mu.Unlock()
	r.add("ack")
}

func (r *recorder) OnStartListening() { r.add("start") }
func (r *recorder) OnStopListening()  { r.add("stop") }

func (r *recorder) OnNotification(d *logic.DroppedInformation) {
	r.mu.Lock()
	r.drops = append(r.drops, d)
	r.mu.Unlock()
	r.add("notification")
}

func (r *recorder) OnShutdown()    { r.add("shutdown") }
func (r *recorder) OnTermination() { r.add("termination") }

func (r *recorder) OnError(code ipcerr.CodeError) {
	r.mu.Lock()
	r.errs = append(r.errs, code)
	r.mu.Unlock()
	r.add("error")
}

var _ = Describe("Frame codec", func() {
	It("round-trips the handshake payload", func() {
		in := Frame{
			Type: TypeConnection,
			Connection: &ConnectionPayload{
				SlotConfig:  shmem.SlotMemoryConfig{NumSlots: 4, ContentSize: 128, ContentAlignment: 16},
				SlotHandle:  shmem.ExchangeHandle{Token: "tok-a", Path: "/dev/shm/a"},
				QueueConfig: shmem.QueueMemoryConfig{Capacity: 8, ElementSize: 16, Alignment: 8},
				QueueHandle: shmem.ExchangeHandle{Token: "tok-b", Path: "/dev/shm/b"},
			},
		}

		raw, err := EncodeFrame(in)
		Expect(err).ToNot(HaveOccurred())

		out, err := DecodeFrameBytes(raw)
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Type).To(Equal(TypeConnection))
		Expect(out.Connection).ToNot(BeNil())
		Expect(*out.Connection).To(Equal(*in.Connection))
	})

	It("round-trips a notification with coalesced drops", func() {
		d := logic.NewDroppedInformation(8)
		d.MarkDropped(1)
		d.MarkDropped(5)

		raw, err := EncodeFrame(Frame{Type: TypeNotification, Dropped: d})
		Expect(err).ToNot(HaveOccurred())

		out, err := DecodeFrameBytes(raw)
		Expect(err).ToNot(HaveOccurred())
		Expect(out.Dropped).ToNot(BeNil())
		Expect(out.Dropped.Count()).To(Equal(uint64(2)))
		Expect(out.Dropped.HasDrop(1)).To(BeTrue())
		Expect(out.Dropped.HasDrop(5)).To(BeTrue())
		Expect(out.Dropped.HasDrop(2)).To(BeFalse())
	})

	It("rejects a mangled length prefix", func() {
		raw, err := EncodeFrame(Frame{Type: TypeShutdown})
		Expect(err).ToNot(HaveOccurred())

		_, err = DecodeFrameBytes(raw[:len(raw)-1])
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Channel", func() {
	var (
		srv *Channel
		cli *Channel
		rec *recorder
	)

	BeforeEach(func() {
		a, b := NewPipe()
		srv = NewChannel(a, nil)
		cli = NewChannel(b, nil)
		rec = &recorder{}
	})

	AfterEach(func() {
		_ = srv.Close()
		_ = cli.Close()
	})

	It("dispatches frames in sending order", func() {
		Expect(cli.Start(rec)).To(Succeed())

		Expect(srv.SendStartListening()).To(Succeed())
		Expect(srv.SendStopListening()).To(Succeed())
		Expect(srv.SendShutdown()).To(Succeed())

		Eventually(rec.list, time.Second).Should(Equal([]string{"start", "stop", "shutdown"}))
	})

	It("refuses a second Start", func() {
		Expect(cli.Start(rec)).To(Succeed())
		Expect(ipcerr.Is(cli.Start(rec), ipcerr.CodeUnexpectedReceiverState)).To(BeTrue())
	})

	It("maps a clean peer close to the disconnect code", func() {
		Expect(cli.Start(rec)).To(Succeed())
		Expect(srv.Close()).To(Succeed())

		Eventually(rec.list, time.Second).Should(ContainElement("error"))
		rec.mu.Lock()
		defer rec.mu.Unlock()
		Expect(rec.errs).To(Equal([]ipcerr.CodeError{ipcerr.CodePeerDisconnectedError}))
	})

	It("maps an abnormal peer end to the crash code", func() {
		a, b := NewPipe()
		cli = NewChannel(b, nil)
		rec = &recorder{}
		Expect(cli.Start(rec)).To(Succeed())

		a.(interface{ Crash() }).Crash()

		Eventually(rec.list, time.Second).Should(ContainElement("error"))
		rec.mu.Lock()
		defer rec.mu.Unlock()
		Expect(rec.errs).To(Equal([]ipcerr.CodeError{ipcerr.CodePeerCrashedError}))
	})

	It("reports the peer gone on send after close", func() {
		Expect(cli.Close()).To(Succeed())

		err := srv.SendTermination()
		Expect(ipcerr.Is(err, ipcerr.CodePeerDisconnectedError)).To(BeTrue())
	})
})
