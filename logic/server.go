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

// Package logic implements the slot accounting engine behind a zero-copy
// server: it tracks which receivers currently hold which slots, enforces
// the per-class concurrency limit, and decides per receiver whether a
// newly produced slot is consumed or dropped.
package logic

import (
	"sync"

	"github.com/sabouaram/memcon/identity"
	"github.com/sabouaram/memcon/ipcerr"
	"github.com/sabouaram/memcon/log"
	"github.com/sabouaram/memcon/shmem"
	"github.com/sabouaram/memcon/util"

	libbts "github.com/bits-and-blooms/bitset"
)

// ReceiverHandle names one registration inside a Server. It is returned by
// Register and consumed by every per-receiver operation; a handle becomes
// invalid after Deregister.
type ReceiverHandle struct {
	id  identity.ReceiverId
	idx int
}

// Id returns the receiver identity this handle was registered under.
func (h ReceiverHandle) Id() identity.ReceiverId {
	return h.id
}

// Server is the accounting collaborator of the receiver state machine. The
// receiver registers itself once connected, reports released slots, and
// asks whether its own bookkeeping turned out corrupted.
type Server interface {
	// Register adds a receiver of the given class, reading the peer's
	// notification queue from queue. It fails when the class handle is
	// unknown.
	Register(id identity.ReceiverId, class identity.ClassHandle, queue *shmem.Region) (ReceiverHandle, error)

	// Deregister removes the registration; any slots the receiver still
	// holds are released. Unknown or stale handles are ignored.
	Deregister(h ReceiverHandle)

	// SlotSent records that a producer filled slot. For every registered
	// receiver the class limit decides consumed or dropped; drops
	// accumulate per receiver until TakeDropped.
	SlotSent(slot uint)

	// SlotReleased records that the receiver named by h returned slot.
	// Returning a slot the receiver does not hold marks the registration
	// corrupted.
	SlotReleased(h ReceiverHandle, slot uint)

	// TakeDropped returns the drops coalesced for h since the previous
	// call, resetting the window. The result is never nil.
	TakeDropped(h ReceiverHandle) *DroppedInformation

	// HasCausedCorruption reports whether h's own behaviour (for now: an
	// unheld-slot release) corrupted its accounting.
	HasCausedCorruption(h ReceiverHandle) bool
}

type classState struct {
	limit uint64
	inUse uint64
}

type registration struct {
	id        identity.ReceiverId
	class     identity.ClassHandle
	queue     *shmem.Region
	held      *libbts.BitSet
	dropped   *DroppedInformation
	corrupted bool
	active    bool
}

type logicServer struct {
	mu       sync.Mutex
	log      log.Logger
	numSlots uint
	classes  []classState
	regs     []*registration
}

// NewServer builds the accounting engine for numSlots slots and one class
// per entry of classLimits.
func NewServer(l log.Logger, numSlots uint, classLimits []uint64) Server {
	if l == nil {
		l = log.Discard()
	}

	classes := make([]classState, len(classLimits))
	for i, lim := range classLimits {
		classes[i] = classState{limit: lim}
	}

	return &logicServer{
		log:      l,
		numSlots: numSlots,
		classes:  classes,
	}
}

func (s *logicServer) Register(id identity.ReceiverId, class identity.ClassHandle, queue *shmem.Region) (ReceiverHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int(class) < 0 || int(class) >= len(s.classes) {
		return ReceiverHandle{}, ipcerr.CodeProtocolError.Errorf("unknown receiver class %d", class)
	}

	reg := &registration{
		id:      id,
		class:   class,
		queue:   queue,
		held:    libbts.New(s.numSlots),
		dropped: NewDroppedInformation(s.numSlots),
		active:  true,
	}

	for i, r := range s.regs {
		if r == nil {
			s.regs[i] = reg
			return ReceiverHandle{id: id, idx: i}, nil
		}
	}

	s.regs = append(s.regs, reg)
	return ReceiverHandle{id: id, idx: len(s.regs) - 1}, nil
}

func (s *logicServer) Deregister(h ReceiverHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg := s.lookup(h)
	if reg == nil {
		return
	}

	// Release everything still held so the class budget is returned.
	cls := &s.classes[reg.class]
	for i, ok := reg.held.NextSet(0); ok; i, ok = reg.held.NextSet(i + 1) {
		if cls.inUse == 0 {
			util.TerminateOnViolation("class %d budget underflow releasing receiver %s", reg.class, reg.id)
		}
		cls.inUse--
	}

	s.regs[h.idx] = nil
	s.log.WithField("receiver", reg.id.String()).Debug("receiver deregistered")
}

func (s *logicServer) SlotSent(slot uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, reg := range s.regs {
		if reg == nil || !reg.active {
			continue
		}

		cls := &s.classes[reg.class]
		if cls.inUse < cls.limit && !reg.held.Test(slot) {
			reg.held.Set(slot)
			cls.inUse++
		} else {
			reg.dropped.MarkDropped(slot)
		}
	}
}

func (s *logicServer) SlotReleased(h ReceiverHandle, slot uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg := s.lookup(h)
	if reg == nil {
		return
	}

	if !reg.held.Test(slot) {
		reg.corrupted = true
		s.log.WithFields(map[string]interface{}{
			"receiver": reg.id.String(),
			"slot":     slot,
		}).Warn("release of a slot the receiver does not hold")
		return
	}

	reg.held.Clear(slot)

	// A held slot always has a budget unit behind it; running out here
	// means the accounting itself broke.
	cls := &s.classes[reg.class]
	if cls.inUse == 0 {
		util.TerminateOnViolation("class %d budget underflow releasing slot %d", reg.class, slot)
	}
	cls.inUse--
}

func (s *logicServer) TakeDropped(h ReceiverHandle) *DroppedInformation {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg := s.lookup(h)
	if reg == nil {
		return NewDroppedInformation(s.numSlots)
	}

	return reg.dropped.TakeSnapshot()
}

func (s *logicServer) HasCausedCorruption(h ReceiverHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg := s.lookup(h)
	return reg != nil && reg.corrupted
}

// lookup resolves h against the arena, rejecting stale handles whose slot
// was re-issued to another receiver.
func (s *logicServer) lookup(h ReceiverHandle) *registration {
	if h.idx < 0 || h.idx >= len(s.regs) {
		return nil
	}

	reg := s.regs[h.idx]
	if reg == nil || reg.id != h.id {
		return nil
	}

	return reg
}
