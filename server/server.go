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

package server

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sabouaram/memcon/access"
	"github.com/sabouaram/memcon/identity"
	"github.com/sabouaram/memcon/ipcerr"
	"github.com/sabouaram/memcon/log"
	"github.com/sabouaram/memcon/logic"
	"github.com/sabouaram/memcon/receiver"
	"github.com/sabouaram/memcon/shmem"
	"github.com/sabouaram/memcon/sidechannel"
)

// slotEntry is one arena position: its pre-allocated region pair, the
// receiver currently issued on it, and the generation stamped into the
// next ReceiverId handed out for this index.
type slotEntry struct {
	slotPool *shmem.Region
	srvQueue *shmem.Region
	rcv      *receiver.Receiver
	gen      uint64
}

// Server owns the accounting engine, the shared-memory arena, and every
// issued Receiver. It is returned exclusively by Builder.Build.
type Server struct {
	logc     log.Logger
	slotCfg  shmem.SlotMemoryConfig
	queueCfg shmem.QueueMemoryConfig
	logic    logic.Server
	mem      *shmem.MemoryManager
	acceptor sidechannel.Acceptor

	onTransition func(id identity.ReceiverId, s receiver.State)

	mu      sync.Mutex
	entries []*slotEntry
	closed  bool
}

// newServer allocates one slot-pool and one queue region per receiver
// index up front, so admission never fails on memory.
func newServer(l log.Logger, prm params, onTransition func(identity.ReceiverId, receiver.State)) (*Server, error) {
	slotCfg := shmem.SlotMemoryConfig{
		NumSlots:         prm.NumSlots,
		ContentSize:      prm.ContentSize,
		ContentAlignment: prm.ContentAlignment,
		Technology:       prm.Technology,
	}

	queueCfg := shmem.QueueMemoryConfig{
		Capacity:    prm.QueueCapacity,
		ElementSize: prm.QueueElementSize,
		Alignment:   prm.ContentAlignment,
	}

	mem := shmem.NewMemoryManager(l, "")

	entries := make([]*slotEntry, prm.MaxReceivers)
	for i := range entries {
		pool, err := mem.AllocateSlotPool(slotCfg)
		if err != nil {
			releaseEntries(entries)
			return nil, err
		}

		queue, err := mem.AllocateQueue(queueCfg)
		if err != nil {
			_ = pool.Close()
			releaseEntries(entries)
			return nil, err
		}

		entries[i] = &slotEntry{slotPool: pool, srvQueue: queue}
	}

	return &Server{
		logc:         l,
		slotCfg:      slotCfg,
		queueCfg:     queueCfg,
		logic:        logic.NewServer(l, uint(prm.NumSlots), prm.ClassLimits),
		mem:          mem,
		acceptor:     sidechannel.Acceptor{Minimum: prm.MinIntegrity},
		onTransition: onTransition,
		entries:      entries,
	}, nil
}

func releaseEntries(entries []*slotEntry) {
	for _, e := range entries {
		if e == nil {
			continue
		}
		_ = e.slotPool.Close()
		_ = e.srvQueue.Close()
	}
}

// Logic exposes the accounting engine shared by this server's receivers,
// for the producer path reporting sent and released slots.
func (s *Server) Logic() logic.Server {
	return s.logic
}

// RegisterReceiver admits an incoming side channel: the peer's integrity
// level is checked first, then a free arena index is claimed and a
// Receiver in the Connecting state is issued on it.
func (s *Server) RegisterReceiver(tr sidechannel.Transport, class identity.ClassHandle, peer access.IntegrityLevel) (*receiver.Receiver, error) {
	if err := s.acceptor.Accept(peer); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ipcerr.CodeUnexpectedReceiverState.Errorf("server already closed")
	}

	for i, e := range s.entries {
		if e.rcv != nil {
			continue
		}

		e.gen++
		id := identity.ReceiverId{Index: i, Generation: e.gen}

		rcv := receiver.New(
			s.logc, id, class,
			sidechannel.NewChannel(tr, s.logc),
			s.logic, s.mem,
			s.slotCfg, e.slotPool,
			s.queueCfg, e.srvQueue,
		)

		e.rcv = rcv
		return rcv, nil
	}

	return nil, ipcerr.CodeUnexpectedReceiverState.Errorf("all %d receiver indices in use", len(s.entries))
}

// Callbacks returns the callback set a caller should pass to the issued
// receiver's Connect, wiring the configured state-transition hook.
func (s *Server) Callbacks() receiver.Callbacks {
	return receiver.Callbacks{OnStateChange: s.onTransition}
}

// ReleaseReceiver frees the arena index held by id. The receiver must be
// Disconnected and no longer in use.
func (s *Server) ReleaseReceiver(id identity.ReceiverId) error {
	s.mu.Lock()

	if id.Index < 0 || id.Index >= len(s.entries) {
		s.mu.Unlock()
		return ipcerr.CodeUnexpectedReceiverState.Errorf("unknown receiver index %d", id.Index)
	}

	e := s.entries[id.Index]
	rcv := e.rcv
	if rcv == nil || rcv.Id() != id {
		s.mu.Unlock()
		return ipcerr.CodeUnexpectedReceiverState.Errorf("stale receiver id %s", id)
	}
	s.mu.Unlock()

	if err := rcv.Release(); err != nil {
		return err
	}

	s.mu.Lock()
	e.rcv = nil
	s.mu.Unlock()
	return nil
}

// ReceiverStates snapshots the lifecycle state of every issued receiver.
func (s *Server) ReceiverStates() map[identity.ReceiverId]receiver.State {
	s.mu.Lock()
	live := make([]*receiver.Receiver, 0, len(s.entries))
	for _, e := range s.entries {
		if e.rcv != nil {
			live = append(live, e.rcv)
		}
	}
	s.mu.Unlock()

	out := make(map[identity.ReceiverId]receiver.State, len(live))
	for _, r := range live {
		out[r.Id()] = r.GetState()
	}
	return out
}

// Shutdown broadcasts the server-wide shutdown: HandleServerShutdown fans
// out to every live receiver concurrently and the first error is
// returned. Receivers already disconnected are unaffected.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	live := make([]*receiver.Receiver, 0, len(s.entries))
	for _, e := range s.entries {
		if e.rcv != nil {
			live = append(live, e.rcv)
		}
	}
	s.mu.Unlock()

	var grp errgroup.Group

	for _, r := range live {
		rcv := r
		grp.Go(func() error {
			return rcv.HandleServerShutdown()
		})
	}

	return grp.Wait()
}

// Close shuts every receiver down, releases the ones already terminal and
// unmaps the region arena. The server is unusable afterwards.
func (s *Server) Close() error {
	err := s.Shutdown()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return err
	}
	s.closed = true

	for _, e := range s.entries {
		if e.rcv != nil {
			if e.rcv.GetState() == receiver.StateDisconnected && !e.rcv.IsInUse() {
				if rerr := e.rcv.Release(); err == nil {
					err = rerr
				}
			}
			e.rcv = nil
		}

		if cerr := e.slotPool.Close(); err == nil {
			err = cerr
		}
		if cerr := e.srvQueue.Close(); err == nil {
			err = cerr
		}
	}

	return err
}
