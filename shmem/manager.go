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

package shmem

import (
	"os"
	"path/filepath"
	"sync"

	libuid "github.com/hashicorp/go-uuid"
	libmap "github.com/xujiajun/mmap-go"

	"github.com/sabouaram/memcon/ipcerr"
	"github.com/sabouaram/memcon/log"
)

// ExchangeHandle is the opaque credential handed to the peer process so it
// can map the same region. Token is a random identifier; Path locates the
// backing file on the local host. The receiver protocol never interprets
// either field.
type ExchangeHandle struct {
	Token string `cbor:"1,keyasint" json:"token"`
	Path  string `cbor:"2,keyasint" json:"path"`
}

// IsZero reports whether the handle carries no credential.
func (h ExchangeHandle) IsZero() bool {
	return h.Token == "" && h.Path == ""
}

// Region is one mapped shared-memory region plus the handle granting the
// peer access to it. A Region stays mapped until Close; the byte slice
// returned by Bytes is invalid afterwards.
type Region struct {
	mu     sync.Mutex
	handle ExchangeHandle
	file   *os.File
	data   libmap.MMap
	size   uint64
}

// Handle returns the exchange handle for this region.
func (r *Region) Handle() ExchangeHandle {
	return r.handle
}

// Size returns the mapped byte length.
func (r *Region) Size() uint64 {
	return r.size
}

// Bytes returns the mapped memory. The slice aliases the mapping; callers
// must not retain it past Close.
func (r *Region) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data
}

// Close unmaps the region and removes its backing file. Idempotent.
func (r *Region) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.data == nil {
		return nil
	}

	err := r.data.Unmap()
	r.data = nil

	if r.file != nil {
		name := r.file.Name()
		if e := r.file.Close(); err == nil {
			err = e
		}
		if e := os.Remove(name); err == nil && !os.IsNotExist(e) {
			err = e
		}
		r.file = nil
	}

	return err
}

// MemoryManager allocates the slot-pool and queue regions of a server and
// maps regions offered by a peer through an exchange handle.
type MemoryManager struct {
	log log.Logger
	dir string
}

// NewMemoryManager builds a manager whose backing files live under dir
// (the OS temp dir when empty). A nil-safe logger is substituted when l is
// nil.
func NewMemoryManager(l log.Logger, dir string) *MemoryManager {
	if l == nil {
		l = log.Discard()
	}
	if dir == "" {
		dir = os.TempDir()
	}
	return &MemoryManager{log: l, dir: dir}
}

// AllocateSlotPool creates and maps the slot pool region for one receiver.
// Allocation failure surfaces as CodeMemoryError.
func (m *MemoryManager) AllocateSlotPool(cfg SlotMemoryConfig) (*Region, error) {
	if err := cfg.Validate(); err != nil {
		return nil, ipcerr.CodeMemoryError.Error(err)
	}
	return m.allocate(cfg.TotalSize(), "slotpool")
}

// AllocateQueue creates and maps one notification-queue backing ring.
// Allocation failure surfaces as CodeMemoryError.
func (m *MemoryManager) AllocateQueue(cfg QueueMemoryConfig) (*Region, error) {
	if err := cfg.Validate(); err != nil {
		return nil, ipcerr.CodeMemoryError.Error(err)
	}
	return m.allocate(cfg.TotalSize(), "queue")
}

// MapExchange maps a region offered by the peer through its exchange
// handle. The mapping is read-write: the client queue is written by the
// receiver side and read by the logic accounting.
func (m *MemoryManager) MapExchange(handle ExchangeHandle) (*Region, error) {
	if handle.IsZero() {
		return nil, ipcerr.CodeProtocolError.Errorf("empty exchange handle")
	}

	f, err := os.OpenFile(handle.Path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, ipcerr.CodeMemoryError.Error(err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ipcerr.CodeMemoryError.Error(err)
	}

	data, err := libmap.Map(f, libmap.RDWR, 0)
	if err != nil {
		_ = f.Close()
		return nil, ipcerr.CodeMemoryError.Error(err)
	}

	m.log.WithField("token", handle.Token).Debug("mapped peer region")

	// A peer-offered region keeps its backing file: the offering side owns
	// removal. Drop the file reference so Close only unmaps.
	reg := &Region{
		handle: handle,
		data:   data,
		size:   uint64(fi.Size()),
	}
	if err = f.Close(); err != nil {
		_ = data.Unmap()
		return nil, ipcerr.CodeMemoryError.Error(err)
	}

	return reg, nil
}

func (m *MemoryManager) allocate(size uint64, kind string) (*Region, error) {
	token, err := libuid.GenerateUUID()
	if err != nil {
		return nil, ipcerr.CodeMemoryError.Error(err)
	}

	path := filepath.Join(m.dir, "memcon-"+kind+"-"+token)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, ipcerr.CodeMemoryError.Error(err)
	}

	if err = f.Truncate(int64(size)); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, ipcerr.CodeMemoryError.Error(err)
	}

	data, err := libmap.Map(f, libmap.RDWR, 0)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, ipcerr.CodeMemoryError.Error(err)
	}

	m.log.WithFields(map[string]interface{}{
		"kind":  kind,
		"size":  size,
		"token": token,
	}).Debug("allocated shared region")

	return &Region{
		handle: ExchangeHandle{Token: token, Path: path},
		file:   f,
		data:   data,
		size:   size,
	}, nil
}
