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

// Package shmem allocates and maps the two shared-memory regions backing a
// zero-copy receiver: the slot pool written by producers and the server
// queue carrying per-slot bookkeeping. Mapping rights are transferred to
// the peer process through an opaque exchange handle.
package shmem

import (
	"fmt"

	libval "github.com/go-playground/validator/v10"
)

// MemoryTechnology selects the backing store for a mapped region.
type MemoryTechnology uint8

const (
	// TechSharedRAM is a file-backed anonymous region in volatile memory.
	TechSharedRAM MemoryTechnology = iota

	// TechPersistent is accepted as a configuration value, but the memory
	// manager does not act on it: the backing file is created in the
	// manager's directory and removed when the region is closed, exactly
	// as for TechSharedRAM. Contents do not survive a process restart.
	TechPersistent
)

// SlotMemoryConfig describes the slot pool of one receiver: a fixed number
// of fixed-size, fixed-aligned slots.
type SlotMemoryConfig struct {
	NumSlots         uint64           `mapstructure:"num_slots" json:"num_slots" yaml:"num_slots" cbor:"1,keyasint" validate:"gte=1"`
	ContentSize      uint64           `mapstructure:"content_size" json:"content_size" yaml:"content_size" cbor:"2,keyasint" validate:"gte=1"`
	ContentAlignment uint64           `mapstructure:"content_alignment" json:"content_alignment" yaml:"content_alignment" cbor:"3,keyasint" validate:"gte=1"`
	Technology       MemoryTechnology `mapstructure:"memory_technology" json:"memory_technology" yaml:"memory_technology" cbor:"4,keyasint"`
}

// Validate checks counts and that ContentAlignment is a power of two.
func (c SlotMemoryConfig) Validate() error {
	val := libval.New()

	if err := val.Struct(c); err != nil {
		return fmt.Errorf("shmem: invalid slot memory config: %w", err)
	}

	if !isPowerOfTwo(c.ContentAlignment) {
		return fmt.Errorf("shmem: content alignment %d is not a power of two", c.ContentAlignment)
	}

	return nil
}

// Stride is ContentSize rounded up to the next multiple of
// ContentAlignment; slots are laid out every Stride bytes.
func (c SlotMemoryConfig) Stride() uint64 {
	a := c.ContentAlignment
	return (c.ContentSize + a - 1) / a * a
}

// TotalSize is the byte size of the whole slot pool region.
func (c SlotMemoryConfig) TotalSize() uint64 {
	return c.NumSlots * c.Stride()
}

// QueueMemoryConfig describes the backing ring of one per-direction
// notification queue.
type QueueMemoryConfig struct {
	Capacity    uint64 `mapstructure:"capacity" json:"capacity" yaml:"capacity" cbor:"1,keyasint" validate:"gte=1"`
	ElementSize uint64 `mapstructure:"element_size" json:"element_size" yaml:"element_size" cbor:"2,keyasint" validate:"gte=1"`
	Alignment   uint64 `mapstructure:"alignment" json:"alignment" yaml:"alignment" cbor:"3,keyasint" validate:"gte=1"`
}

// Validate checks counts and that Alignment is a power of two.
func (c QueueMemoryConfig) Validate() error {
	val := libval.New()

	if err := val.Struct(c); err != nil {
		return fmt.Errorf("shmem: invalid queue memory config: %w", err)
	}

	if !isPowerOfTwo(c.Alignment) {
		return fmt.Errorf("shmem: queue alignment %d is not a power of two", c.Alignment)
	}

	return nil
}

// TotalSize is the byte size of the ring backing region.
func (c QueueMemoryConfig) TotalSize() uint64 {
	a := c.Alignment
	stride := (c.ElementSize + a - 1) / a * a
	return c.Capacity * stride
}

func isPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}
