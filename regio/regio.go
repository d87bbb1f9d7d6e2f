// Copyright © 2018-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package regio provides bounds-checked access to memory-mapped
// device registers. Loads and stores use the host byte order, which
// matches the device view on the arm64 targets this runs on.
package regio

import (
	"fmt"
	"unsafe"
)

// IO reads and writes registers at byte offsets from the start of a
// device window. Offsets must be naturally aligned.
type IO interface {
	R32(off uint64) (uint32, error)
	W32(off uint64, v uint32) error
	R64(off uint64) (uint64, error)
	W64(off uint64, v uint64) error
}

// Mem is a device window over memory already mapped by the caller,
// e.g. an mmap of /dev/mem. Accesses outside the window fail instead
// of faulting.
type Mem struct {
	b []byte
}

func NewMem(b []byte) (*Mem, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("regio: empty window")
	}
	return &Mem{b: b}, nil
}

func (m *Mem) check(off, n uint64) error {
	if off%n != 0 {
		return fmt.Errorf("regio: offset 0x%x not %d-byte aligned", off, n)
	}
	if off+n > uint64(len(m.b)) {
		return fmt.Errorf("regio: offset 0x%x beyond window size 0x%x",
			off, len(m.b))
	}
	return nil
}

func (m *Mem) R32(off uint64) (uint32, error) {
	if err := m.check(off, 4); err != nil {
		return 0, err
	}
	return *(*uint32)(unsafe.Pointer(&m.b[off])), nil
}

func (m *Mem) W32(off uint64, v uint32) error {
	if err := m.check(off, 4); err != nil {
		return err
	}
	*(*uint32)(unsafe.Pointer(&m.b[off])) = v
	return nil
}

func (m *Mem) R64(off uint64) (uint64, error) {
	if err := m.check(off, 8); err != nil {
		return 0, err
	}
	return *(*uint64)(unsafe.Pointer(&m.b[off])), nil
}

func (m *Mem) W64(off uint64, v uint64) error {
	if err := m.check(off, 8); err != nil {
		return err
	}
	*(*uint64)(unsafe.Pointer(&m.b[off])) = v
	return nil
}

// Buf is a byte-backed window with the same access rules as Mem. It
// backs synthetic register images in tests and tooling.
type Buf struct {
	Mem
}

func NewBuf(size uint64) *Buf {
	b := new(Buf)
	b.Mem.b = make([]byte, size)
	return b
}

// Bytes returns the backing image. Useful for whole-image comparison.
func (b *Buf) Bytes() []byte { return b.Mem.b }

// window shifts all accesses by base and clips them to size.
type window struct {
	io         IO
	base, size uint64
}

// Window returns a sub-window of io covering [base, base+size). A
// pre-resolved handle to one node of a larger device image.
func Window(io IO, base, size uint64) IO {
	return &window{io: io, base: base, size: size}
}

func (w *window) check(off, n uint64) error {
	if off+n > w.size {
		return fmt.Errorf("regio: offset 0x%x beyond window size 0x%x",
			off, w.size)
	}
	return nil
}

func (w *window) R32(off uint64) (uint32, error) {
	if err := w.check(off, 4); err != nil {
		return 0, err
	}
	return w.io.R32(w.base + off)
}

func (w *window) W32(off uint64, v uint32) error {
	if err := w.check(off, 4); err != nil {
		return err
	}
	return w.io.W32(w.base+off, v)
}

func (w *window) R64(off uint64) (uint64, error) {
	if err := w.check(off, 8); err != nil {
		return 0, err
	}
	return w.io.R64(w.base + off)
}

func (w *window) W64(off uint64, v uint64) error {
	if err := w.check(off, 8); err != nil {
		return err
	}
	return w.io.W64(w.base+off, v)
}
