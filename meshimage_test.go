// Copyright © 2018-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmn600

import (
	"testing"
	"time"

	"github.com/platinasystems/cmn600/regio"
)

// noDelay keeps polling loops from sleeping under test.
type noDelay struct{}

func (noDelay) Sleep(time.Duration) {}

// meshImage builds a synthetic register image the discoverer can
// walk: a ready config node, one crosspoint per grid coordinate and
// device node register files hung off the crosspoints.
type meshImage struct {
	t          *testing.T
	buf        *regio.Buf
	sizeX      uint
	childCount map[uint]uint64
}

func newMeshImage(t *testing.T, sizeX, sizeY uint) *meshImage {
	t.Helper()
	m := &meshImage{
		t:          t,
		buf:        regio.NewBuf(xpBase + uint64(sizeX*sizeY)*xpStride),
		sizeX:      sizeX,
		childCount: make(map[uint]uint64),
	}
	m.w64(cfgBase+nodeRegInfo, encodeNodeInfo(nodeTypeCfg, 0, 0))
	m.w64(cfgBase+nodeRegStatus, nodeStatusReady)
	for y := uint(0); y < sizeY; y++ {
		for x := uint(0); x < sizeX; x++ {
			xp := m.xp(x, y)
			m.w64(xp+nodeRegInfo, encodeNodeInfo(nodeTypeXP, 0, 0))
		}
	}
	return m
}

func (m *meshImage) xp(x, y uint) uint64 {
	return xpBase + uint64(y*m.sizeX+x)*xpStride
}

func (m *meshImage) w64(off, v uint64) {
	m.t.Helper()
	if err := m.buf.W64(off, v); err != nil {
		m.t.Fatal(err)
	}
}

// addNode attaches a device node to the crosspoint at (x, y) and
// returns the node's register file offset.
func (m *meshImage) addNode(x, y uint, typ, id, ldid uint16) uint64 {
	m.t.Helper()
	xp := m.xp(x, y)
	idx := y*m.sizeX + x
	i := m.childCount[idx]
	off := xp + 0x1000*(i+1)
	m.w64(xp+nodeRegChildBase+8*i, off)
	m.childCount[idx] = i + 1
	m.w64(xp+nodeRegChildInfo, i+1)
	m.w64(off+nodeRegInfo, encodeNodeInfo(typ, id, ldid))
	return off
}

// stdMesh is the 2x2 system most tests run against: two HN-Fs backed
// by two SBSX bridges, two internal RN-SAMs, one RN-D, one RN-I, an
// HN-I for the I/O region and a full CCIX gateway.
type stdMesh struct {
	img   *meshImage
	cfg   *Config
	ext   []*regio.Buf
	cxgRa uint64
	cxgHa uint64
	cxla  uint64
	rnsam []uint64
}

func newStdMesh(t *testing.T, extCount int) *stdMesh {
	t.Helper()
	m := &stdMesh{img: newMeshImage(t, 2, 2)}
	m.img.addNode(0, 0, nodeTypeHND, 68, 0)
	m.rnsam = append(m.rnsam, m.img.addNode(0, 0, nodeTypeRNSAM, 1, 0))
	m.img.addNode(0, 0, nodeTypeHNF, 32, 0)
	m.img.addNode(1, 0, nodeTypeHNF, 33, 1)
	m.rnsam = append(m.rnsam, m.img.addNode(1, 0, nodeTypeRNSAM, 2, 1))
	m.img.addNode(1, 0, nodeTypeRND, 40, 0)
	m.img.addNode(0, 1, nodeTypeHNI, 7, 0)
	m.img.addNode(0, 1, nodeTypeRNI, 41, 0)
	m.img.addNode(0, 1, nodeTypeSBSX, 12, 0)
	m.img.addNode(0, 1, nodeTypeSBSX, 13, 1)
	m.cxgRa = m.img.addNode(1, 1, nodeTypeCXRA, 100, 0)
	m.cxgHa = m.img.addNode(1, 1, nodeTypeCXHA, 101, 0)
	m.cxla = m.img.addNode(1, 1, nodeTypeCXLA, 196, 0)

	m.cfg = &Config{
		MeshSizeX:   2,
		MeshSizeY:   2,
		HndNodeID:   68,
		SnfTable:    []uint16{12, 13},
		SaCount:     2,
		CxgLaNodeID: 196,
		Mmap: []MemoryRegion{
			{Base: 0x80000000, Size: 0x10000000, Type: RegionTypeSysCache},
			{Base: 0x1000, Size: 0x1000, Type: RegionTypeIO, NodeID: 7},
			{Base: 0x80010000, Size: 0x10000, Type: RegionTypeSysCacheSub,
				NodeID: 12},
			{Base: 0x400000000, Size: 0x100000000, Type: RegionTypeCCIX},
		},
	}
	for i := 0; i < extCount; i++ {
		b := regio.NewBuf(rnsamSpan)
		m.ext = append(m.ext, b)
		m.cfg.ExternalRnsam = append(m.cfg.ExternalRnsam, ExternalRnsam{
			NodeID: uint16(200 + i),
			IO:     b,
		})
	}
	return m
}

func (m *stdMesh) ctx(t *testing.T) *Ctx {
	t.Helper()
	c, err := New(m.img.buf, m.cfg, WithDelayer(noDelay{}))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func (m *stdMesh) setup(t *testing.T) *Ctx {
	t.Helper()
	c := m.ctx(t)
	if err := c.Setup(); err != nil {
		t.Fatal(err)
	}
	return c
}

// grantLink flips the hardware-owned handshake status bits so the
// link transitions complete on first poll.
func (m *stdMesh) grantLink(t *testing.T, link uint8, bits uint64) {
	t.Helper()
	for _, base := range []uint64{
		m.cxgRa + cxgLinkStatus(cxgRaRegLinkCtlBase, link),
		m.cxgHa + cxgLinkStatus(cxgHaRegLinkCtlBase, link),
	} {
		v, err := m.img.buf.R64(base)
		if err != nil {
			t.Fatal(err)
		}
		if err := m.img.buf.W64(base, v|bits); err != nil {
			t.Fatal(err)
		}
	}
}
