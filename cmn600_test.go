// Copyright © 2018-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmn600

import (
	"errors"
	"testing"
)

func TestSetupPools(t *testing.T) {
	m := newStdMesh(t, 2)
	c := m.setup(t)

	if got, want := c.HnfCount(), 2; got != want {
		t.Errorf("hnf count: got %d want %d", got, want)
	}
	if got, want := c.RnsamCount(), 4; got != want {
		t.Errorf("rnsam count: got %d want %d", got, want)
	}
	if got, want := c.RndCount(), 1; got != want {
		t.Errorf("rnd count: got %d want %d", got, want)
	}
	if got, want := c.RniCount(), 1; got != want {
		t.Errorf("rni count: got %d want %d", got, want)
	}
}

// Every discovered node of a pooled type lands in exactly one pool.
func TestClassifyPartition(t *testing.T) {
	m := newStdMesh(t, 0)
	c := m.setup(t)

	pooled := 0
	for _, n := range c.Nodes() {
		switch n.Type {
		case nodeTypeHNF, nodeTypeRNSAM, nodeTypeRND, nodeTypeRNI,
			nodeTypeCXRA, nodeTypeCXHA, nodeTypeCXLA:
			pooled++
		}
	}
	inPools := len(c.hnf) + len(c.internalRnsam) +
		len(c.rndLdid) + len(c.rniLdid)
	if c.cxgRa != nil {
		inPools++
	}
	if c.cxgHa != nil {
		inPools++
	}
	if c.cxla != nil {
		inPools++
	}
	if got, want := inPools, pooled; got != want {
		t.Errorf("pooled nodes: got %d want %d", got, want)
	}
}

func TestSnfTableMismatch(t *testing.T) {
	m := newStdMesh(t, 0)
	m.cfg.SnfTable = []uint16{12} // two HN-Fs on the mesh
	c := m.ctx(t)
	err := c.Setup()
	if !errors.Is(err, ErrConfig) {
		t.Errorf("snf table mismatch: got %v want ErrConfig", err)
	}
}

func TestRootMissing(t *testing.T) {
	m := newStdMesh(t, 0)
	m.cfg.HndNodeID = 99 // nothing on the mesh reports this id
	c := m.ctx(t)
	err := c.Setup()
	if !errors.Is(err, ErrConfig) {
		t.Errorf("missing root: got %v want ErrConfig", err)
	}
}

func TestUnknownNodeTypeSkipped(t *testing.T) {
	m := newStdMesh(t, 0)
	m.img.addNode(1, 1, 0x1f3, 77, 0)
	c := m.setup(t)
	for _, n := range c.Nodes() {
		if n.ID == 77 {
			t.Errorf("unknown node type not skipped: %+v", n)
		}
	}
}

func TestCrosspointWrongType(t *testing.T) {
	m := newStdMesh(t, 0)
	m.img.w64(m.img.xp(1, 0)+nodeRegInfo,
		encodeNodeInfo(nodeTypeHNF, 5, 0))
	c := m.ctx(t)
	err := c.Setup()
	if !errors.Is(err, ErrConfig) {
		t.Errorf("bad crosspoint: got %v want ErrConfig", err)
	}
}

func TestConfigNodeNotReady(t *testing.T) {
	m := newStdMesh(t, 0)
	m.img.w64(cfgBase+nodeRegStatus, 0)
	c := m.ctx(t)
	err := c.Setup()
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("config node never ready: got %v want ErrTimeout", err)
	}
}

func TestDiscoveryOrderStable(t *testing.T) {
	m := newStdMesh(t, 0)
	a := m.setup(t).Nodes()
	b := m.setup(t).Nodes()
	if len(a) != len(b) {
		t.Fatalf("node counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("node %d differs between walks: %+v vs %+v",
				i, a[i], b[i])
		}
	}
}

func TestHnfCapacity(t *testing.T) {
	img := newMeshImage(t, 6, 6)
	img.addNode(0, 0, nodeTypeHND, 68, 0)
	var snf []uint16
	id := uint16(100)
	for i := 0; i < maxHnfCount+1; i++ {
		img.addNode(uint(i%6), uint(i/6), nodeTypeHNF, id, uint16(i))
		id++
	}
	for i := 0; i <= maxHnfCount; i++ {
		snf = append(snf, uint16(200+i))
	}
	cfg := &Config{
		MeshSizeX: 6, MeshSizeY: 6, HndNodeID: 68,
		SnfTable: snf[:maxHnfCount],
	}
	c, err := New(img.buf, cfg, WithDelayer(noDelay{}))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Setup(); !errors.Is(err, ErrCapacity) {
		t.Errorf("hnf overflow: got %v want ErrCapacity", err)
	}
}

// The 6x6 example: twelve HN-Fs found, twelve SN-F table entries.
func TestLargeMeshCounts(t *testing.T) {
	img := newMeshImage(t, 6, 6)
	img.addNode(2, 3, nodeTypeHND, 68, 0)
	snf := make([]uint16, 0, 12)
	for i := 0; i < 12; i++ {
		x, y := uint(i%6), uint(i/2%3+3)
		img.addNode(x, y, nodeTypeHNF, uint16(32+i), uint16(i))
		snf = append(snf, uint16(300+i))
	}
	img.addNode(0, 0, nodeTypeRNSAM, 1, 0)
	cfg := &Config{
		MeshSizeX: 6, MeshSizeY: 6, HndNodeID: 68, SnfTable: snf,
	}
	c, err := New(img.buf, cfg, WithDelayer(noDelay{}))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Setup(); err != nil {
		t.Fatal(err)
	}
	if got, want := c.HnfCount(), 12; got != want {
		t.Errorf("hnf count: got %d want %d", got, want)
	}

	cfg2 := &Config{
		MeshSizeX: 6, MeshSizeY: 6, HndNodeID: 68, SnfTable: snf[:10],
	}
	c2, err := New(img.buf, cfg2, WithDelayer(noDelay{}))
	if err != nil {
		t.Fatal(err)
	}
	if err := c2.Setup(); !errors.Is(err, ErrConfig) {
		t.Errorf("10-entry table vs 12 hn-f: got %v want ErrConfig", err)
	}
}
