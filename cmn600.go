// Copyright © 2018-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package cmn600 brings up a CMN-600 coherent mesh interconnect:
// mesh topology discovery, request-node address-map programming and
// CCIX cross-chip link configuration. It runs once, single threaded,
// early in boot, against a memory-mapped configuration window
// supplied by the caller.
package cmn600

import (
	"fmt"
	"sync"
	"time"

	"github.com/platinasystems/log"

	"github.com/platinasystems/cmn600/regio"
)

// fixed pool bounds; exceeding one is a build/hardware mismatch
const (
	maxHnfCount    = 32
	maxRndCount    = 8
	maxRniCount    = 8
	maxHaMmapCount = 4
	maxLinkCount   = 4
)

// Delayer is the time-delay collaborator used by polling loops.
type Delayer interface {
	Sleep(time.Duration)
}

type realDelay struct{}

func (realDelay) Sleep(d time.Duration) { time.Sleep(d) }

// Node is one device discovered on the mesh. Never mutated after
// discovery.
type Node struct {
	X, Y      uint
	Type      uint16
	ID        uint16
	LogicalID uint16
	Offset    uint64 // register file offset within the window
}

// ccixLink tracks one cross-chip link through its bring-up sequence.
type ccixLink struct {
	state  linkState
	haLdid uint8
}

// Ctx owns every piece of runtime state of one mesh: the discovered
// node pools, the cross-chip link states and the negotiated host
// configuration. Created by New, populated by Setup, alive until
// shutdown.
type Ctx struct {
	cfg   *Config
	io    regio.IO
	delay Delayer

	root  Node // the configured HN-D
	nodes []Node

	hnf           []Node
	hnfOffset     []uint64 // register offsets in discovery order
	internalRnsam []uint64
	externalRnsam []ExternalRnsam

	rndLdid []uint16
	rniLdid []uint16

	cxgRa *Node
	cxgHa *Node
	cxla  *Node

	// mu guards the link table and identifier counters. Per-link
	// transitions themselves are serialized by the caller.
	mu             sync.Mutex
	raidValue      uint8
	nextHaLdid     uint8
	hostConfigured bool
	links          map[uint8]*ccixLink

	hostInfo CcixHostConfig

	initialized bool
}

// Option adjusts a Ctx at construction.
type Option func(*Ctx)

// WithDelayer substitutes the time-delay collaborator, e.g. to run
// polling loops without real sleeps under test.
func WithDelayer(d Delayer) Option {
	return func(c *Ctx) { c.delay = d }
}

// New builds a context over a mesh configuration window. The window
// covers the whole peripheral register space; cfg is retained and
// must not change afterwards.
func New(io regio.IO, cfg *Config, opts ...Option) (*Ctx, error) {
	if io == nil {
		return nil, fmt.Errorf("nil register window: %w", ErrConfig)
	}
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	c := &Ctx{
		cfg:   cfg,
		io:    io,
		delay: realDelay{},
		links: make(map[uint8]*ccixLink),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Setup discovers the mesh, classifies every node and programs the
// address maps. Run-to-completion; a failure leaves the device
// unusable and the caller decides whether that aborts boot.
func (c *Ctx) Setup() error {
	if c.initialized {
		return nil
	}
	if err := c.discover(); err != nil {
		return err
	}
	if err := c.classify(); err != nil {
		return err
	}
	if err := c.programHnfSam(); err != nil {
		return err
	}
	if err := c.programAllRnsam(); err != nil {
		return err
	}
	if err := c.buildHostInfo(); err != nil {
		return err
	}
	c.initialized = true
	log.Print("cmn600: ", len(c.hnf), " hnf, ",
		len(c.internalRnsam), " internal rnsam, ",
		len(c.externalRnsam), " external rnsam")
	return nil
}

// HnfCount reports the number of system-cache home nodes found.
func (c *Ctx) HnfCount() int { return len(c.hnf) }

// RnsamCount reports the number of address-map units covered,
// internal and external combined.
func (c *Ctx) RnsamCount() int {
	return len(c.internalRnsam) + len(c.externalRnsam)
}

// RndCount reports the number of RN-D auxiliary request nodes.
func (c *Ctx) RndCount() int { return len(c.rndLdid) }

// RniCount reports the number of RN-I auxiliary request nodes.
func (c *Ctx) RniCount() int { return len(c.rniLdid) }

// Nodes returns the discovered nodes in discovery order.
func (c *Ctx) Nodes() []Node {
	out := make([]Node, len(c.nodes))
	copy(out, c.nodes)
	return out
}
