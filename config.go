// Copyright © 2018-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmn600

import (
	"fmt"

	"github.com/platinasystems/cmn600/regio"
)

// RegionType selects the routing policy of a memory region.
type RegionType int

const (
	// RegionTypeIO routes directly to a dedicated HN-I or HN-D node.
	RegionTypeIO RegionType = iota

	// RegionTypeSysCache stripes accesses across the whole HN-F pool.
	RegionTypeSysCache

	// RegionTypeSysCacheSub carves a non-hashed slice out of the
	// system cache, backed by dedicated SN-F nodes.
	RegionTypeSysCacheSub

	// RegionTypeCCIX routes to the link aggregation node for
	// cross-chip access.
	RegionTypeCCIX
)

func (t RegionType) String() string {
	switch t {
	case RegionTypeIO:
		return "io"
	case RegionTypeSysCache:
		return "syscache"
	case RegionTypeSysCacheSub:
		return "syscache-sub"
	case RegionTypeCCIX:
		return "ccix"
	}
	return fmt.Sprintf("RegionType(%d)", int(t))
}

// MemoryRegion is one entry of the static memory map. NodeID is the
// target for the direct region types; the hashed type targets the
// HN-F pool and ignores it.
type MemoryRegion struct {
	Base   uint64
	Size   uint64
	Type   RegionType
	NodeID uint16
}

// ExternalRnsam names a request-node address-map unit that sits
// outside the directly addressable mesh. IO is a pre-resolved window
// over that unit's register file.
type ExternalRnsam struct {
	NodeID uint16
	IO     regio.IO
}

// Config is the static description of one mesh, supplied whole at
// init and immutable thereafter.
type Config struct {
	// mesh dimensions
	MeshSizeX uint
	MeshSizeY uint

	// node id of the HN-D holding the global configuration
	HndNodeID uint16

	// SnfTable maps each HN-F's logical id to its backing SN-F.
	// One entry per HN-F in the system.
	SnfTable []uint16

	// static memory map
	Mmap []MemoryRegion

	// host cross-chip endpoint count
	SaCount uint8

	// node id of the cross-chip link aggregation node
	CxgLaNodeID uint16

	// address-map units not reachable by the mesh walk
	ExternalRnsam []ExternalRnsam
}

// Valid checks the static configuration for the inconsistencies that
// no amount of hardware discovery can repair.
func (cfg *Config) Valid() error {
	if cfg.MeshSizeX == 0 || cfg.MeshSizeY == 0 {
		return fmt.Errorf("mesh size %dx%d: %w",
			cfg.MeshSizeX, cfg.MeshSizeY, ErrConfig)
	}
	if len(cfg.SnfTable) == 0 {
		return fmt.Errorf("empty snf table: %w", ErrConfig)
	}
	if len(cfg.SnfTable) > maxHnfCount {
		return fmt.Errorf("snf table has %d entries, max %d: %w",
			len(cfg.SnfTable), maxHnfCount, ErrConfig)
	}
	for i, r := range cfg.Mmap {
		if r.Size == 0 {
			return fmt.Errorf("region %d at 0x%x has zero size: %w",
				i, r.Base, ErrConfig)
		}
		switch r.Type {
		case RegionTypeIO, RegionTypeSysCache, RegionTypeSysCacheSub,
			RegionTypeCCIX:
		default:
			return fmt.Errorf("region %d at 0x%x has unknown type %d: %w",
				i, r.Base, int(r.Type), ErrConfig)
		}
	}
	if err := cfg.checkOverlap(); err != nil {
		return err
	}
	ccix := 0
	for _, r := range cfg.Mmap {
		if r.Type == RegionTypeCCIX {
			ccix++
		}
	}
	if ccix > maxHaMmapCount {
		return fmt.Errorf("%d cross-chip regions, max %d: %w",
			ccix, maxHaMmapCount, ErrConfig)
	}
	seen := make(map[uint16]bool)
	for _, e := range cfg.ExternalRnsam {
		if e.IO == nil {
			return fmt.Errorf("external rnsam %#x has no window: %w",
				e.NodeID, ErrConfig)
		}
		if seen[e.NodeID] {
			return fmt.Errorf("external rnsam %#x listed twice: %w",
				e.NodeID, ErrConfig)
		}
		seen[e.NodeID] = true
	}
	return nil
}

// Regions may not overlap, except that two hashed system-cache
// regions legitimately share the HN-F pool, and a non-hashed slice
// inside the system cache is the whole point of the sub-region type.
// Every pair is checked; sorting would let a disallowed overlap hide
// behind an allowed neighbor.
func (cfg *Config) checkOverlap() error {
	for i := 0; i < len(cfg.Mmap); i++ {
		for j := i + 1; j < len(cfg.Mmap); j++ {
			a, b := cfg.Mmap[i], cfg.Mmap[j]
			if a.Base+a.Size <= b.Base || b.Base+b.Size <= a.Base {
				continue
			}
			if overlapAllowed(a.Type, b.Type) {
				continue
			}
			return fmt.Errorf("region [0x%x,0x%x) overlaps [0x%x,0x%x): %w",
				a.Base, a.Base+a.Size, b.Base, b.Base+b.Size, ErrConfig)
		}
	}
	return nil
}

func overlapAllowed(a, b RegionType) bool {
	if a == RegionTypeSysCache {
		return b == RegionTypeSysCache || b == RegionTypeSysCacheSub
	}
	return a == RegionTypeSysCacheSub && b == RegionTypeSysCache
}
