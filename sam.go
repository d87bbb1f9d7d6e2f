// Copyright © 2018-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmn600

import (
	"fmt"
	"sort"

	"github.com/platinasystems/cmn600/regio"
)

// samUnit is one address-map unit, internal or external. Internal
// units live inside the mesh window; external units carry their own
// pre-resolved window whose offset 0 is the unit's register base.
type samUnit struct {
	io       regio.IO
	base     uint64
	external bool
	id       uint16
}

func (c *Ctx) samUnits() []samUnit {
	units := make([]samUnit, 0, len(c.internalRnsam)+len(c.externalRnsam))
	for _, off := range c.internalRnsam {
		units = append(units, samUnit{io: c.io, base: off})
	}
	for _, e := range c.externalRnsam {
		units = append(units, samUnit{io: e.IO, external: true, id: e.NodeID})
	}
	return units
}

// samEntry is one routing entry in its programmed register form.
type samEntry struct {
	base uint64
	size uint64
	cfg  uint64
}

// samEntries turns the static memory map into the ordered entry list
// every unit receives. Pure function of configuration and discovered
// topology, so reprogramming is bit-identical.
func (c *Ctx) samEntries() ([]samEntry, error) {
	regions := make([]MemoryRegion, len(c.cfg.Mmap))
	copy(regions, c.cfg.Mmap)
	sort.Slice(regions, func(i, j int) bool {
		return regions[i].Base < regions[j].Base
	})
	if len(regions) > maxRegionSlots {
		return nil, fmt.Errorf("%d regions, %d slots: %w",
			len(regions), maxRegionSlots, ErrCapacity)
	}
	entries := make([]samEntry, 0, len(regions))
	for _, r := range regions {
		e := samEntry{base: r.Base, size: r.Size}
		switch r.Type {
		case RegionTypeIO, RegionTypeSysCacheSub:
			if !c.nodeClassified(r.NodeID) {
				return nil, fmt.Errorf(
					"region at 0x%x targets unclassified node %#x: %w",
					r.Base, r.NodeID, ErrConfig)
			}
			e.cfg = rnsamRegionValid |
				rnsamTargetDirect<<rnsamRegionTypeShift |
				uint64(r.NodeID)<<rnsamRegionTargetShift
		case RegionTypeSysCache:
			// no single target; the unit hashes over the whole
			// HN-F pool, identically on every unit
			e.cfg = rnsamRegionValid | rnsamRegionHashed |
				rnsamTargetHnf<<rnsamRegionTypeShift |
				uint64(len(c.hnf))<<rnsamRegionHnfCountShift
		case RegionTypeCCIX:
			if c.cxla == nil || c.cxla.ID != c.cfg.CxgLaNodeID {
				return nil, fmt.Errorf(
					"region at 0x%x needs link aggregation node %#x: %w",
					r.Base, c.cfg.CxgLaNodeID, ErrConfig)
			}
			e.cfg = rnsamRegionValid |
				rnsamTargetCxla<<rnsamRegionTypeShift |
				uint64(c.cfg.CxgLaNodeID)<<rnsamRegionTargetShift
		default:
			return nil, fmt.Errorf("region at 0x%x has unknown type %d: %w",
				r.Base, int(r.Type), ErrConfig)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (c *Ctx) nodeClassified(id uint16) bool {
	for i := range c.nodes {
		if c.nodes[i].ID == id {
			return true
		}
	}
	for _, e := range c.externalRnsam {
		if e.NodeID == id {
			return true
		}
	}
	return false
}

// programAllRnsam writes the identical ordered entry set into every
// address-map unit. The entry list is computed once up front; a unit
// is either programmed whole or not touched at all.
func (c *Ctx) programAllRnsam() error {
	entries, err := c.samEntries()
	if err != nil {
		return err
	}
	for _, u := range c.samUnits() {
		if err := programRnsam(u, entries); err != nil {
			if u.external {
				return fmt.Errorf("external rnsam %#x: %w", u.id, err)
			}
			return fmt.Errorf("rnsam at 0x%x: %w", u.base, err)
		}
	}
	return nil
}

func programRnsam(u samUnit, entries []samEntry) error {
	for i := 0; i < maxRegionSlots; i++ {
		off := u.base + rnsamRegionOffset(i)
		var e samEntry
		if i < len(entries) {
			e = entries[i]
		}
		if err := u.io.W64(off, e.base); err != nil {
			return err
		}
		if err := u.io.W64(off+8, e.size); err != nil {
			return err
		}
		if err := u.io.W64(off+16, e.cfg); err != nil {
			return err
		}
	}
	return nil
}

// programHnfSam points each HN-F at its backing SN-F, keyed by the
// HN-F's logical id.
func (c *Ctx) programHnfSam() error {
	for i, h := range c.hnf {
		snf := c.cfg.SnfTable[h.LogicalID]
		if err := c.io.W64(c.hnfOffset[i]+hnfRegSamControl,
			uint64(snf)); err != nil {
			return err
		}
	}
	return nil
}

// hashedHnfIndex selects a home node for an address in a hashed
// region. Pure function of the address and the pool size only, so
// every address-map unit resolves the same address to the same HN-F.
func hashedHnfIndex(addr uint64, hnfCount int) int {
	// fold the line address down; cheap mix, stable across calls
	a := addr >> 6
	a ^= a >> 33
	a *= 0xff51afd7ed558ccd
	a ^= a >> 33
	return int(a % uint64(hnfCount))
}

// HashedTarget reports which HN-F services addr in a hashed
// system-cache region. Diagnostics aid; the hardware applies the
// same selection.
func (c *Ctx) HashedTarget(addr uint64) (uint16, error) {
	if !c.initialized {
		return 0, ErrNotInitialized
	}
	if len(c.hnf) == 0 {
		return 0, fmt.Errorf("no hn-f pool: %w", ErrConfig)
	}
	return c.hnf[hashedHnfIndex(addr, len(c.hnf))].ID, nil
}
