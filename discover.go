// Copyright © 2018-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmn600

import (
	"fmt"
	"time"

	"github.com/platinasystems/log"
)

const readyBudget = 100 * time.Millisecond

// discover walks the mesh grid row major, reading each crosspoint's
// child descriptors, and records every attached device node. The
// walk visits each coordinate exactly once, so discovery order is
// reproducible for a given hardware state.
func (c *Ctx) discover() error {
	if err := c.pollBit(c.io, cfgBase+nodeRegStatus, nodeStatusReady,
		readyBudget); err != nil {
		return fmt.Errorf("config node not ready: %w", err)
	}
	info, err := c.io.R64(cfgBase + nodeRegInfo)
	if err != nil {
		return err
	}
	if got := nodeInfoType(info); got != nodeTypeCfg {
		return fmt.Errorf("config node reports type 0x%x: %w", got, ErrConfig)
	}

	rootFound := false
	for y := uint(0); y < c.cfg.MeshSizeY; y++ {
		for x := uint(0); x < c.cfg.MeshSizeX; x++ {
			found, err := c.discoverXp(x, y)
			if err != nil {
				return err
			}
			rootFound = rootFound || found
		}
	}
	if !rootFound {
		return fmt.Errorf("root hn-d %#x not found on mesh: %w",
			c.cfg.HndNodeID, ErrConfig)
	}
	return nil
}

// discoverXp reads one crosspoint and appends its children. Reports
// whether the configured root HN-D was among them.
func (c *Ctx) discoverXp(x, y uint) (rootFound bool, err error) {
	xp := xpOffset(c.cfg, x, y)
	info, err := c.io.R64(xp + nodeRegInfo)
	if err != nil {
		return false, err
	}
	if got := nodeInfoType(info); got != nodeTypeXP {
		return false, fmt.Errorf("crosspoint (%d,%d) reports type 0x%x: %w",
			x, y, got, ErrConfig)
	}
	ci, err := c.io.R64(xp + nodeRegChildInfo)
	if err != nil {
		return false, err
	}
	count := ci & 0xffff
	for i := uint64(0); i < count; i++ {
		ptr, err := c.io.R64(xp + nodeRegChildBase + 8*i)
		if err != nil {
			return false, err
		}
		off := ptr & childPtrOffsetMask
		ni, err := c.io.R64(off + nodeRegInfo)
		if err != nil {
			return false, err
		}
		n := Node{
			X:         x,
			Y:         y,
			Type:      nodeInfoType(ni),
			ID:        nodeInfoID(ni),
			LogicalID: nodeInfoLogicalID(ni),
			Offset:    off,
		}
		if !knownNodeType(n.Type) {
			// newer mesh revisions attach node types this driver
			// has no business with
			log.Print("cmn600: skipping node type ", n.Type,
				" at (", x, ",", y, ")")
			continue
		}
		if n.Type == nodeTypeHND && n.ID == c.cfg.HndNodeID {
			c.root = n
			rootFound = true
		}
		c.nodes = append(c.nodes, n)
	}
	return rootFound, nil
}

func knownNodeType(t uint16) bool {
	switch t {
	case nodeTypeDVM, nodeTypeDTC, nodeTypeHNI, nodeTypeHNF,
		nodeTypeSBSX, nodeTypeHND, nodeTypeRNI, nodeTypeRND,
		nodeTypeRNSAM, nodeTypeCXRA, nodeTypeCXHA, nodeTypeCXLA:
		return true
	}
	return false
}
