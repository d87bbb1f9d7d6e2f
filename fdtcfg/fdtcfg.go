// Copyright © 2018-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package fdtcfg reads a mesh configuration out of a flattened
// device tree. The mesh node is matched by compatible string:
//
//	cmn@50000000 {
//		compatible = "arm,cmn-600";
//		mesh-size = <6 6>;
//		hnd-node-id = <68>;
//		snf-table = <12 13 14 15>;
//		sa-count = <2>;
//		cxgla-node-id = <196>;
//		memory-regions {
//			region@0 {
//				reg = <0x0 0x1000 0x0 0x1000>;
//				region-type = "io";
//				target = <7>;
//			};
//		};
//	};
//
// External address-map windows are runtime handles and cannot come
// from the tree; the caller fills Config.ExternalRnsam afterwards.
package fdtcfg

import (
	"fmt"
	"sort"

	"github.com/platinasystems/fdt"

	"github.com/platinasystems/cmn600"
)

const compatible = "arm,cmn-600"

// Load extracts the first arm,cmn-600 node from t.
func Load(t *fdt.Tree) (*cmn600.Config, error) {
	var node *fdt.Node
	t.EachProperty("compatible", compatible,
		func(n *fdt.Node, name, value string) {
			if node == nil {
				node = n
			}
		})
	if node == nil {
		return nil, fmt.Errorf("fdtcfg: no %s node", compatible)
	}
	return load(t, node)
}

func load(t *fdt.Tree, n *fdt.Node) (*cmn600.Config, error) {
	cfg := new(cmn600.Config)

	mesh, err := cells(t, n, "mesh-size", 2)
	if err != nil {
		return nil, err
	}
	cfg.MeshSizeX = uint(mesh[0])
	cfg.MeshSizeY = uint(mesh[1])

	hnd, err := cells(t, n, "hnd-node-id", 1)
	if err != nil {
		return nil, err
	}
	cfg.HndNodeID = uint16(hnd[0])

	snf, ok := n.Properties["snf-table"]
	if !ok {
		return nil, fmt.Errorf("fdtcfg: %s: no snf-table", n.Name)
	}
	for _, v := range t.PropUint32Slice(snf) {
		cfg.SnfTable = append(cfg.SnfTable, uint16(v))
	}

	if b, ok := n.Properties["sa-count"]; ok && len(b) >= 4 {
		cfg.SaCount = uint8(t.PropUint32(b))
	}
	if b, ok := n.Properties["cxgla-node-id"]; ok && len(b) >= 4 {
		cfg.CxgLaNodeID = uint16(t.PropUint32(b))
	}

	if mr, ok := n.Children["memory-regions"]; ok {
		for _, rn := range mr.Children {
			r, err := region(t, rn)
			if err != nil {
				return nil, err
			}
			cfg.Mmap = append(cfg.Mmap, r)
		}
		// child maps carry no order; keep the table deterministic
		sort.Slice(cfg.Mmap, func(i, j int) bool {
			return cfg.Mmap[i].Base < cfg.Mmap[j].Base
		})
	}
	return cfg, nil
}

func region(t *fdt.Tree, n *fdt.Node) (r cmn600.MemoryRegion, err error) {
	reg, err := cells(t, n, "reg", 4)
	if err != nil {
		return r, err
	}
	r.Base = uint64(reg[0])<<32 | uint64(reg[1])
	r.Size = uint64(reg[2])<<32 | uint64(reg[3])

	b, ok := n.Properties["region-type"]
	if !ok {
		return r, fmt.Errorf("fdtcfg: %s: no region-type", n.Name)
	}
	switch s := t.PropString(b); s {
	case "io":
		r.Type = cmn600.RegionTypeIO
	case "syscache":
		r.Type = cmn600.RegionTypeSysCache
	case "syscache-sub":
		r.Type = cmn600.RegionTypeSysCacheSub
	case "ccix":
		r.Type = cmn600.RegionTypeCCIX
	default:
		return r, fmt.Errorf("fdtcfg: %s: region-type %q unknown",
			n.Name, s)
	}

	if r.Type != cmn600.RegionTypeSysCache {
		tgt, err := cells(t, n, "target", 1)
		if err != nil {
			return r, err
		}
		r.NodeID = uint16(tgt[0])
	}
	return r, nil
}

func cells(t *fdt.Tree, n *fdt.Node, name string, want int) ([]uint32, error) {
	b, ok := n.Properties[name]
	if !ok {
		return nil, fmt.Errorf("fdtcfg: %s: no %s", n.Name, name)
	}
	v := t.PropUint32Slice(b)
	if len(v) < want {
		return nil, fmt.Errorf("fdtcfg: %s: %s has %d cells, want %d",
			n.Name, name, len(v), want)
	}
	return v, nil
}
