// Copyright © 2018-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmn600

import "fmt"

// classify partitions the discovered nodes into the context's typed
// pools. Every node of a known type lands in exactly one pool; a
// pool past its fixed bound is a configuration/hardware mismatch.
func (c *Ctx) classify() error {
	for i := range c.nodes {
		n := &c.nodes[i]
		switch n.Type {
		case nodeTypeHNF:
			if len(c.hnf) == maxHnfCount {
				return fmt.Errorf("more than %d hn-f nodes: %w",
					maxHnfCount, ErrCapacity)
			}
			c.hnf = append(c.hnf, *n)
			c.hnfOffset = append(c.hnfOffset, n.Offset)
		case nodeTypeRNSAM:
			c.internalRnsam = append(c.internalRnsam, n.Offset)
		case nodeTypeRND:
			if len(c.rndLdid) == maxRndCount {
				return fmt.Errorf("more than %d rn-d nodes: %w",
					maxRndCount, ErrCapacity)
			}
			// dense logical index in discovery order, used as the
			// addressing key later on
			c.rndLdid = append(c.rndLdid, n.ID)
		case nodeTypeRNI:
			if len(c.rniLdid) == maxRniCount {
				return fmt.Errorf("more than %d rn-i nodes: %w",
					maxRniCount, ErrCapacity)
			}
			c.rniLdid = append(c.rniLdid, n.ID)
		case nodeTypeCXRA:
			c.cxgRa = n
		case nodeTypeCXHA:
			c.cxgHa = n
		case nodeTypeCXLA:
			c.cxla = n
		}
	}

	// one snf table entry per hn-f, keyed by logical id
	if len(c.hnf) != len(c.cfg.SnfTable) {
		return fmt.Errorf("%d hn-f nodes vs %d snf table entries: %w",
			len(c.hnf), len(c.cfg.SnfTable), ErrConfig)
	}
	for _, h := range c.hnf {
		if int(h.LogicalID) >= len(c.cfg.SnfTable) {
			return fmt.Errorf("hn-f %#x logical id %d outside snf table: %w",
				h.ID, h.LogicalID, ErrConfig)
		}
	}

	// the external units come pre-resolved from the configuration
	c.externalRnsam = append(c.externalRnsam, c.cfg.ExternalRnsam...)
	return nil
}
