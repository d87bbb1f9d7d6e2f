// Copyright © 2018-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmn600

import (
	"errors"
	"fmt"
	"time"

	"github.com/platinasystems/log"
)

// linkState tracks one cross-chip link's position in the bring-up
// sequence. Transitions only move forward; there is no teardown.
type linkState int

const (
	linkUnconfigured linkState = iota
	linkHostConfigured
	linkRemoteConfigured
	linkCreditExchanged
	linkCoherencyEnabled
)

func (s linkState) String() string {
	switch s {
	case linkUnconfigured:
		return "unconfigured"
	case linkHostConfigured:
		return "host-configured"
	case linkRemoteConfigured:
		return "remote-configured"
	case linkCreditExchanged:
		return "credit-exchanged"
	case linkCoherencyEnabled:
		return "coherency-enabled"
	}
	return fmt.Sprintf("linkState(%d)", int(s))
}

const (
	creditBudget    = 50 * time.Millisecond
	creditRetries   = 3
	coherencyBudget = 100 * time.Millisecond
)

// CcixMemoryRegion is one remote home-agent backed region.
type CcixMemoryRegion struct {
	HaID uint8
	Base uint64
	Size uint64
}

// CcixHostConfig is this chip's side of the link negotiation, handed
// to upper firmware for transmission to the remote chip.
type CcixHostConfig struct {
	HostRaCount uint8
	HostSaCount uint8
	HostHaCount uint8
	Mmap        []CcixMemoryRegion
}

// CcixRemoteConfig is the remote chip's side, received from upper
// firmware. Mmap holds at most 4 entries.
type CcixRemoteConfig struct {
	RemoteRaCount uint8
	RemoteSaCount uint8
	RemoteHaCount uint8
	TrafficClass  uint8
	MsgPackEnable bool
	BusNum        uint8
	LinkID        uint8
	OptTlpMode    bool
	Mmap          []CcixMemoryRegion
}

// buildHostInfo snapshots the classified pools into the host
// configuration reported by GetConfig.
func (c *Ctx) buildHostInfo() error {
	c.hostInfo = CcixHostConfig{
		HostRaCount: uint8(len(c.internalRnsam) + len(c.externalRnsam)),
		HostSaCount: c.cfg.SaCount,
		HostHaCount: uint8(len(c.hnf)),
	}
	for _, r := range c.cfg.Mmap {
		if r.Type != RegionTypeCCIX {
			continue
		}
		if len(c.hostInfo.Mmap) == maxHaMmapCount {
			return fmt.Errorf("more than %d cross-chip regions: %w",
				maxHaMmapCount, ErrConfig)
		}
		c.hostInfo.Mmap = append(c.hostInfo.Mmap, CcixMemoryRegion{
			HaID: uint8(len(c.hostInfo.Mmap)),
			Base: r.Base,
			Size: r.Size,
		})
	}
	return nil
}

func (c *Ctx) link(id uint8) (*ccixLink, error) {
	if id >= maxLinkCount {
		return nil, fmt.Errorf("link %d, max %d: %w",
			id, maxLinkCount-1, ErrConfig)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.links[id]
	if !ok {
		l = &ccixLink{state: linkUnconfigured}
		if c.hostConfigured {
			l.state = linkHostConfigured
		}
		c.links[id] = l
	}
	return l, nil
}

// GetConfig returns the host side of the link negotiation. Fails
// until discovery, classification and programming have completed.
func (c *Ctx) GetConfig() (*CcixHostConfig, error) {
	if !c.initialized {
		return nil, fmt.Errorf("get config: %w", ErrNotInitialized)
	}
	c.mu.Lock()
	c.hostConfigured = true
	for _, l := range c.links {
		if l.state == linkUnconfigured {
			l.state = linkHostConfigured
		}
	}
	c.mu.Unlock()
	out := c.hostInfo
	out.Mmap = append([]CcixMemoryRegion(nil), c.hostInfo.Mmap...)
	return &out, nil
}

// SetConfig programs the local request and home agents to match the
// remote chip's configuration: request identifiers split between
// local and remote transactions, the remote memory map routed
// through the link aggregation node, and the link's home agent given
// its unique identifier.
func (c *Ctx) SetConfig(rc *CcixRemoteConfig) error {
	if !c.initialized {
		return fmt.Errorf("set config: %w", ErrNotInitialized)
	}
	if c.cxgRa == nil || c.cxgHa == nil || c.cxla == nil {
		return fmt.Errorf("no cross-chip gateway on mesh: %w", ErrConfig)
	}
	if len(rc.Mmap) > maxHaMmapCount {
		return fmt.Errorf("remote map has %d entries, max %d: %w",
			len(rc.Mmap), maxHaMmapCount, ErrConfig)
	}
	l, err := c.link(rc.LinkID)
	if err != nil {
		return err
	}
	if l.state != linkHostConfigured {
		return fmt.Errorf("set config on %s link %d: %w",
			l.state, rc.LinkID, ErrLinkState)
	}

	// each link carves its own request-id window: local requesters
	// take the low ids, remote ones start right above them, and the
	// next link's window starts past both
	localCount := c.hostInfo.HostRaCount
	c.mu.Lock()
	raidBase := c.raidValue
	c.raidValue += localCount + rc.RemoteRaCount
	l.haLdid = c.nextHaLdid
	c.nextHaLdid++
	c.mu.Unlock()
	raid := uint64(raidBase)<<raidLocalShift |
		uint64(raidBase+localCount)<<raidRemoteShift |
		uint64(localCount)<<raidCountShift
	if err := c.io.W64(c.cxgRa.Offset+cxgRaRaidOffset(rc.LinkID),
		raid); err != nil {
		return err
	}
	if err := c.io.W64(c.cxgRa.Offset+cxgRaRegControl, cxgLinkEnable); err != nil {
		return err
	}
	if err := c.io.W64(c.cxgHa.Offset+cxgHaRegLdid,
		uint64(l.haLdid)); err != nil {
		return err
	}
	if err := c.io.W64(c.cxgHa.Offset+cxgHaRegControl, cxgLinkEnable); err != nil {
		return err
	}

	props := uint64(rc.TrafficClass)<<cxlaPropTcShift |
		uint64(rc.BusNum)<<cxlaPropBusShift |
		uint64(rc.LinkID)<<cxlaPropLinkShift
	if rc.MsgPackEnable {
		props |= cxlaPropMsgPack
	}
	if rc.OptTlpMode {
		props |= cxlaPropOptTlp
	}
	if err := c.io.W64(c.cxla.Offset+cxlaPropsOffset(rc.LinkID), props); err != nil {
		return err
	}
	for i := 0; i < maxHaMmapCount; i++ {
		off := c.cxla.Offset + cxlaMmapOffset(rc.LinkID, i)
		var base, size, mcfg uint64
		if i < len(rc.Mmap) {
			m := rc.Mmap[i]
			base, size = m.Base, m.Size
			mcfg = cxlaMmapValid | uint64(m.HaID)<<cxlaMmapHaIDShift
		}
		if err := c.io.W64(off, base); err != nil {
			return err
		}
		if err := c.io.W64(off+8, size); err != nil {
			return err
		}
		if err := c.io.W64(off+16, mcfg); err != nil {
			return err
		}
	}
	if err := c.io.W64(c.cxla.Offset+cxlaRegControl, cxgLinkEnable); err != nil {
		return err
	}

	c.mu.Lock()
	l.state = linkRemoteConfigured
	c.mu.Unlock()
	log.Print("cmn600: link ", rc.LinkID, " remote configured, ha ldid ",
		l.haLdid)
	return nil
}

// ExchangeProtocolCredit runs the link's flow-control credit
// handshake. Safe to retry after a timeout; once credits are
// confirmed a repeat is rejected, since re-issuing would double
// count them.
func (c *Ctx) ExchangeProtocolCredit(linkID uint8) error {
	l, err := c.link(linkID)
	if err != nil {
		return err
	}
	if l.state != linkRemoteConfigured {
		return fmt.Errorf("credit exchange on %s link %d: %w",
			l.state, linkID, ErrLinkState)
	}
	raCtl := c.cxgRa.Offset + cxgLinkCtl(cxgRaRegLinkCtlBase, linkID)
	haCtl := c.cxgHa.Offset + cxgLinkCtl(cxgHaRegLinkCtlBase, linkID)
	if err := c.setBits(raCtl, cxgLinkCreditReq); err != nil {
		return err
	}
	if err := c.setBits(haCtl, cxgLinkCreditReq); err != nil {
		return err
	}
	err = c.pollLinkGranted(linkID)
	for retry := 0; err != nil && errors.Is(err, ErrTimeout) && retry < creditRetries; retry++ {
		log.Print("cmn600: link ", linkID, " credit grant slow, retrying")
		err = c.pollLinkGranted(linkID)
	}
	if err != nil {
		// state unchanged: the caller may retry the exchange
		return err
	}
	c.mu.Lock()
	l.state = linkCreditExchanged
	c.mu.Unlock()
	log.Print("cmn600: link ", linkID, " credits exchanged")
	return nil
}

func (c *Ctx) pollLinkGranted(linkID uint8) error {
	raSt := c.cxgRa.Offset + cxgLinkStatus(cxgRaRegLinkCtlBase, linkID)
	haSt := c.cxgHa.Offset + cxgLinkStatus(cxgHaRegLinkCtlBase, linkID)
	if err := c.pollBit(c.io, raSt, cxgLinkCreditGranted,
		creditBudget); err != nil {
		return fmt.Errorf("link %d ra credit: %w", linkID, err)
	}
	if err := c.pollBit(c.io, haSt, cxgLinkCreditGranted,
		creditBudget); err != nil {
		return fmt.Errorf("link %d ha credit: %w", linkID, err)
	}
	return nil
}

// EnterSystemCoherency is the terminal transition: the link joins
// system-wide coherency and stays enabled for the life of the
// process. A repeat call is a usage error.
func (c *Ctx) EnterSystemCoherency(linkID uint8) error {
	l, err := c.link(linkID)
	if err != nil {
		return err
	}
	if l.state != linkCreditExchanged {
		return fmt.Errorf("enter coherency on %s link %d: %w",
			l.state, linkID, ErrLinkState)
	}
	raCtl := c.cxgRa.Offset + cxgLinkCtl(cxgRaRegLinkCtlBase, linkID)
	haCtl := c.cxgHa.Offset + cxgLinkCtl(cxgHaRegLinkCtlBase, linkID)
	if err := c.setBits(raCtl, cxgLinkCoherencyReq); err != nil {
		return err
	}
	if err := c.setBits(haCtl, cxgLinkCoherencyReq); err != nil {
		return err
	}
	raSt := c.cxgRa.Offset + cxgLinkStatus(cxgRaRegLinkCtlBase, linkID)
	haSt := c.cxgHa.Offset + cxgLinkStatus(cxgHaRegLinkCtlBase, linkID)
	if err := c.pollBit(c.io, raSt, cxgLinkCoherencyEnabled,
		coherencyBudget); err != nil {
		return fmt.Errorf("link %d ra coherency: %w", linkID, err)
	}
	if err := c.pollBit(c.io, haSt, cxgLinkCoherencyEnabled,
		coherencyBudget); err != nil {
		return fmt.Errorf("link %d ha coherency: %w", linkID, err)
	}
	c.mu.Lock()
	l.state = linkCoherencyEnabled
	c.mu.Unlock()
	log.Print("cmn600: link ", linkID, " in system coherency")
	return nil
}

func (c *Ctx) setBits(off, mask uint64) error {
	v, err := c.io.R64(off)
	if err != nil {
		return err
	}
	return c.io.W64(off, v|mask)
}
