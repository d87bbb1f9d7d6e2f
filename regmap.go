// Copyright © 2018-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package cmn600

// Register layout of the mesh configuration space. All registers are
// 64-bit wide. Offsets of per-node registers are relative to
// the node's own base within the peripheral window.

const (
	// global configuration node at the start of the window
	cfgBase = 0x0000

	// crosspoint array; crosspoint (x, y) sits at
	// xpBase + (y*meshSizeX + x)*xpStride
	xpBase   = 0x20000
	xpStride = 0x10000
)

// per-node registers
const (
	nodeRegInfo      = 0x000 // type, node id, logical id
	nodeRegStatus    = 0x008 // bit 0: node ready
	nodeRegChildInfo = 0x080 // bits [15:0]: child count
	nodeRegChildBase = 0x100 // child pointers, 8 bytes each
)

const nodeStatusReady = 1 << 0

// nodeRegInfo fields
const (
	nodeInfoTypeShift    = 0
	nodeInfoTypeMask     = 0xffff
	nodeInfoIDShift      = 16
	nodeInfoIDMask       = 0xffff
	nodeInfoLogicalShift = 32
	nodeInfoLogicalMask  = 0xffff
)

// child pointer fields: bits [47:0] node offset within the window
const childPtrOffsetMask = 0xffffffffffff

// node types as reported by nodeRegInfo
const (
	nodeTypeInvalid = 0x000
	nodeTypeDVM     = 0x001
	nodeTypeCfg     = 0x002
	nodeTypeDTC     = 0x003
	nodeTypeHNI     = 0x004
	nodeTypeHNF     = 0x005
	nodeTypeXP      = 0x006
	nodeTypeSBSX    = 0x007
	nodeTypeHND     = 0x008
	nodeTypeRNI     = 0x00a
	nodeTypeRND     = 0x00d
	nodeTypeRNSAM   = 0x00f
	nodeTypeCXRA    = 0x100
	nodeTypeCXHA    = 0x101
	nodeTypeCXLA    = 0x102
)

// RN-SAM registers. Each region slot is three registers: base, size,
// and a config word.
const (
	rnsamRegStatus     = 0xc00
	rnsamRegRegionBase = 0xc08
	rnsamRegionStride  = 0x18

	maxRegionSlots = 16

	// span of one RN-SAM node's register file; the size handed to
	// external windows
	rnsamSpan = 0x1000
)

// RN-SAM region config word
const (
	rnsamRegionValid = 1 << 0

	rnsamRegionTypeShift = 1
	rnsamRegionTypeMask  = 0x7

	rnsamRegionHashed = 1 << 4

	rnsamRegionTargetShift = 16
	rnsamRegionTargetMask  = 0xffff

	rnsamRegionHnfCountShift = 40
	rnsamRegionHnfCountMask  = 0xff
)

// rnsam region target types
const (
	rnsamTargetDirect = 0x1 // single target node
	rnsamTargetHnf    = 0x2 // hashed over the HN-F pool
	rnsamTargetCxla   = 0x3 // cross-chip, via link aggregation
)

// HN-F registers
const (
	hnfRegSamControl = 0xd00 // bits [15:0]: backing SN-F node id
)

// CXG request-agent registers
const (
	cxgRaRegControl     = 0xa00 // bit 0: agent enable
	cxgRaRegLinkCtlBase = 0xa10 // per link: control, then status
	cxgLinkStride       = 0x10
	cxgRaRegRaidBase    = 0xa50 // per-link RAID assignment, see below
)

// RAID assignment fields, one register per link
const (
	raidLocalShift  = 0  // first RAID of local requesters
	raidRemoteShift = 8  // first RAID of remote requesters
	raidCountShift  = 16 // local requester count
)

// per-link control register bits (RA and HA alike)
const (
	cxgLinkEnable       = 1 << 0
	cxgLinkCreditReq    = 1 << 1
	cxgLinkCoherencyReq = 1 << 2
)

// per-link status register bits
const (
	cxgLinkCreditGranted    = 1 << 0
	cxgLinkCoherencyEnabled = 1 << 1
)

// CXG home-agent registers
const (
	cxgHaRegControl     = 0xb00 // bit 0: agent enable
	cxgHaRegLdid        = 0xb08 // bits [7:0]: unique HA ldid
	cxgHaRegLinkCtlBase = 0xb10 // per link: control, then status
)

// CXLA registers; the remote home-agent memory maps live here so
// cross-chip regions resolve to the right remote HA. Properties and
// map entries are banked per link, so one link's configuration never
// disturbs another's.
const (
	cxlaRegControl     = 0x900 // bit 0: link aggregation enable
	cxlaRegPropsBase   = 0x908 // per link: traffic class, flags, bus, link id
	cxlaRegMmapBase    = 0x940 // per link, per entry: base, size, config
	cxlaMmapStride     = 0x18
	cxlaMmapBankStride = maxHaMmapCount * cxlaMmapStride
)

// link property fields, one register per link
const (
	cxlaPropTcShift   = 0
	cxlaPropBusShift  = 8
	cxlaPropLinkShift = 16
	cxlaPropMsgPack   = 1 << 24
	cxlaPropOptTlp    = 1 << 25
)

// cxlaRegMmapBase config word
const (
	cxlaMmapValid     = 1 << 0
	cxlaMmapHaIDShift = 8
)

func nodeInfoType(v uint64) uint16 {
	return uint16(v >> nodeInfoTypeShift & nodeInfoTypeMask)
}

func nodeInfoID(v uint64) uint16 {
	return uint16(v >> nodeInfoIDShift & nodeInfoIDMask)
}

func nodeInfoLogicalID(v uint64) uint16 {
	return uint16(v >> nodeInfoLogicalShift & nodeInfoLogicalMask)
}

func encodeNodeInfo(typ, id, ldid uint16) uint64 {
	return uint64(typ)<<nodeInfoTypeShift |
		uint64(id)<<nodeInfoIDShift |
		uint64(ldid)<<nodeInfoLogicalShift
}

func xpOffset(cfg *Config, x, y uint) uint64 {
	return xpBase + uint64(y*cfg.MeshSizeX+x)*xpStride
}

func rnsamRegionOffset(slot int) uint64 {
	return rnsamRegRegionBase + uint64(slot)*rnsamRegionStride
}

func cxgLinkCtl(base uint64, link uint8) uint64 {
	return base + uint64(link)*cxgLinkStride
}

func cxgLinkStatus(base uint64, link uint8) uint64 {
	return base + uint64(link)*cxgLinkStride + 8
}

func cxgRaRaidOffset(link uint8) uint64 {
	return cxgRaRegRaidBase + uint64(link)*8
}

func cxlaPropsOffset(link uint8) uint64 {
	return cxlaRegPropsBase + uint64(link)*8
}

func cxlaMmapOffset(link uint8, entry int) uint64 {
	return cxlaRegMmapBase + uint64(link)*cxlaMmapBankStride +
		uint64(entry)*cxlaMmapStride
}
