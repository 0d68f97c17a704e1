package flit

import (
	"fmt"
	"strconv"
	"strings"
)

type opcodeEntry struct {
	value uint64
	name  string
}

// CHI opcode tables per channel. Mnemonics are matched case-insensitively.
var opcodeTables = map[Channel][]opcodeEntry{
	ChnREQ: {
		{0x00, "ReqLCrdReturn"},
		{0x01, "ReadShared"},
		{0x02, "ReadClean"},
		{0x03, "ReadOnce"},
		{0x04, "ReadNoSnp"},
		{0x05, "PCrdReturn"},
		{0x07, "ReadUnique"},
		{0x08, "CleanShared"},
		{0x09, "CleanInvalid"},
		{0x0A, "MakeInvalid"},
		{0x0B, "CleanUnique"},
		{0x0C, "MakeUnique"},
		{0x0D, "Evict"},
		{0x11, "ReadNoSnpSep"},
		{0x14, "DVMOp"},
		{0x15, "WriteEvictFull"},
		{0x17, "WriteCleanFull"},
		{0x18, "WriteUniquePtl"},
		{0x19, "WriteUniqueFull"},
		{0x1A, "WriteBackPtl"},
		{0x1B, "WriteBackFull"},
		{0x1C, "WriteNoSnpPtl"},
		{0x1D, "WriteNoSnpFull"},
		{0x20, "WriteUniqueFullStash"},
		{0x21, "WriteUniquePtlStash"},
		{0x22, "StashOnceShared"},
		{0x23, "StashOnceUnique"},
		{0x24, "ReadOnceCleanInvalid"},
		{0x25, "ReadOnceMakeInvalid"},
		{0x26, "PrefetchTgt"},
		{0x28, "WriteNoSnpZero"},
		{0x29, "WriteUniqueZero"},
		{0x41, "AtomicStoreAdd"},
		{0x48, "AtomicLoadAdd"},
		{0x50, "AtomicSwap"},
		{0x51, "AtomicCompare"},
	},
	ChnRSP: {
		{0x00, "RespLCrdReturn"},
		{0x01, "SnpResp"},
		{0x02, "CompAck"},
		{0x03, "RetryAck"},
		{0x04, "Comp"},
		{0x05, "CompDBIDResp"},
		{0x06, "DBIDResp"},
		{0x07, "PCrdGrant"},
		{0x08, "ReadReceipt"},
		{0x09, "SnpRespFwded"},
		{0x0A, "TagMatch"},
		{0x0B, "RespSepData"},
		{0x0C, "Persist"},
		{0x0D, "CompPersist"},
		{0x0E, "DBIDRespOrd"},
		{0x10, "StashDone"},
		{0x11, "CompStashDone"},
		{0x14, "CompCMO"},
	},
	ChnSNP: {
		{0x00, "SnpLCrdReturn"},
		{0x01, "SnpShared"},
		{0x02, "SnpClean"},
		{0x03, "SnpOnce"},
		{0x04, "SnpNotSharedDirty"},
		{0x05, "SnpUniqueStash"},
		{0x06, "SnpMakeInvalidStash"},
		{0x07, "SnpUnique"},
		{0x08, "SnpCleanShared"},
		{0x09, "SnpCleanInvalid"},
		{0x0A, "SnpMakeInvalid"},
		{0x0B, "SnpStashUnique"},
		{0x0C, "SnpStashShared"},
		{0x0D, "SnpDVMOp"},
		{0x11, "SnpSharedFwd"},
		{0x12, "SnpCleanFwd"},
		{0x13, "SnpOnceFwd"},
		{0x14, "SnpNotSharedDirtyFwd"},
		{0x17, "SnpUniqueFwd"},
	},
	ChnDAT: {
		{0x0, "DataLCrdReturn"},
		{0x1, "SnpRespData"},
		{0x2, "CopyBackWrData"},
		{0x3, "NonCopyBackWrData"},
		{0x4, "CompData"},
		{0x5, "SnpRespDataPtl"},
		{0x6, "SnpRespDataFwded"},
		{0x7, "WriteDataCancel"},
		{0xB, "DataSepResp"},
		{0xC, "NCBWrDataCompAck"},
	},
}

// ResolveOpcode maps an opcode given as a mnemonic or a numeric literal
// (decimal or hex) to its numeric value. Numeric values are validated
// against the channel's table as well.
func ResolveOpcode(chn Channel, s string) (uint64, bool) {
	if value, err := strconv.ParseUint(s, 0, 64); err == nil {
		for _, e := range opcodeTables[chn] {
			if e.value == value {
				return value, true
			}
		}
		return 0, false
	}
	name := strings.ToLower(s)
	for _, e := range opcodeTables[chn] {
		if strings.ToLower(e.name) == name {
			return e.value, true
		}
	}
	return 0, false
}

// OpcodeName returns the mnemonic of an opcode value, or the hex literal if
// the value is not in the channel's table.
func OpcodeName(chn Channel, value uint64) string {
	for _, e := range opcodeTables[chn] {
		if e.value == value {
			return e.name
		}
	}
	return fmt.Sprintf("0x%x", value)
}
