package storage

import "github.com/leancore/beacon/types"

// EncodeSlotPrefixed prepends slot as 8 little-endian bytes onto payload,
// letting MemoryStore (and BoltStore's slot_index bucket) maintain
// GetHighestSlot without decoding the SSZ body on every insert.
func EncodeSlotPrefixed(slot types.Slot, payload []byte) []byte {
	out := make([]byte, 8+len(payload))
	s := uint64(slot)
	for i := 0; i < 8; i++ {
		out[i] = byte(s >> (8 * i))
	}
	copy(out[8:], payload)
	return out
}

// DecodeSlotPrefixed splits a value written by EncodeSlotPrefixed back
// into its slot and payload.
func DecodeSlotPrefixed(value []byte) (types.Slot, []byte) {
	if len(value) < 8 {
		return 0, value
	}
	return decodeSlotHint(value), value[8:]
}
