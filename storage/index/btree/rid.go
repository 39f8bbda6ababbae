package btree

import "encoding/binary"

// RID identifies a record's storage location: the heap page holding it and
// its slot index within that page (spec.md §6: "leaf value = rid (8 bytes
// page_id+slot)"). The tree treats RID as an opaque fixed-width value; it
// never dereferences it.
type RID struct {
	PageID int32
	Slot   int32
}

// ridSize is the on-disk width of an RID: two 4-byte fields.
const ridSize = 8

// InvalidRID ({-1, -1}) marks the absence of a record id. GetValue does not
// return it on a miss; it returns the zero RID with found == false.
var InvalidRID = RID{PageID: -1, Slot: -1}

func encodeRID(dst []byte, r RID) {
	binary.BigEndian.PutUint32(dst[0:4], uint32(r.PageID))
	binary.BigEndian.PutUint32(dst[4:8], uint32(r.Slot))
}

func decodeRID(src []byte) RID {
	return RID{
		PageID: int32(binary.BigEndian.Uint32(src[0:4])),
		Slot:   int32(binary.BigEndian.Uint32(src[4:8])),
	}
}
