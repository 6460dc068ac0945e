package state

import (
	"encoding/binary"

	"github.com/MrEthical07/goClone/permission"
)

// Record is the persisted form of one proxy instance.
type Record struct {
	Address   string
	Factory   string
	Mask      permission.Mask
	Nonce     uint64
	CreatedAt int64

	Slots map[string][]byte
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Mask != nil {
		out.Mask = r.Mask.Clone()
	}
	out.Slots = cloneSlots(r.Slots)
	return &out
}

// Changes is the write set produced by one successful call.
type Changes struct {
	Writes  map[string][]byte
	Deletes []string
}

// Empty reports whether applying c would be a no-op.
func (c Changes) Empty() bool {
	return len(c.Writes) == 0 && len(c.Deletes) == 0
}

// State is the view of an instance's slots handed to implementation code.
// Values returned by Get are copies.
type State interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Delete(key string)
}

// GetUint64 reads a big-endian counter slot; missing or short slots read as 0.
func GetUint64(st State, key string) uint64 {
	v, ok := st.Get(key)
	if !ok || len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

// SetUint64 writes a big-endian counter slot.
func SetUint64(st State, key string, v uint64) {
	st.Set(key, EncodeUint64(v))
}

// EncodeUint64 is the slot and return-payload encoding of a counter.
func EncodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// DecodeUint64 is the inverse of [EncodeUint64]; other lengths decode as 0.
func DecodeUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func cloneSlots(in map[string][]byte) map[string][]byte {
	out := make(map[string][]byte, len(in))
	for k, v := range in {
		out[k] = cloneBytes(v)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
