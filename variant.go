package kdbx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Variant dictionary value type tags (KDBX §4.2).
const (
	variantTypeUInt32 byte = 0x04
	variantTypeUInt64 byte = 0x05
	variantTypeBool   byte = 0x08
	variantTypeInt32  byte = 0x0C
	variantTypeInt64  byte = 0x0D
	variantTypeString byte = 0x18
	variantTypeBinary byte = 0x42
)

// VariantDictionary is the typed, order-preserving key/value map used for
// KDF parameters and public custom data. Wire layout: a u16 version,
// repeated {type, name_len u32, name, value_len u32, value} records,
// terminated by a lone 0x00 type byte.
type VariantDictionary struct {
	Version uint16
	Items   []VariantItem
}

// VariantItem is one entry of a VariantDictionary, preserving the type tag
// so a round-trip reproduces the exact wire bytes.
type VariantItem struct {
	Type  byte
	Name  string
	Value []byte
}

// Get returns the item named key, or nil if absent.
func (vd *VariantDictionary) Get(key string) *VariantItem {
	for i := range vd.Items {
		if vd.Items[i].Name == key {
			return &vd.Items[i]
		}
	}
	return nil
}

// Set inserts or overwrites the item named key, preserving its original
// position if it already existed, else appending.
func (vd *VariantDictionary) Set(key string, typ byte, value []byte) {
	if item := vd.Get(key); item != nil {
		item.Type = typ
		item.Value = value
		return
	}
	vd.Items = append(vd.Items, VariantItem{Type: typ, Name: key, Value: value})
}

// SetUint32 stores a little-endian u32 value under key.
func (vd *VariantDictionary) SetUint32(key string, v uint32) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	vd.Set(key, variantTypeUInt32, buf)
}

// SetUint64 stores a little-endian u64 value under key.
func (vd *VariantDictionary) SetUint64(key string, v uint64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	vd.Set(key, variantTypeUInt64, buf)
}

// SetBytes stores a raw byte array under key.
func (vd *VariantDictionary) SetBytes(key string, v []byte) {
	vd.Set(key, variantTypeBinary, v)
}

// Uint32 reads a u32 item, returning 0 if absent.
func (vd *VariantDictionary) Uint32(key string) uint32 {
	item := vd.Get(key)
	if item == nil || len(item.Value) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(item.Value)
}

// Uint64 reads a u64 item, returning 0 if absent.
func (vd *VariantDictionary) Uint64(key string) uint64 {
	item := vd.Get(key)
	if item == nil || len(item.Value) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(item.Value)
}

// Bytes reads a byte-array item, returning nil if absent.
func (vd *VariantDictionary) Bytes(key string) []byte {
	item := vd.Get(key)
	if item == nil {
		return nil
	}
	return item.Value
}

// readVariantDictionary parses the wire form described above, rejecting
// unknown type tags as malformed (KDBX §4.2: "reject unknown types as
// fatal").
func readVariantDictionary(data []byte) (*VariantDictionary, error) {
	r := bytes.NewReader(data)
	vd := new(VariantDictionary)

	if err := binary.Read(r, binary.LittleEndian, &vd.Version); err != nil {
		return nil, ErrMalformedHeader{Reason: "truncated variant dictionary version"}
	}

	for {
		var typ byte
		if err := binary.Read(r, binary.LittleEndian, &typ); err != nil {
			return nil, ErrMalformedHeader{Reason: "truncated variant dictionary item"}
		}
		if typ == 0x00 {
			break
		}
		switch typ {
		case variantTypeUInt32, variantTypeUInt64, variantTypeBool,
			variantTypeInt32, variantTypeInt64, variantTypeString, variantTypeBinary:
		default:
			return nil, ErrMalformedHeader{Reason: fmt.Sprintf("unknown variant dictionary type tag 0x%02x", typ)}
		}

		var nameLen int32
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, ErrMalformedHeader{Reason: "truncated variant dictionary name length"}
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, ErrMalformedHeader{Reason: "truncated variant dictionary name"}
		}

		var valueLen int32
		if err := binary.Read(r, binary.LittleEndian, &valueLen); err != nil {
			return nil, ErrMalformedHeader{Reason: "truncated variant dictionary value length"}
		}
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(r, value); err != nil {
			return nil, ErrMalformedHeader{Reason: "truncated variant dictionary value"}
		}

		vd.Items = append(vd.Items, VariantItem{Type: typ, Name: string(name), Value: value})
	}
	return vd, nil
}

// writeTo serializes vd in insertion order, terminated by a single 0x00
// type byte (no trailing length).
func (vd *VariantDictionary) writeTo(w *bytes.Buffer) error {
	if err := binary.Write(w, binary.LittleEndian, vd.Version); err != nil {
		return err
	}
	for _, item := range vd.Items {
		if err := binary.Write(w, binary.LittleEndian, item.Type); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, int32(len(item.Name))); err != nil {
			return err
		}
		w.WriteString(item.Name)
		if err := binary.Write(w, binary.LittleEndian, int32(len(item.Value))); err != nil {
			return err
		}
		w.Write(item.Value)
	}
	return binary.Write(w, binary.LittleEndian, byte(0x00))
}
