package kdbx

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Inner header field IDs (KDBX4 only; KDBX3 carries the equivalent data in
// the outer header and has no per-entry binary framing here).
const (
	innerFieldEnd             uint8 = 0
	innerFieldRandomStreamID  uint8 = 1
	innerFieldRandomStreamKey uint8 = 2
	innerFieldBinary          uint8 = 3
)

// Binary flag bits for an inner-header attachment.
const binaryFlagProtected byte = 0x01

// InnerHeader carries the KDBX4 inner random stream configuration and the
// database's binary attachment pool, both of which live inside the
// decrypted/decompressed body ahead of the XML document.
type InnerHeader struct {
	InnerRandomStreamID  uint32
	InnerRandomStreamKey []byte
	Binaries             []InnerBinary
}

// InnerBinary is one pool entry referenced by XML <Binary Ref="..."> value
// elements via its index in this slice.
type InnerBinary struct {
	Protected bool
	Content   []byte
}

func readInnerHeader(r io.Reader) (*InnerHeader, error) {
	ih := new(InnerHeader)
	for {
		var id uint8
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, fmt.Errorf("kdbx: reading inner header field id: %w", err)
		}
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, fmt.Errorf("kdbx: reading inner header field length: %w", err)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, ErrMalformedHeader{Reason: "truncated inner header field"}
		}

		switch id {
		case innerFieldEnd:
			return ih, nil
		case innerFieldRandomStreamID:
			if len(data) != 4 {
				return nil, ErrMalformedHeader{Reason: "InnerRandomStreamID is not 4 bytes"}
			}
			ih.InnerRandomStreamID = binary.LittleEndian.Uint32(data)
		case innerFieldRandomStreamKey:
			ih.InnerRandomStreamKey = data
		case innerFieldBinary:
			if len(data) < 1 {
				return nil, ErrMalformedHeader{Reason: "inner binary field missing flags byte"}
			}
			ih.Binaries = append(ih.Binaries, InnerBinary{
				Protected: data[0]&binaryFlagProtected != 0,
				Content:   append([]byte(nil), data[1:]...),
			})
		default:
			return nil, ErrMalformedHeader{Reason: fmt.Sprintf("unknown inner header field id %d", id)}
		}
	}
}

func (ih *InnerHeader) writeTo(w io.Writer) error {
	streamID := make([]byte, 4)
	binary.LittleEndian.PutUint32(streamID, ih.InnerRandomStreamID)
	if err := writeInnerField(w, innerFieldRandomStreamID, streamID); err != nil {
		return err
	}
	if err := writeInnerField(w, innerFieldRandomStreamKey, ih.InnerRandomStreamKey); err != nil {
		return err
	}
	for _, bin := range ih.Binaries {
		var flags byte
		if bin.Protected {
			flags = binaryFlagProtected
		}
		payload := append([]byte{flags}, bin.Content...)
		if err := writeInnerField(w, innerFieldBinary, payload); err != nil {
			return err
		}
	}
	return writeInnerField(w, innerFieldEnd, nil)
}

func writeInnerField(w io.Writer, id uint8, data []byte) error {
	if err := binary.Write(w, binary.LittleEndian, id); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return binary.Write(w, binary.LittleEndian, data)
}
