package kdbx

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"

	w "github.com/kdbxgo/kdbx/wrappers"
)

// Binaries holds the attachment pool stored in the v3.1 metadata header
// (in KDBX4 the pool lives in the inner header instead; see InnerHeader).
type Binaries []Binary

// Binary is one pooled attachment, referenced by entries via BinaryReference.
type Binary struct {
	ID         int           `xml:"ID,attr"`
	Content    []byte        `xml:",innerxml"`
	Compressed w.BoolWrapper `xml:"Compressed,attr"`
}

// BinaryReference is the <Binary> value an entry stores pointing at a pool
// entry by ID.
type BinaryReference struct {
	Name  string `xml:"Key"`
	Value struct {
		ID int `xml:"Ref,attr"`
	} `xml:"Value"`
}

// Find returns the binary in bs whose ID matches id, or nil.
func (bs Binaries) Find(id int) *Binary {
	for i := range bs {
		if bs[i].ID == id {
			return &bs[i]
		}
	}
	return nil
}

// Add appends raw content as a new gzip+base64 pool entry and returns it.
func (bs *Binaries) Add(content []byte) (*Binary, error) {
	b := Binary{Compressed: w.NewBoolWrapper(true)}
	if len(*bs) > 0 {
		b.ID = (*bs)[len(*bs)-1].ID + 1
	}
	if err := b.SetContent(content); err != nil {
		return nil, err
	}
	*bs = append(*bs, b)
	return &(*bs)[len(*bs)-1], nil
}

// SetContent gzip-compresses (if Compressed) and base64-encodes content,
// storing the result as the v3.1 wire form.
func (b *Binary) SetContent(content []byte) error {
	var buf bytes.Buffer
	enc := base64.NewEncoder(base64.StdEncoding, &buf)

	var writer io.WriteCloser = enc
	var gz *gzip.Writer
	if b.Compressed.Bool {
		gz = gzip.NewWriter(enc)
		writer = gz
	}
	if _, err := writer.Write(content); err != nil {
		return fmt.Errorf("kdbx: compressing binary content: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("kdbx: closing binary gzip stream: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("kdbx: closing binary base64 stream: %w", err)
	}
	b.Content = buf.Bytes()
	return nil
}

// GetContentBytes decodes (and, if Compressed, decompresses) the binary's
// stored content. KDBX4 inner-header binaries are never base64'd, so a
// failed base64 decode falls back to treating Content as raw bytes.
func (b Binary) GetContentBytes() ([]byte, error) {
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(b.Content)))
	n, err := base64.StdEncoding.Decode(decoded, b.Content)
	if err != nil {
		decoded = b.Content
	} else {
		decoded = decoded[:n]
	}

	if !b.Compressed.Bool {
		return decoded, nil
	}

	r, err := gzip.NewReader(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("kdbx: opening binary gzip stream: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("kdbx: decompressing binary content: %w", err)
	}
	return out, nil
}

// CreateReference builds a BinaryReference with name pointing at b's ID.
func (b Binary) CreateReference(name string) BinaryReference {
	ref := BinaryReference{Name: name}
	ref.Value.ID = b.ID
	return ref
}

// Find resolves br against the database's binary pool: the inner header for
// KDBX4, the metadata Binaries slice for KDBX3.1.
func (br *BinaryReference) Find(db *Database) *Binary {
	if db.Header.IsKdbx4() {
		if db.Content.InnerHeader == nil {
			return nil
		}
		for i := range db.Content.InnerHeader.Binaries {
			if i == br.Value.ID {
				return &Binary{
					ID:      i,
					Content: db.Content.InnerHeader.Binaries[i].Content,
				}
			}
		}
		return nil
	}
	return db.Content.Meta.Binaries.Find(br.Value.ID)
}
