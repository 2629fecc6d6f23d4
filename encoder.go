package kdbx

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/xml"
	"io"
)

const xmlDeclaration = `<?xml version="1.0" encoding="utf-8" standalone="yes"?>` + "\n"

// Encoder writes a Database as a KDBX file to an io.Writer.
type Encoder struct {
	w io.Writer
}

// NewEncoder wraps w for encoding.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode serializes db: outer header, (v4) header hashes, XML document
// (preceded by the inner header for v4), compression, block envelope, and
// body encryption. Protected entry values are locked first if the database
// is in its unlocked state, and stay locked afterwards; call
// UnlockProtectedEntries to keep working with the plaintext values.
func (e *Encoder) Encode(db *Database) error {
	if err := db.LockProtectedEntries(); err != nil {
		return err
	}

	db.Content.setFormatted(!db.Header.IsKdbx4())

	// Every save gets a fresh master seed, IV and KDF salt; the transformed
	// key is derived only after they are in place.
	db.Header.FileHeaders.regenerateSeeds(db.Header.IsKdbx4())

	transformedKey, err := db.transformedKey()
	if err != nil {
		return err
	}

	if err := db.Header.writeTo(e.w); err != nil {
		return err
	}

	// The header hash has to be settled before encodeBody marshals the XML:
	// v3.1 stores it inside the encrypted document as Meta/HeaderHash.
	headerHash := db.Header.GetSha256()
	if !db.Header.IsKdbx4() {
		db.Content.Meta.HeaderHash = base64.StdEncoding.EncodeToString(headerHash[:])
	}

	body, err := e.encodeBody(db, transformedKey)
	if err != nil {
		return err
	}

	if db.Header.IsKdbx4() {
		hmacKey := buildHmacKey(db.Header.FileHeaders.MasterSeed, transformedKey)
		db.Hashes = &DBHashes{
			Sha256: headerHash,
			Hmac:   db.Header.GetHmacSha256(hmacKey),
		}
		if err := db.Hashes.writeTo(e.w); err != nil {
			return err
		}
	}

	_, err = e.w.Write(body)
	return err
}

// encodeBody marshals Content to XML, prepends the inner header (v4),
// compresses, wraps in the block envelope and encrypts — the reverse of
// Decoder.decodeBody, performed in the reverse order.
func (e *Encoder) encodeBody(db *Database, transformedKey []byte) ([]byte, error) {
	var xmlBuf bytes.Buffer
	xmlBuf.WriteString(xmlDeclaration)
	xmlEnc := xml.NewEncoder(&xmlBuf)
	xmlEnc.Indent("", "\t")
	if err := xmlEnc.Encode(db.Content); err != nil {
		return nil, err
	}

	var plaintext bytes.Buffer
	if db.Header.IsKdbx4() {
		if db.Content.InnerHeader == nil {
			return nil, ErrRequiredAttributeMissing("InnerHeader")
		}
		if err := db.Content.InnerHeader.writeTo(&plaintext); err != nil {
			return nil, err
		}
	}
	plaintext.Write(xmlBuf.Bytes())

	compressed := plaintext.Bytes()
	if db.Header.FileHeaders.CompressionFlags == CompressionGzip {
		var gzBuf bytes.Buffer
		gz := gzip.NewWriter(&gzBuf)
		if _, err := gz.Write(plaintext.Bytes()); err != nil {
			return nil, err
		}
		if err := gz.Close(); err != nil {
			return nil, err
		}
		compressed = gzBuf.Bytes()
	}

	cipher, err := db.GetBodyCipher(transformedKey)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if db.Header.IsKdbx4() {
		ciphertext, err := cipher.Encrypt(compressed)
		if err != nil {
			return nil, ErrCryptoFailure{Reason: err.Error()}
		}
		hmacBaseKey := buildHmacBaseKey(db.Header.FileHeaders.MasterSeed, transformedKey)
		if err := composeBlocksV4(&out, ciphertext, hmacBaseKey); err != nil {
			return nil, err
		}
	} else {
		var blocked bytes.Buffer
		if err := composeBlocksV3(&blocked, compressed); err != nil {
			return nil, err
		}

		var withStartBytes bytes.Buffer
		withStartBytes.Write(db.Header.FileHeaders.StreamStartBytes)
		withStartBytes.Write(blocked.Bytes())

		ciphertext, err := cipher.Encrypt(withStartBytes.Bytes())
		if err != nil {
			return nil, ErrCryptoFailure{Reason: err.Error()}
		}
		out.Write(ciphertext)
	}

	return out.Bytes(), nil
}
