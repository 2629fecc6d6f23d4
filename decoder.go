package kdbx

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/xml"
	"io"
)

// Decoder reads a KDBX file from an io.Reader.
type Decoder struct {
	r io.Reader
}

// NewDecoder wraps r for decoding.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// DecodeHeader reads only the outer header from the Decoder's reader. No
// credentials are needed and no integrity checks run, so this is suitable
// for inspecting a file's cipher/KDF/compression configuration without
// unlocking it.
func (d *Decoder) DecodeHeader() (*DBHeader, error) {
	return readHeader(d.r)
}

// Decode populates db from the Decoder's reader: outer header, key
// derivation, (v4) header integrity checks, block envelope, decompression,
// inner header (v4), and finally the XML document. Protected values are
// left in their locked (stream-ciphered) state; call
// Database.UnlockProtectedEntries to read them.
func (d *Decoder) Decode(db *Database) error {
	header, err := readHeader(d.r)
	if err != nil {
		return err
	}
	db.Header = header

	transformedKey, err := db.transformedKey()
	if err != nil {
		return err
	}

	if db.Header.IsKdbx4() {
		hashes, err := readHashes(d.r)
		if err != nil {
			return err
		}
		db.Hashes = hashes

		if db.Options == nil || db.Options.ValidateHashes {
			if err := db.Header.ValidateSha256(hashes.Sha256); err != nil {
				return err
			}
			hmacKey := buildHmacKey(db.Header.FileHeaders.MasterSeed, transformedKey)
			if err := db.Header.ValidateHmacSha256(hmacKey, hashes.Hmac); err != nil {
				return err
			}
		}
	}

	rawBody, err := io.ReadAll(d.r)
	if err != nil {
		return err
	}

	content, err := d.decodeBody(db, rawBody, transformedKey)
	if err != nil {
		return err
	}

	db.Content = new(DBContent)

	bodyReader := bytes.NewReader(content)
	if db.Header.IsKdbx4() {
		inner, err := readInnerHeader(bodyReader)
		if err != nil {
			return err
		}
		db.Content.InnerHeader = inner
	}
	db.Content.RawData = content[len(content)-bodyReader.Len():]

	if err := xml.NewDecoder(bodyReader).Decode(db.Content); err != nil {
		return ErrXMLParse{Cause: err}
	}
	db.locked = true

	if !db.Header.IsKdbx4() && (db.Options == nil || db.Options.ValidateHashes) {
		return validateHeaderHash(db)
	}
	return nil
}

// validateHeaderHash checks the v3.1 Meta/HeaderHash element, the format's
// only tamper evidence for the outer header (v4 carries an HMAC instead).
// Files written before KDBX 3.1 omit the element; that is not an error.
func validateHeaderHash(db *Database) error {
	if db.Content.Meta == nil || db.Content.Meta.HeaderHash == "" {
		return nil
	}
	stored, err := base64.StdEncoding.DecodeString(db.Content.Meta.HeaderHash)
	if err != nil {
		return ErrSchema{Reason: "HeaderHash is not valid base64"}
	}
	actual := db.Header.GetSha256()
	if !bytes.Equal(stored, actual[:]) {
		return ErrIntegrityCheckFailed{Kind: IntegrityHeaderSha256}
	}
	return nil
}

// decodeBody reverses the encryption/block/compression pipeline, in the
// version-specific order: v4 authenticates and strips its HMAC block
// envelope before decrypting; v3.1 decrypts first, validates
// StreamStartBytes, then strips its hash-checked block envelope.
func (d *Decoder) decodeBody(db *Database, raw []byte, transformedKey []byte) ([]byte, error) {
	cipher, err := db.GetBodyCipher(transformedKey)
	if err != nil {
		return nil, err
	}

	var plaintext []byte
	if db.Header.IsKdbx4() {
		hmacBaseKey := buildHmacBaseKey(db.Header.FileHeaders.MasterSeed, transformedKey)
		encrypted, err := decomposeBlocksV4(bytes.NewReader(raw), hmacBaseKey)
		if err != nil {
			return nil, err
		}
		plaintext, err = cipher.Decrypt(encrypted)
		if err != nil {
			return nil, ErrCryptoFailure{Reason: err.Error()}
		}
	} else {
		decrypted, err := cipher.Decrypt(raw)
		if err != nil {
			return nil, ErrCryptoFailure{Reason: err.Error()}
		}

		startBytes := db.Header.FileHeaders.StreamStartBytes
		if len(decrypted) < len(startBytes) || !bytes.Equal(decrypted[:len(startBytes)], startBytes) {
			return nil, ErrIntegrityCheckFailed{Kind: IntegrityHeaderHmac, WrongKey: true}
		}
		decrypted = decrypted[len(startBytes):]

		plaintext, err = decomposeBlocksV3(bytes.NewReader(decrypted))
		if err != nil {
			return nil, err
		}
	}

	if db.Header.FileHeaders.CompressionFlags == CompressionGzip {
		gr, err := gzip.NewReader(bytes.NewReader(plaintext))
		if err != nil {
			return nil, ErrDecompression{Cause: err}
		}
		defer gr.Close()
		plaintext, err = io.ReadAll(gr)
		if err != nil {
			return nil, ErrDecompression{Cause: err}
		}
	}

	return plaintext, nil
}
