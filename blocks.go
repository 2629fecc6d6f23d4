package kdbx

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"io"
)

// blockSplitRate is the maximum plaintext size of one body block, per
// https://keepass.info/help/kb/kdbx_4.html#dataauth.
const blockSplitRate = 1048576

// blockHMACKeyer derives the per-block HMAC-SHA-256 key for a KDBX4 body:
// SHA-512(LE64(index) || baseKey), where baseKey is
// buildHmacBaseKey(masterSeed, transformedKey). The header HMAC key is this
// same construction at the reserved index 0xFFFFFFFFFFFFFFFF.
type blockHMACKeyer struct {
	baseKey []byte
}

func newBlockHMACKeyer(baseKey []byte) *blockHMACKeyer {
	return &blockHMACKeyer{baseKey: baseKey}
}

func (k *blockHMACKeyer) blockKey(index uint64) []byte {
	h := sha512.New()
	binary.Write(h, binary.LittleEndian, index)
	h.Write(k.baseKey)
	return h.Sum(nil)
}

func (k *blockHMACKeyer) blockHMAC(index uint64, length uint32, data []byte) []byte {
	mac := hmac.New(sha256.New, k.blockKey(index))
	binary.Write(mac, binary.LittleEndian, index)
	binary.Write(mac, binary.LittleEndian, length)
	mac.Write(data)
	return mac.Sum(nil)
}

// decomposeBlocksV4 reads the HMAC-authenticated block stream of a KDBX4
// body and returns the reassembled plaintext, failing closed on the first
// block whose HMAC doesn't verify.
func decomposeBlocksV4(r io.Reader, baseKey []byte) ([]byte, error) {
	keyer := newBlockHMACKeyer(baseKey)
	out := []byte{}

	for index := uint64(0); ; index++ {
		var blockHMAC [32]byte
		if _, err := io.ReadFull(r, blockHMAC[:]); err != nil {
			return nil, ErrMalformedHeader{Reason: "truncated body block HMAC"}
		}

		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, ErrMalformedHeader{Reason: "truncated body block length"}
		}

		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, ErrMalformedHeader{Reason: "truncated body block data"}
		}

		calculated := keyer.blockHMAC(index, length, data)
		if subtle.ConstantTimeCompare(calculated, blockHMAC[:]) == 0 {
			return nil, ErrIntegrityCheckFailed{Kind: IntegrityBodyBlock, Index: int64(index)}
		}

		if length == 0 {
			break
		}
		out = append(out, data...)
	}
	return out, nil
}

// composeBlocksV4 splits plaintext into blockSplitRate-sized chunks, each
// wrapped in an HMAC-LENGTH-DATA record, terminated by a zero-length block.
func composeBlocksV4(w io.Writer, plaintext []byte, baseKey []byte) error {
	keyer := newBlockHMACKeyer(baseKey)

	index := uint64(0)
	offset := 0
	for {
		end := offset + blockSplitRate
		if end > len(plaintext) {
			end = len(plaintext)
		}
		chunk := plaintext[offset:end]
		length := uint32(len(chunk))

		blockHMAC := keyer.blockHMAC(index, length, chunk)
		if _, err := w.Write(blockHMAC); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, length); err != nil {
			return err
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}

		if length == 0 {
			return nil
		}
		offset = end
		index++
	}
}

// decomposeBlocksV3 reads the SHA-256-hashed (unauthenticated beyond
// corruption detection) block stream of a KDBX3 body.
func decomposeBlocksV3(r io.Reader) ([]byte, error) {
	out := []byte{}

	for index := uint32(0); ; index++ {
		var storedIndex uint32
		if err := binary.Read(r, binary.LittleEndian, &storedIndex); err != nil {
			return nil, ErrMalformedHeader{Reason: "truncated body block index"}
		}
		var hash [32]byte
		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return nil, ErrMalformedHeader{Reason: "truncated body block hash"}
		}
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, ErrMalformedHeader{Reason: "truncated body block length"}
		}

		if length == 0 {
			break
		}

		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, ErrMalformedHeader{Reason: "truncated body block data"}
		}

		calculated := sha256.Sum256(data)
		if subtle.ConstantTimeCompare(calculated[:], hash[:]) == 0 {
			return nil, ErrIntegrityCheckFailed{Kind: IntegrityBodyBlock, Index: int64(index)}
		}
		out = append(out, data...)
	}
	return out, nil
}

// composeBlocksV3 splits plaintext into blockSplitRate-sized chunks, each
// prefixed by an index and SHA-256 hash, terminated by a zero-length block.
func composeBlocksV3(w io.Writer, plaintext []byte) error {
	index := uint32(0)
	for offset := 0; offset < len(plaintext); {
		end := offset + blockSplitRate
		if end > len(plaintext) {
			end = len(plaintext)
		}
		chunk := plaintext[offset:end]
		hash := sha256.Sum256(chunk)

		if err := binary.Write(w, binary.LittleEndian, index); err != nil {
			return err
		}
		if _, err := w.Write(hash[:]); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(chunk))); err != nil {
			return err
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}

		offset = end
		index++
	}

	var zero [32]byte
	if err := binary.Write(w, binary.LittleEndian, index); err != nil {
		return err
	}
	if _, err := w.Write(zero[:]); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, uint32(0))
}
