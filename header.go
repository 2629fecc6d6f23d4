package kdbx

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"
)

// Outer header field IDs (KDBX §4.1).
const (
	fieldComment             uint8 = 1
	fieldCipherID            uint8 = 2
	fieldCompressionFlags    uint8 = 3
	fieldMasterSeed          uint8 = 4
	fieldTransformSeed       uint8 = 5 // KDBX3 only
	fieldTransformRounds     uint8 = 6 // KDBX3 only
	fieldEncryptionIV        uint8 = 7
	fieldProtectedStreamKey  uint8 = 8 // KDBX3 only
	fieldStreamStartBytes    uint8 = 9 // KDBX3 only
	fieldInnerRandomStreamID uint8 = 10 // KDBX3 only
	fieldKdfParameters       uint8 = 11 // KDBX4 only
	fieldPublicCustomData    uint8 = 12 // KDBX4 only
)

// Inner random stream IDs, carried in the outer header for KDBX3 and in the
// inner header for KDBX4.
const (
	StreamNone     uint32 = 0
	StreamArcFour  uint32 = 1
	StreamSalsa20  uint32 = 2
	StreamChaCha20 uint32 = 3
)

// DBHeader is the outer (unencrypted) header of a KDBX file: the signature
// plus the file header fields, with RawData retained verbatim for the
// SHA-256/HMAC integrity checks that cover it byte-for-byte.
type DBHeader struct {
	RawData     []byte
	Signature   *Signature
	FileHeaders *FileHeaders
}

// FileHeaders holds every outer header field. Only the fields relevant to
// the file's format version are populated.
type FileHeaders struct {
	Comment             []byte
	CipherID            UUID
	CompressionFlags    uint32
	MasterSeed          []byte
	TransformSeed       []byte // KDBX3
	TransformRounds     uint64 // KDBX3
	EncryptionIV        []byte
	ProtectedStreamKey  []byte             // KDBX3
	StreamStartBytes    []byte             // KDBX3
	InnerRandomStreamID uint32             // KDBX3
	KdfParameters       *KdfParameters     // KDBX4
	PublicCustomData    *VariantDictionary // KDBX4
}

// KdfParameters holds the decoded fields of a KDBX4 variant-dictionary KDF
// configuration (field names match the on-disk short keys: $UUID, R, S, P,
// M, I, V, K, A).
type KdfParameters struct {
	UUID        UUID
	Rounds      uint64
	Salt        []byte
	Parallelism uint32
	Memory      uint64
	Iterations  uint64
	Version     uint32
	SecretKey   []byte
	AssocData   []byte
}

// NewKDBX3Header builds a header with conservative KDBX 3.1 defaults: AES256
// body cipher, 6000 AES-KDF rounds, Salsa20 inner stream.
func NewKDBX3Header() *DBHeader {
	sig := DefaultSignatureV3
	return &DBHeader{
		Signature:   &sig,
		FileHeaders: newKDBX3FileHeaders(),
	}
}

func newKDBX3FileHeaders() *FileHeaders {
	return &FileHeaders{
		CipherID:            CipherAES256,
		CompressionFlags:    CompressionGzip,
		MasterSeed:          randomBytes(32),
		TransformSeed:       randomBytes(32),
		TransformRounds:     6000,
		EncryptionIV:        randomBytes(16),
		ProtectedStreamKey:  randomBytes(32),
		StreamStartBytes:    randomBytes(32),
		InnerRandomStreamID: StreamSalsa20,
	}
}

// NewKDBX4Header builds a header with conservative KDBX4 defaults:
// ChaCha20 body cipher, Argon2id KDF.
func NewKDBX4Header() *DBHeader {
	sig := DefaultSignatureV4
	return &DBHeader{
		Signature:   &sig,
		FileHeaders: newKDBX4FileHeaders(),
	}
}

func newKDBX4FileHeaders() *FileHeaders {
	return &FileHeaders{
		CipherID:         CipherChaCha20,
		CompressionFlags: CompressionGzip,
		MasterSeed:       randomBytes(32),
		EncryptionIV:     randomBytes(12),
		KdfParameters: &KdfParameters{
			UUID:        KdfArgon2id,
			Salt:        randomBytes(32),
			Parallelism: 2,
			Memory:      64 * 1024 * 1024,
			Iterations:  10,
			Version:     0x13,
		},
	}
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}

// IsKdbx4 reports whether this header's signature identifies a KDBX4 file.
func (h *DBHeader) IsKdbx4() bool {
	return h.Signature.IsKdbx4()
}

// regenerateSeeds replaces every per-save random quantity, so no two saves
// of the same database share seeds or IVs. The inner stream key material
// (ProtectedStreamKey, v4 inner header key) stays untouched: locked
// protected values are already ciphertext under it.
func (fh *FileHeaders) regenerateSeeds(kdbx4 bool) {
	fh.MasterSeed = randomBytes(32)
	fh.EncryptionIV = randomBytes(len(fh.EncryptionIV))
	if kdbx4 {
		if fh.KdfParameters != nil {
			fh.KdfParameters.Salt = randomBytes(32)
		}
	} else {
		fh.TransformSeed = randomBytes(32)
		fh.StreamStartBytes = randomBytes(32)
	}
}

// readHeader reads the signature and every outer header field from r,
// retaining the exact bytes consumed in RawData for later integrity checks.
func readHeader(r io.Reader) (*DBHeader, error) {
	var buf bytes.Buffer
	tr := io.TeeReader(r, &buf)

	sig, err := readSignature(tr)
	if err != nil {
		return nil, err
	}

	h := &DBHeader{Signature: sig, FileHeaders: new(FileHeaders)}
	for {
		done, err := h.FileHeaders.readField(tr, h.IsKdbx4())
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}
	h.RawData = buf.Bytes()

	if err := h.FileHeaders.validate(h.IsKdbx4()); err != nil {
		return nil, err
	}
	return h, nil
}

// readField reads one TLV record. KDBX3 uses a u16 length, KDBX4 a u32
// length; everything else about the framing is identical.
func (fh *FileHeaders) readField(r io.Reader, kdbx4 bool) (done bool, err error) {
	var id uint8
	if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
		return false, fmt.Errorf("kdbx: reading header field id: %w", err)
	}

	var length uint32
	if kdbx4 {
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return false, fmt.Errorf("kdbx: reading header field length: %w", err)
		}
	} else {
		var l16 uint16
		if err := binary.Read(r, binary.LittleEndian, &l16); err != nil {
			return false, fmt.Errorf("kdbx: reading header field length: %w", err)
		}
		length = uint32(l16)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return false, ErrMalformedHeader{Reason: fmt.Sprintf("truncated header field %d", id)}
	}

	if id == 0 {
		return true, nil
	}
	return false, fh.setField(id, data)
}

func (fh *FileHeaders) setField(id uint8, data []byte) error {
	switch id {
	case fieldComment:
		fh.Comment = data
	case fieldCipherID:
		if len(data) != 16 {
			return ErrMalformedHeader{Reason: "CipherID is not 16 bytes"}
		}
		copy(fh.CipherID[:], data)
	case fieldCompressionFlags:
		if len(data) != 4 {
			return ErrMalformedHeader{Reason: "CompressionFlags is not 4 bytes"}
		}
		fh.CompressionFlags = binary.LittleEndian.Uint32(data)
	case fieldMasterSeed:
		fh.MasterSeed = data
	case fieldTransformSeed:
		fh.TransformSeed = data
	case fieldTransformRounds:
		if len(data) != 8 {
			return ErrMalformedHeader{Reason: "TransformRounds is not 8 bytes"}
		}
		fh.TransformRounds = binary.LittleEndian.Uint64(data)
	case fieldEncryptionIV:
		fh.EncryptionIV = data
	case fieldProtectedStreamKey:
		fh.ProtectedStreamKey = data
	case fieldStreamStartBytes:
		fh.StreamStartBytes = data
	case fieldInnerRandomStreamID:
		if len(data) != 4 {
			return ErrMalformedHeader{Reason: "InnerRandomStreamID is not 4 bytes"}
		}
		fh.InnerRandomStreamID = binary.LittleEndian.Uint32(data)
	case fieldKdfParameters:
		params, err := readKdfParameters(data)
		if err != nil {
			return err
		}
		fh.KdfParameters = params
	case fieldPublicCustomData:
		vd, err := readVariantDictionary(data)
		if err != nil {
			return err
		}
		fh.PublicCustomData = vd
	default:
		return ErrMalformedHeader{Reason: fmt.Sprintf("unknown header field id %d", id)}
	}
	return nil
}

// validate enforces the required-field set for the file's format version.
func (fh *FileHeaders) validate(kdbx4 bool) error {
	if fh.CipherID.IsZero() {
		return ErrMissingHeaderField("CipherID")
	}
	if len(fh.MasterSeed) == 0 {
		return ErrMissingHeaderField("MasterSeed")
	}
	if len(fh.EncryptionIV) == 0 {
		return ErrMissingHeaderField("EncryptionIV")
	}
	if fh.CompressionFlags > CompressionGzip {
		return ErrMalformedHeader{Reason: fmt.Sprintf("reserved compression flag value %d", fh.CompressionFlags)}
	}
	if kdbx4 {
		if fh.KdfParameters == nil {
			return ErrMissingHeaderField("KdfParameters")
		}
	} else {
		if len(fh.TransformSeed) == 0 {
			return ErrMissingHeaderField("TransformSeed")
		}
		if len(fh.ProtectedStreamKey) == 0 {
			return ErrMissingHeaderField("ProtectedStreamKey")
		}
		if len(fh.StreamStartBytes) == 0 {
			return ErrMissingHeaderField("StreamStartBytes")
		}
	}
	return nil
}

func readKdfParameters(data []byte) (*KdfParameters, error) {
	vd, err := readVariantDictionary(data)
	if err != nil {
		return nil, err
	}
	p := &KdfParameters{
		Rounds:      vd.Uint64("R"),
		Parallelism: vd.Uint32("P"),
		Memory:      vd.Uint64("M"),
		Iterations:  vd.Uint64("I"),
		Version:     vd.Uint32("V"),
		SecretKey:   vd.Bytes("K"),
		AssocData:   vd.Bytes("A"),
		Salt:        vd.Bytes("S"),
	}
	uuidBytes := vd.Bytes("$UUID")
	if len(uuidBytes) != 16 {
		return nil, ErrMalformedHeader{Reason: "KdfParameters $UUID is not 16 bytes"}
	}
	copy(p.UUID[:], uuidBytes)
	return p, nil
}

func (p *KdfParameters) toVariantDictionary() *VariantDictionary {
	vd := &VariantDictionary{Version: 0x0100}
	vd.SetBytes("$UUID", p.UUID[:])
	if p.Rounds > 0 {
		vd.SetUint64("R", p.Rounds)
	}
	if p.Version > 0 {
		vd.SetUint32("V", p.Version)
	}
	if p.Iterations > 0 {
		vd.SetUint64("I", p.Iterations)
	}
	if p.Memory > 0 {
		vd.SetUint64("M", p.Memory)
	}
	if p.Parallelism > 0 {
		vd.SetUint32("P", p.Parallelism)
	}
	if len(p.Salt) > 0 {
		vd.SetBytes("S", p.Salt)
	}
	if len(p.SecretKey) > 0 {
		vd.SetBytes("K", p.SecretKey)
	}
	if len(p.AssocData) > 0 {
		vd.SetBytes("A", p.AssocData)
	}
	return vd
}

// writeTo serializes the signature and file headers, updating RawData to
// the bytes actually written so GetSha256/GetHmacSha256 see what's on disk.
func (h *DBHeader) writeTo(w io.Writer) error {
	var buf bytes.Buffer
	mw := io.MultiWriter(w, &buf)

	if err := h.Signature.writeTo(mw); err != nil {
		return err
	}
	if h.IsKdbx4() {
		if err := h.FileHeaders.writeTo4(mw); err != nil {
			return err
		}
	} else {
		if err := h.FileHeaders.writeTo31(mw); err != nil {
			return err
		}
	}

	h.RawData = buf.Bytes()
	return nil
}

func (fh *FileHeaders) writeTo4(w io.Writer) error {
	compression := make([]byte, 4)
	binary.LittleEndian.PutUint32(compression, fh.CompressionFlags)

	fields := []struct {
		id   uint8
		data []byte
	}{
		{fieldComment, fh.Comment},
		{fieldCipherID, fh.CipherID[:]},
		{fieldCompressionFlags, compression},
		{fieldMasterSeed, fh.MasterSeed},
		{fieldEncryptionIV, fh.EncryptionIV},
	}
	for _, f := range fields {
		if err := writeField4(w, f.id, f.data); err != nil {
			return err
		}
	}

	var kdfBuf bytes.Buffer
	if err := fh.KdfParameters.toVariantDictionary().writeTo(&kdfBuf); err != nil {
		return err
	}
	if err := writeField4(w, fieldKdfParameters, kdfBuf.Bytes()); err != nil {
		return err
	}

	if fh.PublicCustomData != nil {
		var pcdBuf bytes.Buffer
		if err := fh.PublicCustomData.writeTo(&pcdBuf); err != nil {
			return err
		}
		if err := writeField4(w, fieldPublicCustomData, pcdBuf.Bytes()); err != nil {
			return err
		}
	}

	return writeField4(w, 0, []byte{0x0D, 0x0A, 0x0D, 0x0A})
}

func writeField4(w io.Writer, id uint8, data []byte) error {
	if len(data) == 0 && id != 0 {
		return nil
	}
	if err := binary.Write(w, binary.LittleEndian, id); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, data)
}

func (fh *FileHeaders) writeTo31(w io.Writer) error {
	compression := make([]byte, 4)
	binary.LittleEndian.PutUint32(compression, fh.CompressionFlags)

	rounds := make([]byte, 8)
	binary.LittleEndian.PutUint64(rounds, fh.TransformRounds)

	streamID := make([]byte, 4)
	binary.LittleEndian.PutUint32(streamID, fh.InnerRandomStreamID)

	fields := []struct {
		id   uint8
		data []byte
	}{
		{fieldComment, fh.Comment},
		{fieldCipherID, fh.CipherID[:]},
		{fieldCompressionFlags, compression},
		{fieldMasterSeed, fh.MasterSeed},
		{fieldTransformSeed, fh.TransformSeed},
		{fieldTransformRounds, rounds},
		{fieldEncryptionIV, fh.EncryptionIV},
		{fieldProtectedStreamKey, fh.ProtectedStreamKey},
		{fieldStreamStartBytes, fh.StreamStartBytes},
		{fieldInnerRandomStreamID, streamID},
	}
	for _, f := range fields {
		if err := writeField31(w, f.id, f.data); err != nil {
			return err
		}
	}
	return writeField31(w, 0, []byte{0x0D, 0x0A, 0x0D, 0x0A})
}

func writeField31(w io.Writer, id uint8, data []byte) error {
	if len(data) == 0 && id != 0 {
		return nil
	}
	if err := binary.Write(w, binary.LittleEndian, id); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(data))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, data)
}

// GetSha256 hashes the raw header bytes captured during read/write.
func (h *DBHeader) GetSha256() [32]byte {
	return sha256.Sum256(h.RawData)
}

// ValidateSha256 reports an IntegrityHeaderSha256 error if hash doesn't
// match the header's current raw bytes. This check never depends on key
// material, so any mismatch means corruption, not a wrong password.
func (h *DBHeader) ValidateSha256(hash [32]byte) error {
	got := h.GetSha256()
	if subtle.ConstantTimeCompare(got[:], hash[:]) == 0 {
		return ErrIntegrityCheckFailed{Kind: IntegrityHeaderSha256}
	}
	return nil
}

// GetHmacSha256 computes the header HMAC under hmacKey (normally the
// block-index-0xFFFFFFFFFFFFFFFF HMAC key, see blocks.go).
func (h *DBHeader) GetHmacSha256(hmacKey []byte) [32]byte {
	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(h.RawData)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// ValidateHmacSha256 reports an IntegrityHeaderHmac error, with WrongKey set,
// if hash doesn't match: this is the first authenticated check performed
// after key derivation, so a mismatch here means the credentials are wrong.
func (h *DBHeader) ValidateHmacSha256(hmacKey []byte, hash [32]byte) error {
	got := h.GetHmacSha256(hmacKey)
	if subtle.ConstantTimeCompare(got[:], hash[:]) == 0 {
		return ErrIntegrityCheckFailed{Kind: IntegrityHeaderHmac, WrongKey: true}
	}
	return nil
}

// DBHashes carries the SHA-256 and HMAC-SHA-256 of the header that
// immediately follow it on disk in a KDBX4 file (KDBX3 has no such block;
// its header hash is stored inside the encrypted document as
// Meta/HeaderHash).
type DBHashes struct {
	Sha256 [32]byte
	Hmac   [32]byte
}

func readHashes(r io.Reader) (*DBHashes, error) {
	h := new(DBHashes)
	if err := binary.Read(r, binary.LittleEndian, &h.Sha256); err != nil {
		return nil, fmt.Errorf("kdbx: reading header sha256: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.Hmac); err != nil {
		return nil, fmt.Errorf("kdbx: reading header hmac: %w", err)
	}
	return h, nil
}

func (h *DBHashes) writeTo(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, h.Sha256); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, h.Hmac)
}
