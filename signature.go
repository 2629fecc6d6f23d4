package kdbx

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
)

// BaseSignature and SecondarySignature together form the eight magic bytes
// that open every KDBX file.
var (
	BaseSignature      = [4]byte{0x03, 0xD9, 0xA2, 0x9A}
	SecondarySignature = [4]byte{0x67, 0xFB, 0x4B, 0xB5}
)

// Compression flag values (spec §6). Anything else is MalformedHeader.
const (
	CompressionNone uint32 = 0
	CompressionGzip uint32 = 1
)

// Cipher UUIDs selecting the outer body cipher (spec §6).
var (
	CipherAES128   = mustUUIDHex("61ab05a1946441c38d743a563df8dd35")
	CipherAES256   = mustUUIDHex("31c1f2e6bf714350be5805216afc5aff")
	CipherTwoFish  = mustUUIDHex("ad68f29f576f4bb9a36ad47af965346c")
	CipherChaCha20 = mustUUIDHex("d6038a2b8b6f4cb5a524339a31dbb59a")
)

// KDF UUIDs selecting the key-derivation function (spec §6).
var (
	KdfAES3     = mustUUIDHex("c9d9f39a628a4460bf740d08c18a4fea")
	KdfAES4     = mustUUIDHex("7c02bb8279a74ac0927d114a00648238")
	KdfArgon2d  = mustUUIDHex("ef636ddf8c29444b91f7a9a403e30a0c")
	KdfArgon2id = mustUUIDHex("9e298b1956db4773b23dfc3ec6f0a1e6")
)

func mustUUIDHex(h string) UUID {
	var u UUID
	decoded, err := hex.DecodeString(h)
	if err != nil || len(decoded) != 16 {
		panic("kdbx: invalid built-in UUID constant " + h)
	}
	copy(u[:], decoded)
	return u
}

// CipherName renders a body cipher UUID for diagnostics, falling back to
// hex for unknown values.
func CipherName(u UUID) string {
	switch u {
	case CipherAES128:
		return "AES-128-CBC"
	case CipherAES256:
		return "AES-256-CBC"
	case CipherTwoFish:
		return "TwoFish-CBC"
	case CipherChaCha20:
		return "ChaCha20"
	default:
		return u.String()
	}
}

// KdfName renders a KDF UUID for diagnostics, falling back to hex for
// unknown values.
func KdfName(u UUID) string {
	switch u {
	case KdfAES3:
		return "AES-KDF (KDBX 3.1)"
	case KdfAES4:
		return "AES-KDF (KDBX 4)"
	case KdfArgon2d:
		return "Argon2d"
	case KdfArgon2id:
		return "Argon2id"
	default:
		return u.String()
	}
}

// Signature is the 12-byte file preamble: the two fixed magic words
// followed by minor/major version (both little-endian u16).
type Signature struct {
	Base         [4]byte
	Secondary    [4]byte
	MinorVersion uint16
	MajorVersion uint16
}

func readSignature(r io.Reader) (*Signature, error) {
	var sig Signature
	if err := binary.Read(r, binary.LittleEndian, &sig); err != nil {
		return nil, fmt.Errorf("kdbx: reading signature: %w", err)
	}
	if sig.Base != BaseSignature {
		return nil, ErrInvalidSignature{Name: "BaseSignature", Is: sig.Base, Shouldbe: BaseSignature}
	}
	if sig.Secondary != SecondarySignature {
		return nil, ErrInvalidSignature{Name: "SecondarySignature", Is: sig.Secondary, Shouldbe: SecondarySignature}
	}
	if sig.MajorVersion != 3 && sig.MajorVersion != 4 {
		return nil, ErrUnsupportedVersion{Major: sig.MajorVersion, Minor: sig.MinorVersion}
	}
	return &sig, nil
}

func (s Signature) writeTo(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, s)
}

// IsKdbx4 reports whether this signature identifies a KDBX4 file.
func (s Signature) IsKdbx4() bool {
	return s.MajorVersion == 4
}

func (s Signature) String() string {
	return fmt.Sprintf("KDBX %d.%d", s.MajorVersion, s.MinorVersion)
}

// DefaultSignatureV3 is used by NewKDBX3Header.
var DefaultSignatureV3 = Signature{Base: BaseSignature, Secondary: SecondarySignature, MinorVersion: 1, MajorVersion: 3}

// DefaultSignatureV4 is used by NewKDBX4Header.
var DefaultSignatureV4 = Signature{Base: BaseSignature, Secondary: SecondarySignature, MinorVersion: 0, MajorVersion: 4}
