package kdbx

import (
	"crypto/aes"
	"crypto/sha256"
	"fmt"

	"github.com/aead/argon2"
	xargon2 "golang.org/x/crypto/argon2"
)

// deriveTransformedKey runs the composite key through the database's
// configured KDF, yielding the 32-byte transformed key that buildMasterKey
// and buildHmacKey then seed with the header's MasterSeed.
func deriveTransformedKey(compositeKey []byte, params *KdfParameters) ([]byte, error) {
	switch {
	case params.UUID == KdfAES3 || params.UUID == KdfAES4:
		return aesKDF(compositeKey, params.Salt, params.Rounds)
	case params.UUID == KdfArgon2d:
		return argon2dKDF(compositeKey, params)
	case params.UUID == KdfArgon2id:
		return argon2idKDF(compositeKey, params)
	default:
		return nil, ErrUnsupportedKdf(params.UUID[:])
	}
}

// aesKDF implements the legacy AES-based KDF: the composite key is treated
// as two 16-byte AES blocks, each independently re-encrypted under a
// cipher keyed with the KDF seed, Rounds times, then hashed down to 32
// bytes with SHA-256.
func aesKDF(compositeKey, seed []byte, rounds uint64) ([]byte, error) {
	if len(compositeKey) != 32 {
		return nil, fmt.Errorf("kdbx: aes-kdf: composite key must be 32 bytes, got %d", len(compositeKey))
	}
	block, err := aes.NewCipher(seed)
	if err != nil {
		return nil, fmt.Errorf("kdbx: aes-kdf: %w", err)
	}

	transformed := make([]byte, 32)
	copy(transformed, compositeKey)

	for i := uint64(0); i < rounds; i++ {
		block.Encrypt(transformed[:16], transformed[:16])
		block.Encrypt(transformed[16:], transformed[16:])
	}

	hash := sha256.Sum256(transformed)
	return hash[:], nil
}

// validateArgon2Params rejects a parameter block the format forbids: the
// argon2 version field must be 0x13, and the cost parameters must all be
// present.
func validateArgon2Params(variant string, params *KdfParameters) error {
	if params.Version != 0x13 {
		return fmt.Errorf("kdbx: %s: unsupported argon2 version 0x%x", variant, params.Version)
	}
	if params.Memory == 0 || params.Iterations == 0 || params.Parallelism == 0 {
		return fmt.Errorf("kdbx: %s: missing memory/iterations/parallelism parameter", variant)
	}
	return nil
}

// argon2dKDF derives the transformed key with Argon2d, the original KDBX4
// default. aead/argon2 is the only pack example that ships an Argon2d
// implementation; x/crypto only offers Argon2i/Argon2id.
func argon2dKDF(compositeKey []byte, params *KdfParameters) ([]byte, error) {
	if err := validateArgon2Params("argon2d", params); err != nil {
		return nil, err
	}
	key := argon2.Key2d(
		compositeKey,
		params.Salt,
		uint32(params.Iterations),
		uint32(params.Memory/1024),
		uint8(params.Parallelism),
		32,
	)
	return key, nil
}

// argon2idKDF derives the transformed key with Argon2id, the KDBX4 default
// since KeePass 2.39. x/crypto/argon2 ships this variant natively.
func argon2idKDF(compositeKey []byte, params *KdfParameters) ([]byte, error) {
	if err := validateArgon2Params("argon2id", params); err != nil {
		return nil, err
	}
	key := xargon2.IDKey(
		compositeKey,
		params.Salt,
		uint32(params.Iterations),
		uint32(params.Memory/1024),
		uint8(params.Parallelism),
		32,
	)
	return key, nil
}
