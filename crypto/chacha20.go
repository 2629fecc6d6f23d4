package crypto

import (
	"crypto/cipher"
	"crypto/sha512"
	"fmt"

	"github.com/aead/chacha20"
)

// ChaCha20Body implements BodyCipher for the outer container, using the
// 12-byte EncryptionIV directly as the RFC 7539 nonce with the counter
// starting at 0.
type ChaCha20Body struct {
	key, iv []byte
}

// NewChaCha20Body builds a ChaCha20 body cipher from the derived cipher
// key and the header's 12-byte EncryptionIV.
func NewChaCha20Body(key, iv []byte) (*ChaCha20Body, error) {
	if _, err := chacha20.NewCipher(iv, key); err != nil {
		return nil, fmt.Errorf("kdbx/crypto: chacha20: %w", err)
	}
	return &ChaCha20Body{key: key, iv: iv}, nil
}

// Encrypt and Decrypt are the same XOR operation; a fresh cipher.Stream is
// built per call since the body is always processed in one shot after
// block-envelope reassembly, never incrementally.
func (c *ChaCha20Body) Encrypt(data []byte) ([]byte, error) { return c.xor(data) }
func (c *ChaCha20Body) Decrypt(data []byte) ([]byte, error) { return c.xor(data) }

func (c *ChaCha20Body) xor(data []byte) ([]byte, error) {
	stream, err := chacha20.NewCipher(c.iv, c.key)
	if err != nil {
		return nil, fmt.Errorf("kdbx/crypto: chacha20: %w", err)
	}
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out, nil
}

// ChaCha20Stream implements StreamCipher for protected XML values. Per
// spec §4.9, the 64-byte inner stream key is split via SHA-512 into a
// 32-byte key and a 12-byte nonce (bytes 32..44 of the hash).
type ChaCha20Stream struct {
	cipher cipher.Stream
}

// NewChaCha20Stream derives the key/nonce pair from innerStreamKey and
// builds the running keystream used by Pack/Unpack.
func NewChaCha20Stream(innerStreamKey []byte) (*ChaCha20Stream, error) {
	hash := sha512.Sum512(innerStreamKey)
	c, err := chacha20.NewCipher(hash[32:44], hash[:32])
	if err != nil {
		return nil, fmt.Errorf("kdbx/crypto: chacha20 stream: %w", err)
	}
	return &ChaCha20Stream{cipher: c}, nil
}

// Unpack XORs ciphertext against the next portion of the keystream.
func (c *ChaCha20Stream) Unpack(ciphertext []byte) []byte {
	out := make([]byte, len(ciphertext))
	c.cipher.XORKeyStream(out, ciphertext)
	return out
}

// Pack XORs plaintext against the next portion of the keystream — XOR
// ciphers make Pack and Unpack the identical operation.
func (c *ChaCha20Stream) Pack(plaintext []byte) []byte {
	return c.Unpack(plaintext)
}
