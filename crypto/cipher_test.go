package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(n int) []byte {
	key := make([]byte, n)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

func TestAESCBCRoundTrip(t *testing.T) {
	for _, keyLen := range []int{16, 32} {
		c, err := NewAESCBC(testKey(keyLen), testKey(16))
		require.NoError(t, err)

		plaintext := []byte("inner document payload")
		ciphertext, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)
		assert.Zero(t, len(ciphertext)%16)

		out, err := c.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, out)
	}
}

func TestAESCBCPadsExactBlockSize(t *testing.T) {
	c, err := NewAESCBC(testKey(32), testKey(16))
	require.NoError(t, err)

	plaintext := bytes.Repeat([]byte{0x10}, 16)
	ciphertext, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	// A full padding block is appended when data lands on a boundary.
	assert.Len(t, ciphertext, 32)

	out, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, out)
}

func TestAESCBCDecryptRejectsPartialBlock(t *testing.T) {
	c, err := NewAESCBC(testKey(32), testKey(16))
	require.NoError(t, err)

	_, err = c.Decrypt([]byte("short"))
	assert.Error(t, err)
	_, err = c.Decrypt(nil)
	assert.Error(t, err)
}

func TestPkcs7Unpad(t *testing.T) {
	out, err := pkcs7Unpad(append([]byte("abc"), bytes.Repeat([]byte{13}, 13)...), 16)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out)

	// Padding byte of zero.
	_, err = pkcs7Unpad(append(bytes.Repeat([]byte{0x01}, 15), 0x00), 16)
	assert.Error(t, err)

	// Padding byte larger than the block size.
	_, err = pkcs7Unpad(append(bytes.Repeat([]byte{0x01}, 15), 0x20), 16)
	assert.Error(t, err)

	// Inconsistent padding bytes.
	corrupt := append(bytes.Repeat([]byte{0x01}, 13), 0x02, 0x03, 0x03)
	_, err = pkcs7Unpad(corrupt, 16)
	assert.Error(t, err)
}

func TestTwoFishCBCRoundTrip(t *testing.T) {
	c, err := NewTwoFishCBC(testKey(32), testKey(16))
	require.NoError(t, err)

	plaintext := []byte("twofish payload, longer than one block at least")
	ciphertext, err := c.Encrypt(plaintext)
	require.NoError(t, err)

	out, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, out)
}

func TestChaCha20BodyRoundTrip(t *testing.T) {
	c, err := NewChaCha20Body(testKey(32), testKey(12))
	require.NoError(t, err)

	plaintext := []byte("stream cipher body, no padding involved")
	ciphertext, err := c.Encrypt(plaintext)
	require.NoError(t, err)
	assert.Len(t, ciphertext, len(plaintext))
	assert.NotEqual(t, plaintext, ciphertext)

	out, err := c.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, out)
}

func TestChaCha20BodyRejectsBadIV(t *testing.T) {
	_, err := NewChaCha20Body(testKey(32), testKey(7))
	assert.Error(t, err)
}

// streamFactory builds a fresh StreamCipher with identical key material, so
// tests can encrypt with one instance and decrypt with another the way a
// save/open cycle does.
type streamFactory func() StreamCipher

func testStreamCipher(t *testing.T, name string, newStream streamFactory) {
	t.Run(name+"/inverse", func(t *testing.T) {
		enc := newStream()
		dec := newStream()

		values := [][]byte{[]byte("first secret"), []byte("second"), []byte(""), []byte("third value, a bit longer than the rest")}
		for _, v := range values {
			ciphertext := enc.Pack(v)
			assert.Equal(t, v, dec.Unpack(ciphertext))
		}
	})

	t.Run(name+"/continuity", func(t *testing.T) {
		split := newStream()
		joined := newStream()

		a := split.Pack([]byte("abc"))
		b := split.Pack([]byte("defghi"))
		whole := joined.Pack([]byte("abcdefghi"))

		assert.Equal(t, whole, append(append([]byte{}, a...), b...))
	})
}

func TestChaCha20Stream(t *testing.T) {
	key := testKey(64)
	testStreamCipher(t, "chacha20", func() StreamCipher {
		s, err := NewChaCha20Stream(key)
		require.NoError(t, err)
		return s
	})
}

func TestSalsa20Stream(t *testing.T) {
	key := testKey(32)
	testStreamCipher(t, "salsa20", func() StreamCipher {
		s, err := NewSalsa20Stream(key)
		require.NoError(t, err)
		return s
	})
}

func TestArcFourStream(t *testing.T) {
	key := testKey(32)
	testStreamCipher(t, "arcfour", func() StreamCipher {
		s, err := NewArcFourStream(key)
		require.NoError(t, err)
		return s
	})
}
