package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// AESCBC implements BodyCipher for AES-128 and AES-256 in CBC mode with
// PKCS#7 padding, selected by key length (16 or 32 bytes).
type AESCBC struct {
	block cipher.Block
	iv    []byte
}

// NewAESCBC builds an AES-CBC body cipher from the derived cipher key and
// the header's EncryptionIV.
func NewAESCBC(key, iv []byte) (*AESCBC, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("kdbx/crypto: aes: %w", err)
	}
	return &AESCBC{block: block, iv: iv}, nil
}

// Encrypt pads data with PKCS#7 to a block boundary and CBC-encrypts it.
func (a *AESCBC) Encrypt(data []byte) ([]byte, error) {
	padded := pkcs7Pad(data, a.block.BlockSize())
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(a.block, a.iv).CryptBlocks(out, padded)
	return out, nil
}

// Decrypt CBC-decrypts data and strips its PKCS#7 padding.
func (a *AESCBC) Decrypt(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%a.block.BlockSize() != 0 {
		return nil, fmt.Errorf("kdbx/crypto: aes: ciphertext is not a multiple of the block size")
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(a.block, a.iv).CryptBlocks(out, data)
	return pkcs7Unpad(out, a.block.BlockSize())
}

// pkcs7Pad appends PKCS#7 padding, always adding at least one byte so the
// unpadder can find an unambiguous marker even when data already lands on
// a block boundary.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// pkcs7Unpad removes and validates PKCS#7 padding, reporting a crypto
// failure (rather than panicking or silently truncating) on a malformed
// trailer — the usual symptom of decrypting with the wrong key.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("kdbx/crypto: padded data is not a multiple of the block size")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("kdbx/crypto: invalid PKCS#7 padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("kdbx/crypto: invalid PKCS#7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}
