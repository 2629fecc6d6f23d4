package kdbx

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"regexp"
)

// Credentials holds the hashed components of a composite key: password,
// key file, and (for parity with environments that support it) a Windows
// user-account secret. Passphrase holds SHA-256 of the password. KeyFile
// holds the key as ParseKeyData returns it (the decoded XML payload or the
// file's first 32 bytes) and is not hashed, so a key file shorter than 32
// bytes contributes fewer bytes. Nil components are simply omitted from the
// composite key chain.
type Credentials struct {
	Passphrase []byte
	KeyFile    []byte
	Windows    []byte
}

// NewPasswordCredentials builds Credentials from a plaintext password.
func NewPasswordCredentials(password string) *Credentials {
	hashed := sha256.Sum256([]byte(password))
	return &Credentials{Passphrase: hashed[:]}
}

// NewKeyCredentials builds Credentials from a key file on disk.
func NewKeyCredentials(path string) (*Credentials, error) {
	key, err := ParseKeyFile(path)
	if err != nil {
		return nil, err
	}
	return &Credentials{KeyFile: key}, nil
}

// NewKeyDataCredentials builds Credentials from key file contents already
// read into memory.
func NewKeyDataCredentials(data []byte) (*Credentials, error) {
	key, err := ParseKeyData(data)
	if err != nil {
		return nil, err
	}
	return &Credentials{KeyFile: key}, nil
}

// NewPasswordAndKeyCredentials combines a password with a key file on disk.
func NewPasswordAndKeyCredentials(password, path string) (*Credentials, error) {
	key, err := ParseKeyFile(path)
	if err != nil {
		return nil, err
	}
	hashed := sha256.Sum256([]byte(password))
	return &Credentials{Passphrase: hashed[:], KeyFile: key}, nil
}

// NewPasswordAndKeyDataCredentials combines a password with key file
// contents already read into memory.
func NewPasswordAndKeyDataCredentials(password string, data []byte) (*Credentials, error) {
	key, err := ParseKeyData(data)
	if err != nil {
		return nil, err
	}
	hashed := sha256.Sum256([]byte(password))
	return &Credentials{Passphrase: hashed[:], KeyFile: key}, nil
}

// keyDataPattern extracts the base64 payload of an XML key-file's <Data>
// element; plain binary key files skip this step entirely.
var keyDataPattern = regexp.MustCompile(`<Data>(.+)</Data>`)

// ParseKeyFile reads a key file from disk and hashes it down via ParseKeyData.
func ParseKeyFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("kdbx: opening key file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("kdbx: reading key file: %w", err)
	}
	return ParseKeyData(data)
}

// ParseKeyData extracts the 32-byte key from raw key-file bytes. XML-format
// key files (KeePass's "<KeyFile><Key><Data>...") are unwrapped first; any
// other file is treated as raw binary and truncated/passed through as-is.
func ParseKeyData(data []byte) ([]byte, error) {
	if m := keyDataPattern.FindSubmatch(data); m != nil {
		decoded := make([]byte, base64.StdEncoding.DecodedLen(len(m[1])))
		n, err := base64.StdEncoding.Decode(decoded, m[1])
		if err != nil {
			return nil, fmt.Errorf("kdbx: decoding key file XML payload: %w", err)
		}
		data = decoded[:n]
	}

	if len(data) < 32 {
		return data, nil
	}
	return data[:32], nil
}

// buildCompositeKey chains whichever credential components are present
// through a single running SHA-256, in passphrase/keyfile/windows order.
func (c *Credentials) buildCompositeKey() []byte {
	h := sha256.New()
	if c.Passphrase != nil {
		h.Write(c.Passphrase)
	}
	if c.KeyFile != nil {
		h.Write(c.KeyFile)
	}
	if c.Windows != nil {
		h.Write(c.Windows)
	}
	return h.Sum(nil)
}

// buildMasterKey derives the final body-cipher key: SHA-256(masterSeed ||
// transformedKey).
func buildMasterKey(masterSeed, transformedKey []byte) []byte {
	h := sha256.New()
	h.Write(masterSeed)
	h.Write(transformedKey)
	return h.Sum(nil)
}

// buildHmacBaseKey derives the 64-byte base key every per-block HMAC key is
// drawn from: SHA-512(masterSeed || transformedKey || 0x01). The 0x01 suffix
// domain-separates this from buildMasterKey.
func buildHmacBaseKey(masterSeed, transformedKey []byte) []byte {
	h := sha512.New()
	h.Write(masterSeed)
	h.Write(transformedKey)
	h.Write([]byte{0x01})
	return h.Sum(nil)
}

// buildHmacKey derives the header HMAC key: the per-block key for the
// reserved block index 0xFFFFFFFFFFFFFFFF.
func buildHmacKey(masterSeed, transformedKey []byte) []byte {
	outer := sha512.New()
	outer.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	outer.Write(buildHmacBaseKey(masterSeed, transformedKey))
	return outer.Sum(nil)
}
