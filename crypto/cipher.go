// Package crypto implements the block- and stream-cipher plumbing KDBX
// needs: the outer body cipher (AES-CBC, TwoFish-CBC, ChaCha20) and the
// inner protected-value stream cipher (ChaCha20, Salsa20, ArcFourVariant).
// Both families are exposed behind the same two small interfaces so the
// container driver and the XML codec never special-case a cipher by
// identity once the instance is built — dispatch by UUID happens once, at
// construction, in the caller.
package crypto

// BodyCipher encrypts/decrypts the outer container's block-wise payload.
type BodyCipher interface {
	Encrypt(data []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

// StreamCipher packs/unpacks individual protected values inside the inner
// XML document. Unlike BodyCipher it is stateful: successive calls advance
// a running keystream, so protected values must be processed in document
// order on both read and write.
type StreamCipher interface {
	Unpack(ciphertext []byte) []byte
	Pack(plaintext []byte) []byte
}
