package crypto

import (
	"crypto/sha256"
	"encoding/binary"
)

// salsaFixedNonce is the fixed 8-byte IV KDBX uses for the Salsa20 inner
// protected-value stream: E8 30 09 4B 97 20 5D 2A.
var salsaFixedNonce = []byte{0xE8, 0x30, 0x09, 0x4B, 0x97, 0x20, 0x5D, 0x2A}

// salsaSigma is the "expand 32-byte k" constant words used by Salsa20/20
// when keyed with a 256-bit key.
var salsaSigma = [4]uint32{0x61707865, 0x3320646e, 0x79622d32, 0x6b206574}

// Salsa20Stream implements StreamCipher for the legacy Salsa20 inner
// protected-value cipher. KDBX keys it with SHA-256(innerStreamKey) and the
// fixed nonce above, then draws a continuous keystream across however many
// Pack/Unpack calls the XML codec makes as it walks the document in order —
// behavior specific to this protocol, not provided by a generic Salsa20
// package, so the 20-round core is kept hand-written exactly as the
// reference implementation this module is grounded on expresses it.
type Salsa20Stream struct {
	state     [16]uint32
	block     [64]byte
	blockUsed int
	buffered  []byte
}

// NewSalsa20Stream derives the keystream state from innerStreamKey.
func NewSalsa20Stream(innerStreamKey []byte) (*Salsa20Stream, error) {
	hash := sha256.Sum256(innerStreamKey)
	s := &Salsa20Stream{blockUsed: 64}

	s.state[0] = salsaSigma[0]
	s.state[1] = le32(hash[:], 0)
	s.state[2] = le32(hash[:], 4)
	s.state[3] = le32(hash[:], 8)
	s.state[4] = le32(hash[:], 12)
	s.state[5] = salsaSigma[1]
	s.state[6] = le32(salsaFixedNonce, 0)
	s.state[7] = le32(salsaFixedNonce, 4)
	s.state[8] = 0
	s.state[9] = 0
	s.state[10] = salsaSigma[2]
	s.state[11] = le32(hash[:], 16)
	s.state[12] = le32(hash[:], 20)
	s.state[13] = le32(hash[:], 24)
	s.state[14] = le32(hash[:], 28)
	s.state[15] = salsaSigma[3]

	return s, nil
}

// Unpack XORs ciphertext against the next portion of the keystream.
func (s *Salsa20Stream) Unpack(ciphertext []byte) []byte {
	out := make([]byte, len(ciphertext))
	keystream := s.fetch(len(ciphertext))
	for i := range out {
		out[i] = ciphertext[i] ^ keystream[i]
	}
	return out
}

// Pack XORs plaintext against the next portion of the keystream.
func (s *Salsa20Stream) Pack(plaintext []byte) []byte {
	return s.Unpack(plaintext)
}

func (s *Salsa20Stream) fetch(n int) []byte {
	for n > len(s.buffered) {
		s.buffered = append(s.buffered, s.nextBytes(64)...)
	}
	out := s.buffered[:n]
	s.buffered = s.buffered[n:]
	return out
}

func (s *Salsa20Stream) nextBytes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		if s.blockUsed == 64 {
			s.generateBlock()
			s.blockUsed = 0
		}
		out[i] = s.block[s.blockUsed]
		s.blockUsed++
	}
	return out
}

func (s *Salsa20Stream) generateBlock() {
	var x [16]uint32
	copy(x[:], s.state[:])

	for i := 0; i < 10; i++ {
		quarterRound(&x, 0, 4, 8, 12)
		quarterRound(&x, 5, 9, 13, 1)
		quarterRound(&x, 10, 14, 2, 6)
		quarterRound(&x, 15, 3, 7, 11)
		quarterRound(&x, 0, 1, 2, 3)
		quarterRound(&x, 5, 6, 7, 4)
		quarterRound(&x, 10, 11, 8, 9)
		quarterRound(&x, 15, 12, 13, 14)
	}

	for i := 0; i < 16; i++ {
		x[i] += s.state[i]
		binary.LittleEndian.PutUint32(s.block[i*4:], x[i])
	}

	s.state[8]++
	if s.state[8] == 0 {
		s.state[9]++
	}
}

// quarterRound applies one Salsa20 column/row quarter-round: x[b] ^= rotl(x[a]+x[d], 7), etc.
func quarterRound(x *[16]uint32, a, b, c, d int) {
	x[b] ^= rotl32(x[a]+x[d], 7)
	x[c] ^= rotl32(x[b]+x[a], 9)
	x[d] ^= rotl32(x[c]+x[b], 13)
	x[a] ^= rotl32(x[d]+x[c], 18)
}

func rotl32(x uint32, n uint) uint32 {
	return (x << n) | (x >> (32 - n))
}

func le32(b []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(b[i:])
}
