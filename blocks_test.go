package kdbx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBaseKey() []byte {
	return bytes.Repeat([]byte{0xA5}, 64)
}

func TestBlocksV4RoundTrip(t *testing.T) {
	sizes := []int{0, 1, 10, 4096, blockSplitRate, blockSplitRate + 1}
	for _, size := range sizes {
		plaintext := bytes.Repeat([]byte{0x5C}, size)

		var buf bytes.Buffer
		require.NoError(t, composeBlocksV4(&buf, plaintext, testBaseKey()))

		out, err := decomposeBlocksV4(bytes.NewReader(buf.Bytes()), testBaseKey())
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, plaintext, out, "size %d", size)
	}
}

func TestBlocksV4TamperDetected(t *testing.T) {
	plaintext := []byte("attack at dawn")

	var buf bytes.Buffer
	require.NoError(t, composeBlocksV4(&buf, plaintext, testBaseKey()))

	// First data byte of block 0 lives right after its 32-byte HMAC and
	// 4-byte length.
	raw := buf.Bytes()
	raw[36] ^= 0x01

	_, err := decomposeBlocksV4(bytes.NewReader(raw), testBaseKey())
	var integrity ErrIntegrityCheckFailed
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, IntegrityBodyBlock, integrity.Kind)
	assert.Equal(t, int64(0), integrity.Index)
}

func TestBlocksV4SecondBlockTamperReportsIndex(t *testing.T) {
	plaintext := bytes.Repeat([]byte{0x11}, blockSplitRate+100)

	var buf bytes.Buffer
	require.NoError(t, composeBlocksV4(&buf, plaintext, testBaseKey()))

	// Flip a byte inside block 1's data region.
	raw := buf.Bytes()
	block1Data := 36 + blockSplitRate + 36
	raw[block1Data] ^= 0x01

	_, err := decomposeBlocksV4(bytes.NewReader(raw), testBaseKey())
	var integrity ErrIntegrityCheckFailed
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, int64(1), integrity.Index)
}

func TestBlocksV4WrongBaseKey(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, composeBlocksV4(&buf, []byte("payload"), testBaseKey()))

	_, err := decomposeBlocksV4(bytes.NewReader(buf.Bytes()), bytes.Repeat([]byte{0x77}, 64))
	var integrity ErrIntegrityCheckFailed
	assert.ErrorAs(t, err, &integrity)
}

func TestBlocksV4Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, composeBlocksV4(&buf, []byte("payload"), testBaseKey()))

	_, err := decomposeBlocksV4(bytes.NewReader(buf.Bytes()[:20]), testBaseKey())
	assert.ErrorAs(t, err, new(ErrMalformedHeader))
}

func TestBlocksV3RoundTrip(t *testing.T) {
	sizes := []int{0, 1, 10, 4096, blockSplitRate, blockSplitRate + 1}
	for _, size := range sizes {
		plaintext := bytes.Repeat([]byte{0x3E}, size)

		var buf bytes.Buffer
		require.NoError(t, composeBlocksV3(&buf, plaintext))

		out, err := decomposeBlocksV3(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err, "size %d", size)
		assert.Equal(t, plaintext, out, "size %d", size)
	}
}

func TestBlocksV3TamperDetected(t *testing.T) {
	plaintext := []byte("attack at dawn")

	var buf bytes.Buffer
	require.NoError(t, composeBlocksV3(&buf, plaintext))

	// First data byte of block 0 follows its index, hash and length.
	raw := buf.Bytes()
	raw[40] ^= 0x01

	_, err := decomposeBlocksV3(bytes.NewReader(raw))
	var integrity ErrIntegrityCheckFailed
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, IntegrityBodyBlock, integrity.Kind)
}
