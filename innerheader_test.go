package kdbx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInnerHeaderRoundTrip(t *testing.T) {
	in := &InnerHeader{
		InnerRandomStreamID:  StreamChaCha20,
		InnerRandomStreamKey: bytes.Repeat([]byte{0x7E}, 64),
		Binaries: []InnerBinary{
			{Protected: true, Content: []byte("attachment one")},
			{Protected: false, Content: []byte("attachment two")},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, in.writeTo(&buf))

	out, err := readInnerHeader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, in.InnerRandomStreamID, out.InnerRandomStreamID)
	assert.Equal(t, in.InnerRandomStreamKey, out.InnerRandomStreamKey)
	require.Len(t, out.Binaries, 2)
	assert.True(t, out.Binaries[0].Protected)
	assert.Equal(t, []byte("attachment one"), out.Binaries[0].Content)
	assert.False(t, out.Binaries[1].Protected)
	assert.Equal(t, []byte("attachment two"), out.Binaries[1].Content)
}

func TestInnerHeaderLeavesTrailingBytes(t *testing.T) {
	in := &InnerHeader{
		InnerRandomStreamID:  StreamChaCha20,
		InnerRandomStreamKey: bytes.Repeat([]byte{0x11}, 64),
	}

	var buf bytes.Buffer
	require.NoError(t, in.writeTo(&buf))
	buf.WriteString("<KeePassFile/>")

	r := bytes.NewReader(buf.Bytes())
	_, err := readInnerHeader(r)
	require.NoError(t, err)

	// The XML document that follows must remain unread.
	rest := make([]byte, r.Len())
	r.Read(rest)
	assert.Equal(t, "<KeePassFile/>", string(rest))
}

func TestInnerHeaderRejectsUnknownField(t *testing.T) {
	raw := []byte{0x09, 0x00, 0x00, 0x00, 0x00}
	_, err := readInnerHeader(bytes.NewReader(raw))
	assert.ErrorAs(t, err, new(ErrMalformedHeader))
}
