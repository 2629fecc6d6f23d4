package kdbx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	w "github.com/kdbxgo/kdbx/wrappers"
)

func TestBinariesAddAndFind(t *testing.T) {
	var pool Binaries

	first, err := pool.Add([]byte("first attachment"))
	require.NoError(t, err)
	second, err := pool.Add([]byte("second attachment"))
	require.NoError(t, err)

	assert.Equal(t, 0, first.ID)
	assert.Equal(t, 1, second.ID)

	found := pool.Find(1)
	require.NotNil(t, found)
	content, err := found.GetContentBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("second attachment"), content)

	assert.Nil(t, pool.Find(99))
}

func TestBinaryCompressedRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("compressible "), 200)

	b := Binary{Compressed: w.NewBoolWrapper(true)}
	require.NoError(t, b.SetContent(payload))
	// gzip+base64 of repetitive data still beats the raw size.
	assert.Less(t, len(b.Content), len(payload))

	out, err := b.GetContentBytes()
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestBinaryUncompressedRoundTrip(t *testing.T) {
	b := Binary{}
	require.NoError(t, b.SetContent([]byte("plain bytes")))

	out, err := b.GetContentBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("plain bytes"), out)
}

func TestBinaryReference(t *testing.T) {
	var pool Binaries
	bin, err := pool.Add([]byte("payload"))
	require.NoError(t, err)

	ref := bin.CreateReference("setup.exe")
	assert.Equal(t, "setup.exe", ref.Name)
	assert.Equal(t, bin.ID, ref.Value.ID)
}

func TestBinaryReferenceResolvesPerVersion(t *testing.T) {
	ref := BinaryReference{}
	ref.Value.ID = 0

	v4 := NewDatabase(WithKDBX4())
	v4.Content.InnerHeader.Binaries = []InnerBinary{{Content: []byte("inner pool data")}}
	found := ref.Find(v4)
	require.NotNil(t, found)
	assert.Equal(t, []byte("inner pool data"), found.Content)

	v3 := NewDatabase(WithKDBX3())
	bin, err := v3.Content.Meta.Binaries.Add([]byte("meta pool data"))
	require.NoError(t, err)
	found = ref.Find(v3)
	require.NotNil(t, found)
	assert.Equal(t, bin.ID, found.ID)
}
