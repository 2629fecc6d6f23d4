package kdbx

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	w "github.com/kdbxgo/kdbx/wrappers"
)

func protectedValue(content string) V {
	return V{Content: content, Protected: w.NewBoolWrapper(true)}
}

// fastKdfParameters shrinks the KDF work factor so the round-trip matrix
// stays fast; correctness doesn't depend on the work factor.
func fastKdfParameters(fh *FileHeaders, kdf UUID) {
	fh.KdfParameters.UUID = kdf
	switch kdf {
	case KdfAES3, KdfAES4:
		fh.KdfParameters.Rounds = 100
	default:
		fh.KdfParameters.Memory = 64 * 1024
		fh.KdfParameters.Iterations = 1
		fh.KdfParameters.Parallelism = 1
	}
}

func newTestDatabaseV4(cipher, kdf UUID) *Database {
	db := NewDatabase(WithKDBX4())
	fh := db.Header.FileHeaders
	fh.CipherID = cipher
	if cipher != CipherChaCha20 {
		fh.EncryptionIV = randomBytes(16)
	}
	fastKdfParameters(fh, kdf)
	fillTestContent(db)
	return db
}

func newTestDatabaseV3() *Database {
	db := NewDatabase(WithKDBX3())
	db.Header.FileHeaders.TransformRounds = 100
	fillTestContent(db)
	return db
}

func fillTestContent(db *Database) {
	db.Content.Meta.DatabaseName = "test database"

	root := NewGroup()
	root.Name = "Root"

	entry := NewEntry()
	entry.Values = append(entry.Values,
		ValueData{Key: "Title", Value: V{Content: "Example"}},
		ValueData{Key: "UserName", Value: V{Content: "User123"}},
		ValueData{Key: "URL", Value: V{Content: "https://example.com"}},
		ValueData{Key: "Password", Value: protectedValue("password1")},
	)

	second := NewEntry()
	second.Values = append(second.Values,
		ValueData{Key: "Title", Value: V{Content: "Second"}},
		ValueData{Key: "Password", Value: protectedValue("hunter2")},
		ValueData{Key: "Notes", Value: protectedValue("the notes are protected too")},
	)

	root.Entries = append(root.Entries, entry, second)
	db.Content.Root.Groups = []Group{root}
}

func encodeDecode(t *testing.T, db *Database, password string) *Database {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(db))

	out := NewDatabase()
	out.Credentials = NewPasswordCredentials(password)
	require.NoError(t, NewDecoder(bytes.NewReader(buf.Bytes())).Decode(out))
	require.NoError(t, out.UnlockProtectedEntries())
	return out
}

func assertTestContent(t *testing.T, db *Database) {
	t.Helper()

	root := FindGroupByName(db.Content.Root.Groups, "Root")
	require.NotNil(t, root)
	require.Len(t, root.Entries, 2)

	entry := FindEntryByTitle(db.Content.Root.Groups, "Example")
	require.NotNil(t, entry)
	assert.Equal(t, "User123", entry.GetUserName())
	assert.Equal(t, "https://example.com", entry.GetContent("URL"))
	assert.Equal(t, "password1", entry.GetPassword())

	second := FindEntryByTitle(db.Content.Root.Groups, "Second")
	require.NotNil(t, second)
	assert.Equal(t, "hunter2", second.GetPassword())
	assert.Equal(t, "the notes are protected too", second.GetContent("Notes"))
}

func TestRoundTripKDBX4Matrix(t *testing.T) {
	ciphers := map[string]UUID{
		"aes256":   CipherAES256,
		"chacha20": CipherChaCha20,
		"twofish":  CipherTwoFish,
	}
	kdfs := map[string]UUID{
		"argon2d":  KdfArgon2d,
		"argon2id": KdfArgon2id,
		"aeskdf":   KdfAES4,
	}

	for cipherName, cipher := range ciphers {
		for kdfName, kdf := range kdfs {
			t.Run(fmt.Sprintf("%s/%s", cipherName, kdfName), func(t *testing.T) {
				db := newTestDatabaseV4(cipher, kdf)
				db.Credentials = NewPasswordCredentials("foo123")

				out := encodeDecode(t, db, "foo123")
				assert.True(t, out.Header.IsKdbx4())
				assertTestContent(t, out)
			})
		}
	}
}

func TestRoundTripKDBX4Uncompressed(t *testing.T) {
	db := newTestDatabaseV4(CipherAES256, KdfArgon2id)
	db.Header.FileHeaders.CompressionFlags = CompressionNone
	db.Credentials = NewPasswordCredentials("foo123")

	out := encodeDecode(t, db, "foo123")
	assert.Equal(t, CompressionNone, out.Header.FileHeaders.CompressionFlags)
	assertTestContent(t, out)
}

func TestRoundTripKDBX3(t *testing.T) {
	db := newTestDatabaseV3()
	db.Credentials = NewPasswordCredentials("foo123")

	out := encodeDecode(t, db, "foo123")
	assert.False(t, out.Header.IsKdbx4())
	assertTestContent(t, out)

	// v3 stores its header tamper evidence inside the encrypted document.
	assert.NotEmpty(t, out.Content.Meta.HeaderHash)
}

func TestGenerateAndReopen(t *testing.T) {
	db := NewDatabase(WithKDBX4())
	fh := db.Header.FileHeaders
	fh.CipherID = CipherAES256
	fh.EncryptionIV = randomBytes(16)
	fastKdfParameters(fh, KdfArgon2d)

	root := NewGroup()
	root.Name = "Root"
	entry := NewEntry()
	entry.Values = append(entry.Values,
		ValueData{Key: "Title", Value: V{Content: "example"}},
		ValueData{Key: "Password", Value: protectedValue("p@ss")},
	)
	root.Entries = append(root.Entries, entry)
	db.Content.Root.Groups = []Group{root}

	db.Credentials = NewPasswordCredentials("foo123")
	out := encodeDecode(t, db, "foo123")

	reopened := FindEntryByTitle(out.Content.Root.Groups, "example")
	require.NotNil(t, reopened)
	assert.Equal(t, "p@ss", reopened.GetPassword())
}

func TestWrongPasswordIsDistinguishable(t *testing.T) {
	db := newTestDatabaseV4(CipherAES256, KdfArgon2d)
	db.Credentials = NewPasswordCredentials("kdbxrs")

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(db))

	out := NewDatabase()
	out.Credentials = NewPasswordCredentials("wrong")
	err := NewDecoder(bytes.NewReader(buf.Bytes())).Decode(out)

	var integrity ErrIntegrityCheckFailed
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, IntegrityHeaderHmac, integrity.Kind)
	assert.True(t, integrity.WrongKey)
}

func TestHeaderTamperDetected(t *testing.T) {
	db := newTestDatabaseV4(CipherChaCha20, KdfArgon2id)
	db.Credentials = NewPasswordCredentials("foo123")

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(db))

	// Flip a byte inside the MasterSeed field's value; the header still
	// parses, so the failure must come from the integrity check.
	raw := append([]byte(nil), buf.Bytes()...)
	raw[50] ^= 0x01

	out := NewDatabase()
	out.Credentials = NewPasswordCredentials("foo123")
	err := NewDecoder(bytes.NewReader(raw)).Decode(out)

	var integrity ErrIntegrityCheckFailed
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, IntegrityHeaderSha256, integrity.Kind)
	assert.False(t, integrity.WrongKey)
}

func TestBodyBlockTamperDetected(t *testing.T) {
	db := newTestDatabaseV4(CipherChaCha20, KdfArgon2id)
	db.Credentials = NewPasswordCredentials("foo123")

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(db))

	// The body ends with a 36-byte terminator block; the byte just before
	// it is the last ciphertext byte of the final data block.
	raw := append([]byte(nil), buf.Bytes()...)
	raw[len(raw)-37] ^= 0x01

	out := NewDatabase()
	out.Credentials = NewPasswordCredentials("foo123")
	err := NewDecoder(bytes.NewReader(raw)).Decode(out)

	var integrity ErrIntegrityCheckFailed
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, IntegrityBodyBlock, integrity.Kind)
	assert.False(t, integrity.WrongKey)
}

func TestEncodeRegeneratesSeedsEverySave(t *testing.T) {
	db := newTestDatabaseV4(CipherChaCha20, KdfArgon2id)
	db.Credentials = NewPasswordCredentials("foo123")

	var first bytes.Buffer
	require.NoError(t, NewEncoder(&first).Encode(db))
	seedAfterFirst := append([]byte(nil), db.Header.FileHeaders.MasterSeed...)

	var second bytes.Buffer
	require.NoError(t, NewEncoder(&second).Encode(db))

	assert.NotEqual(t, seedAfterFirst, db.Header.FileHeaders.MasterSeed)
	assert.NotEqual(t, first.Bytes(), second.Bytes())

	// Both emissions still decrypt to the same plaintext content.
	for _, emitted := range [][]byte{first.Bytes(), second.Bytes()} {
		out := NewDatabase()
		out.Credentials = NewPasswordCredentials("foo123")
		require.NoError(t, NewDecoder(bytes.NewReader(emitted)).Decode(out))
		require.NoError(t, out.UnlockProtectedEntries())
		assertTestContent(t, out)
	}
}

func TestProtectedValuesSurviveNestedGroups(t *testing.T) {
	db := NewDatabase(WithKDBX4())
	fastKdfParameters(db.Header.FileHeaders, KdfArgon2id)
	db.Credentials = NewPasswordCredentials("foo123")

	// Entries both above and below a nested group, so unlocking must
	// follow document order rather than a fixed groups-then-entries walk.
	inner := NewGroup()
	inner.Name = "Inner"
	innerEntry := NewEntry()
	innerEntry.Values = append(innerEntry.Values,
		ValueData{Key: "Title", Value: V{Content: "inner"}},
		ValueData{Key: "Password", Value: protectedValue("inner-secret")},
	)
	inner.Entries = append(inner.Entries, innerEntry)

	root := NewGroup()
	root.Name = "Root"
	rootEntry := NewEntry()
	rootEntry.Values = append(rootEntry.Values,
		ValueData{Key: "Title", Value: V{Content: "outer"}},
		ValueData{Key: "Password", Value: protectedValue("outer-secret")},
	)
	root.Entries = append(root.Entries, rootEntry)
	root.Groups = append(root.Groups, inner)

	db.Content.Root.Groups = []Group{root}

	out := encodeDecode(t, db, "foo123")
	assert.Equal(t, "outer-secret", FindEntryByTitle(out.Content.Root.Groups, "outer").GetPassword())
	assert.Equal(t, "inner-secret", FindEntryByTitle(out.Content.Root.Groups, "inner").GetPassword())
}

func TestHistoryRoundTrip(t *testing.T) {
	db := newTestDatabaseV4(CipherChaCha20, KdfArgon2id)
	db.Credentials = NewPasswordCredentials("foo123")

	entry := FindEntryByTitle(db.Content.Root.Groups, "Example")
	require.NotNil(t, entry)
	entry.PushHistory()
	entry.Get("Password").Value = protectedValue("changed-password")

	out := encodeDecode(t, db, "foo123")
	reopened := FindEntryByTitle(out.Content.Root.Groups, "Example")
	require.NotNil(t, reopened)
	assert.Equal(t, "changed-password", reopened.GetPassword())

	require.Len(t, reopened.Histories, 1)
	require.Len(t, reopened.Histories[0].Entries, 1)
	old := reopened.Histories[0].Entries[0]
	assert.Equal(t, reopened.UUID, old.UUID)
	assert.Equal(t, "password1", old.GetPassword())
	assert.Empty(t, old.Histories)
}

func TestPushHistoryIsOldestFirst(t *testing.T) {
	entry := NewEntry()
	entry.Values = append(entry.Values, ValueData{Key: "Title", Value: V{Content: "v1"}})

	entry.PushHistory()
	entry.Get("Title").Value = V{Content: "v2"}
	entry.PushHistory()
	entry.Get("Title").Value = V{Content: "v3"}

	require.Len(t, entry.Histories, 1)
	require.Len(t, entry.Histories[0].Entries, 2)
	assert.Equal(t, "v1", entry.Histories[0].Entries[0].GetTitle())
	assert.Equal(t, "v2", entry.Histories[0].Entries[1].GetTitle())
}

func TestUnlockAndLockAreIdempotent(t *testing.T) {
	db := newTestDatabaseV4(CipherChaCha20, KdfArgon2id)
	db.Credentials = NewPasswordCredentials("foo123")

	out := encodeDecode(t, db, "foo123")
	// A second unlock must not advance the keystream again.
	require.NoError(t, out.UnlockProtectedEntries())
	assertTestContent(t, out)

	require.NoError(t, out.LockProtectedEntries())
	require.NoError(t, out.LockProtectedEntries())
	require.NoError(t, out.UnlockProtectedEntries())
	assertTestContent(t, out)
}

func TestDecodeHeaderWithoutCredentials(t *testing.T) {
	db := newTestDatabaseV4(CipherTwoFish, KdfArgon2d)
	db.Credentials = NewPasswordCredentials("foo123")

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(db))

	header, err := NewDecoder(bytes.NewReader(buf.Bytes())).DecodeHeader()
	require.NoError(t, err)
	assert.Equal(t, CipherTwoFish, header.FileHeaders.CipherID)
	assert.Equal(t, KdfArgon2d, header.FileHeaders.KdfParameters.UUID)
}

func TestDecodeRequiresCredentials(t *testing.T) {
	db := newTestDatabaseV4(CipherChaCha20, KdfArgon2id)
	db.Credentials = NewPasswordCredentials("foo123")

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(db))

	out := NewDatabase()
	out.Credentials = nil
	err := NewDecoder(bytes.NewReader(buf.Bytes())).Decode(out)
	assert.ErrorAs(t, err, new(ErrRequiredAttributeMissing))
}

func TestUnsupportedCipherID(t *testing.T) {
	db := newTestDatabaseV4(UUID{0x01, 0x02}, KdfArgon2id)
	db.Credentials = NewPasswordCredentials("foo123")

	var buf bytes.Buffer
	err := NewEncoder(&buf).Encode(db)
	assert.ErrorAs(t, err, new(ErrUnsupportedCipher))
}

func TestFindHelpers(t *testing.T) {
	db := newTestDatabaseV4(CipherChaCha20, KdfArgon2id)

	sub := NewGroup()
	sub.Name = "Banking"
	subEntry := NewEntry()
	subEntry.Values = append(subEntry.Values, ValueData{Key: "Title", Value: V{Content: "Bank"}})
	sub.Entries = append(sub.Entries, subEntry)
	db.Content.Root.Groups[0].Groups = append(db.Content.Root.Groups[0].Groups, sub)

	assert.NotNil(t, FindGroupByName(db.Content.Root.Groups, "Banking"))
	assert.Nil(t, FindGroupByName(db.Content.Root.Groups, "missing"))
	assert.NotNil(t, FindEntryByTitle(db.Content.Root.Groups, "Bank"))
	assert.Nil(t, FindEntryByTitle(db.Content.Root.Groups, "missing"))

	all := FindEntries(db.Content.Root.Groups, func(*Entry) bool { return true })
	assert.Len(t, all, 3)
}
