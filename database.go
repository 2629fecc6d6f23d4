package kdbx

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/kdbxgo/kdbx/crypto"
)

// Database is the full in-memory representation of a KDBX file: its
// credentials, outer header, (for v4) header hashes, and decrypted content.
type Database struct {
	Options     *DBOptions
	Credentials *Credentials
	Header      *DBHeader
	Hashes      *DBHashes
	Content     *DBContent

	// locked tracks whether protected values currently hold stream
	// ciphertext (true, the on-disk state) or plaintext (false). A freshly
	// constructed Database is unlocked; Decode produces a locked one.
	locked bool
}

// DBOptions configures decode/encode behavior.
type DBOptions struct {
	// ValidateHashes controls whether header integrity is checked during
	// Decode: the v4 header SHA-256/HMAC and the v3.1 Meta/HeaderHash.
	// Decode still derives the key first, so credentials are required
	// either way; DecodeHeader reads a header without them.
	ValidateHashes bool
}

// NewOptions returns DBOptions with hash validation enabled.
func NewOptions() *DBOptions {
	return &DBOptions{ValidateHashes: true}
}

// DatabaseOption configures a Database built by NewDatabase.
type DatabaseOption func(*Database)

// WithKDBX3 selects the KDBX 3.1 container format (AES-KDF, Salsa20 inner
// stream, SHA-256 block hashing).
func WithKDBX3() DatabaseOption {
	return func(db *Database) {
		db.Header = NewKDBX3Header()
	}
}

// WithKDBX4 selects the KDBX4 container format (Argon2id KDF by default,
// ChaCha20 inner stream, HMAC-authenticated blocks).
func WithKDBX4() DatabaseOption {
	return func(db *Database) {
		db.Header = NewKDBX4Header()
		streamKey := make([]byte, 64)
		rand.Read(streamKey)
		db.Content.InnerHeader = &InnerHeader{
			InnerRandomStreamID:  StreamChaCha20,
			InnerRandomStreamKey: streamKey,
		}
	}
}

// WithFormattedTime sets every timestamp currently in the content tree to
// the v3.1 RFC3339 encoding (true) or the v4 base64-seconds encoding
// (false). NewDatabase re-applies the container version's encoding after
// all options have run, and Encode does the same before every save, so this
// option does not change the encoding that is written.
func WithFormattedTime(formatted bool) DatabaseOption {
	return func(db *Database) {
		db.Content.setFormatted(formatted)
	}
}

// NewDatabase returns a Database with KDBX 3.1 defaults, applying options
// in order, then sets every timestamp to the encoding of the chosen
// container version (RFC3339 text for 3.1, base64 seconds for 4).
func NewDatabase(options ...DatabaseOption) *Database {
	db := &Database{
		Options:     NewOptions(),
		Credentials: new(Credentials),
		Content:     NewContent(),
	}

	for _, opt := range options {
		opt(db)
	}

	if db.Header == nil {
		db.Header = NewKDBX3Header()
	}
	if db.Hashes == nil {
		db.Hashes = &DBHashes{Sha256: db.Header.GetSha256()}
	}
	db.Content.setFormatted(!db.Header.IsKdbx4())

	return db
}

func (db *Database) transformedKey() ([]byte, error) {
	if db.Credentials == nil {
		return nil, ErrRequiredAttributeMissing("Credentials")
	}
	composite := db.Credentials.buildCompositeKey()

	if db.Header.IsKdbx4() {
		return deriveTransformedKey(composite, db.Header.FileHeaders.KdfParameters)
	}
	return aesKDF(composite, db.Header.FileHeaders.TransformSeed, db.Header.FileHeaders.TransformRounds)
}

// GetBodyCipher builds the outer container's BodyCipher from the derived
// master key and the header's CipherID/EncryptionIV. Dispatch is by the
// header's CipherID rather than by IV byte-length, so AES-128, AES-256 and
// TwoFish (all 16-byte-IV CBC ciphers) are distinguishable.
func (db *Database) GetBodyCipher(transformedKey []byte) (crypto.BodyCipher, error) {
	masterKey := buildMasterKey(db.Header.FileHeaders.MasterSeed, transformedKey)
	iv := db.Header.FileHeaders.EncryptionIV

	switch db.Header.FileHeaders.CipherID {
	case CipherAES128:
		return crypto.NewAESCBC(masterKey[:16], iv)
	case CipherAES256:
		return crypto.NewAESCBC(masterKey, iv)
	case CipherTwoFish:
		return crypto.NewTwoFishCBC(masterKey, iv)
	case CipherChaCha20:
		return crypto.NewChaCha20Body(masterKey, iv)
	default:
		return nil, ErrUnsupportedCipher(db.Header.FileHeaders.CipherID[:])
	}
}

// GetStreamCipher builds the inner protected-value StreamCipher from
// whichever header (outer for v3.1, inner for v4) carries the stream ID
// and key for this database's format version.
func (db *Database) GetStreamCipher() (crypto.StreamCipher, error) {
	var id uint32
	var key []byte
	if db.Header.IsKdbx4() {
		if db.Content.InnerHeader == nil {
			return nil, ErrRequiredAttributeMissing("InnerHeader")
		}
		id = db.Content.InnerHeader.InnerRandomStreamID
		key = db.Content.InnerHeader.InnerRandomStreamKey
	} else {
		id = db.Header.FileHeaders.InnerRandomStreamID
		key = db.Header.FileHeaders.ProtectedStreamKey
	}

	switch id {
	case StreamNone:
		return noopStream{}, nil
	case StreamArcFour:
		return crypto.NewArcFourStream(key)
	case StreamSalsa20:
		return crypto.NewSalsa20Stream(key)
	case StreamChaCha20:
		return crypto.NewChaCha20Stream(key)
	default:
		return nil, ErrMalformedHeader{Reason: "unsupported inner random stream id"}
	}
}

// noopStream implements StreamCipher as the identity transform, for
// InnerRandomStreamID == StreamNone (no entries are protected).
type noopStream struct{}

func (noopStream) Unpack(ciphertext []byte) []byte { return ciphertext }
func (noopStream) Pack(plaintext []byte) []byte    { return plaintext }

// UnlockProtectedEntries stream-decrypts every Protected value in the
// database, walking groups/entries/history in the same order the XML
// document declared them (see Group.UnmarshalXML's childOrder tracking).
// Unlocking an already-unlocked database is a no-op.
func (db *Database) UnlockProtectedEntries() error {
	if !db.locked {
		return nil
	}
	stream, err := db.GetStreamCipher()
	if err != nil {
		return err
	}
	unlockGroups(stream, db.Content.Root.Groups)
	db.locked = false
	return nil
}

// LockProtectedEntries stream-encrypts every Protected value in the
// database. Encode calls this automatically; locking an already-locked
// database is a no-op (double-encrypting would corrupt every value).
func (db *Database) LockProtectedEntries() error {
	if db.locked {
		return nil
	}
	stream, err := db.GetStreamCipher()
	if err != nil {
		return err
	}
	lockGroups(stream, db.Content.Root.Groups)
	db.locked = true
	return nil
}

func unlockGroups(stream crypto.StreamCipher, groups []Group) {
	for i := range groups {
		unlockGroup(stream, &groups[i])
	}
}

func unlockGroup(stream crypto.StreamCipher, g *Group) {
	if g.childOrder == childOrderGroupFirst {
		unlockGroups(stream, g.Groups)
		unlockEntries(stream, g.Entries)
	} else {
		unlockEntries(stream, g.Entries)
		unlockGroups(stream, g.Groups)
	}
	g.childOrder = childOrderDefault
}

func unlockEntries(stream crypto.StreamCipher, entries []Entry) {
	for i := range entries {
		unlockEntry(stream, &entries[i])
	}
}

func unlockEntry(stream crypto.StreamCipher, e *Entry) {
	for i := range e.Values {
		if e.Values[i].Value.Protected.Bool {
			ciphertext, _ := base64.StdEncoding.DecodeString(e.Values[i].Value.Content)
			e.Values[i].Value.Content = string(stream.Unpack(ciphertext))
		}
	}
	for i := range e.Histories {
		unlockEntries(stream, e.Histories[i].Entries)
	}
}

func lockGroups(stream crypto.StreamCipher, groups []Group) {
	for i := range groups {
		lockGroup(stream, &groups[i])
	}
}

func lockGroup(stream crypto.StreamCipher, g *Group) {
	lockEntries(stream, g.Entries)
	lockGroups(stream, g.Groups)
}

func lockEntries(stream crypto.StreamCipher, entries []Entry) {
	for i := range entries {
		lockEntry(stream, &entries[i])
	}
}

func lockEntry(stream crypto.StreamCipher, e *Entry) {
	for i := range e.Values {
		if e.Values[i].Value.Protected.Bool {
			ciphertext := stream.Pack([]byte(e.Values[i].Value.Content))
			e.Values[i].Value.Content = base64.StdEncoding.EncodeToString(ciphertext)
		}
	}
	for i := range e.Histories {
		lockEntries(stream, e.Histories[i].Entries)
	}
}
