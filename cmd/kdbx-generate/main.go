package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/kdbxgo/kdbx"
	"github.com/kdbxgo/kdbx/internal/logging"
	w "github.com/kdbxgo/kdbx/wrappers"
)

var CLI struct {
	LogLevel string `short:"l" help:"Application log level" default:"error"`
	Out      string `short:"o" help:"Output file" default:"sample.kdbx"`
	Password string `short:"p" help:"Master password for the generated database" default:"password"`
	Kdbx3    bool   `help:"Write a KDBX 3.1 file instead of KDBX 4"`
	Cipher   string `help:"Body cipher (KDBX 4 only)" enum:"aes256,chacha20,twofish" default:"chacha20"`
	Kdf      string `help:"Key derivation function (KDBX 4 only)" enum:"argon2d,argon2id,aes" default:"argon2id"`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("kdbx-generate"),
		kong.Description("Write a sample KDBX database"))

	logger := logging.GetRoot()
	logger.SetLevel(CLI.LogLevel)

	db := buildSample()

	// Write to a temporary file first so a failure can't leave a partial
	// but valid-looking database at the destination.
	tmp, err := os.CreateTemp(filepath.Dir(CLI.Out), ".kdbx-generate-*")
	if err != nil {
		logger.Fatal("%v", err)
	}
	defer os.Remove(tmp.Name())

	if err := kdbx.NewEncoder(tmp).Encode(db); err != nil {
		tmp.Close()
		logger.Fatal("%v", err)
	}
	if err := tmp.Close(); err != nil {
		logger.Fatal("%v", err)
	}
	if err := os.Rename(tmp.Name(), CLI.Out); err != nil {
		logger.Fatal("%v", err)
	}

	fmt.Printf("wrote %s\n", CLI.Out)
}

func buildSample() *kdbx.Database {
	var db *kdbx.Database
	if CLI.Kdbx3 {
		db = kdbx.NewDatabase(kdbx.WithKDBX3())
	} else {
		db = kdbx.NewDatabase(kdbx.WithKDBX4())
		switch CLI.Cipher {
		case "aes256":
			db.Header.FileHeaders.CipherID = kdbx.CipherAES256
			db.Header.FileHeaders.EncryptionIV = randomIV(16)
		case "twofish":
			db.Header.FileHeaders.CipherID = kdbx.CipherTwoFish
			db.Header.FileHeaders.EncryptionIV = randomIV(16)
		}
		switch CLI.Kdf {
		case "argon2d":
			db.Header.FileHeaders.KdfParameters.UUID = kdbx.KdfArgon2d
		case "aes":
			db.Header.FileHeaders.KdfParameters.UUID = kdbx.KdfAES4
			db.Header.FileHeaders.KdfParameters.Rounds = 60000
		}
	}

	db.Credentials = kdbx.NewPasswordCredentials(CLI.Password)
	db.Content.Meta.DatabaseName = "Sample Database"

	root := kdbx.NewGroup()
	root.Name = "Root"

	entry := kdbx.NewEntry()
	entry.Values = append(entry.Values,
		kdbx.ValueData{Key: "Title", Value: kdbx.V{Content: "Sample Entry"}},
		kdbx.ValueData{Key: "UserName", Value: kdbx.V{Content: "user"}},
		kdbx.ValueData{Key: "URL", Value: kdbx.V{Content: "https://example.com"}},
		kdbx.ValueData{Key: "Password", Value: kdbx.V{Content: "password1", Protected: w.NewBoolWrapper(true)}},
	)
	root.Entries = append(root.Entries, entry)

	db.Content.Root.Groups = []kdbx.Group{root}
	return db
}

func randomIV(n int) []byte {
	iv := make([]byte, n)
	rand.Read(iv)
	return iv
}
