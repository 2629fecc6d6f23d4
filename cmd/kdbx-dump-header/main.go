package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/kdbxgo/kdbx"
	"github.com/kdbxgo/kdbx/internal/logging"
)

var CLI struct {
	LogLevel string `short:"l" help:"Application log level" default:"error"`
	File     string `arg:"" name:"file" help:"KDBX database file" type:"existingfile"`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("kdbx-dump-header"),
		kong.Description("Print the parsed outer header of a KDBX database"))

	logger := logging.GetRoot()
	logger.SetLevel(CLI.LogLevel)

	f, err := os.Open(CLI.File)
	if err != nil {
		logger.Fatal("%v", err)
	}
	defer f.Close()

	header, err := kdbx.NewDecoder(f).DecodeHeader()
	if err != nil {
		logger.Fatal("%v", err)
	}

	fh := header.FileHeaders
	fmt.Printf("Version:          %s\n", header.Signature)
	fmt.Printf("Cipher:           %s\n", kdbx.CipherName(fh.CipherID))
	fmt.Printf("Compression:      %s\n", compressionName(fh.CompressionFlags))
	fmt.Printf("MasterSeed:       %d bytes\n", len(fh.MasterSeed))
	fmt.Printf("EncryptionIV:     %d bytes\n", len(fh.EncryptionIV))

	if header.IsKdbx4() {
		kdf := fh.KdfParameters
		fmt.Printf("KDF:              %s\n", kdbx.KdfName(kdf.UUID))
		switch kdf.UUID {
		case kdbx.KdfAES3, kdbx.KdfAES4:
			fmt.Printf("  Rounds:         %d\n", kdf.Rounds)
		default:
			fmt.Printf("  Iterations:     %d\n", kdf.Iterations)
			fmt.Printf("  Memory:         %d bytes\n", kdf.Memory)
			fmt.Printf("  Parallelism:    %d\n", kdf.Parallelism)
		}
		fmt.Printf("  Salt:           %d bytes\n", len(kdf.Salt))
		if fh.PublicCustomData != nil {
			fmt.Printf("PublicCustomData: %d items\n", len(fh.PublicCustomData.Items))
		}
	} else {
		fmt.Printf("KDF:              %s\n", kdbx.KdfName(kdbx.KdfAES3))
		fmt.Printf("  Rounds:         %d\n", fh.TransformRounds)
		fmt.Printf("InnerStream:     %s\n", streamName(fh.InnerRandomStreamID))
	}
}

func compressionName(flags uint32) string {
	switch flags {
	case kdbx.CompressionNone:
		return "none"
	case kdbx.CompressionGzip:
		return "gzip"
	default:
		return fmt.Sprintf("unknown (%d)", flags)
	}
}

func streamName(id uint32) string {
	switch id {
	case kdbx.StreamNone:
		return "none"
	case kdbx.StreamArcFour:
		return "ArcFourVariant"
	case kdbx.StreamSalsa20:
		return "Salsa20"
	case kdbx.StreamChaCha20:
		return "ChaCha20"
	default:
		return fmt.Sprintf("unknown (%d)", id)
	}
}
