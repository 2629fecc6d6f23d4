package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/kdbxgo/kdbx"
	"github.com/kdbxgo/kdbx/internal/logging"
	"golang.org/x/term"
)

var CLI struct {
	LogLevel string `short:"l" help:"Application log level" default:"error"`
	KeyFile  string `short:"k" help:"Key file to combine with the password" type:"existingfile"`
	File     string `arg:"" name:"file" help:"KDBX database file" type:"existingfile"`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("kdbx-decrypt"),
		kong.Description("Decrypt a KDBX database and emit the inner XML document to stdout"))

	logger := logging.GetRoot()
	logger.SetLevel(CLI.LogLevel)

	password, err := readPassword()
	if err != nil {
		logger.Fatal("reading password: %v", err)
	}

	f, err := os.Open(CLI.File)
	if err != nil {
		logger.Fatal("%v", err)
	}
	defer f.Close()

	db := kdbx.NewDatabase()
	if CLI.KeyFile != "" {
		db.Credentials, err = kdbx.NewPasswordAndKeyCredentials(password, CLI.KeyFile)
		if err != nil {
			logger.Fatal("%v", err)
		}
	} else {
		db.Credentials = kdbx.NewPasswordCredentials(password)
	}

	if err := kdbx.NewDecoder(f).Decode(db); err != nil {
		logger.Fatal("%v", err)
	}

	os.Stdout.Write(db.Content.RawData)
}

// readPassword prompts without echo on a terminal, and falls back to
// reading one line from stdin when input is piped.
func readPassword() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, "Password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		return string(pw), err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
