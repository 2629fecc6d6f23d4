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
	LogLevel      string `short:"l" help:"Application log level" default:"error"`
	KeyFile       string `short:"k" help:"Key file to combine with the password" type:"existingfile"`
	ShowPasswords bool   `help:"Print entry passwords instead of masking them"`
	File          string `arg:"" name:"file" help:"KDBX database file" type:"existingfile"`
}

func main() {
	kong.Parse(&CLI,
		kong.Name("kdbx-parse"),
		kong.Description("Decrypt and parse a KDBX database, printing its group/entry tree"))

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
	if err := db.UnlockProtectedEntries(); err != nil {
		logger.Fatal("%v", err)
	}

	if db.Content.Meta.DatabaseName != "" {
		fmt.Printf("Database: %s\n", db.Content.Meta.DatabaseName)
	}
	for i := range db.Content.Root.Groups {
		printGroup(&db.Content.Root.Groups[i], 0)
	}
}

func printGroup(g *kdbx.Group, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%s%s/\n", indent, g.Name)
	for i := range g.Entries {
		printEntry(&g.Entries[i], depth+1)
	}
	for i := range g.Groups {
		printGroup(&g.Groups[i], depth+1)
	}
}

func printEntry(e *kdbx.Entry, depth int) {
	indent := strings.Repeat("  ", depth)
	password := "********"
	if CLI.ShowPasswords {
		password = e.GetPassword()
	}
	fmt.Printf("%s%s  user=%s password=%s", indent, e.GetTitle(), e.GetUserName(), password)
	if url := e.GetContent("URL"); url != "" {
		fmt.Printf(" url=%s", url)
	}
	fmt.Println()
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
