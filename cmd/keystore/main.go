package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/memed/arena/internal/wallet"
	"github.com/memed/arena/pkg/secretstore"
)

func main() {
	var (
		dbPath    = flag.String("badger", getenv("ARENA_SECRET_DB", "data/secrets.badger"), "badger secrets db path")
		secretKey = flag.String("secret-key", getenv("ARENA_SECRET_KEY", ""), "badger encryption key (32 bytes base64/hex)")
		kind      = flag.String("kind", "private-key", "what to import: private-key or mnemonic")
		path      = flag.String("path", "m/44'/60'/0'/0/0", "derivation path stored with a mnemonic")
	)
	flag.Parse()

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fatal(errors.New("secret key is required: set ARENA_SECRET_KEY or pass -secret-key"))
	}

	var entries map[string]string
	switch *kind {
	case "private-key":
		fmt.Fprintln(os.Stderr, "Paste the private key (hex) and press enter:")
		pk := readLine()
		s, err := wallet.FromPrivateKey(pk)
		if err != nil {
			fatal(err)
		}
		fmt.Fprintf(os.Stderr, "account: %s\n", s.Address.Hex())
		entries = map[string]string{secretstore.KeyPrivateKey: strings.TrimPrefix(pk, "0x")}
	case "mnemonic":
		fmt.Fprintln(os.Stderr, "Enter the mnemonic (12/15/18/21/24 words) and press enter:")
		mn := readLine()
		s, err := wallet.FromMnemonic(mn, *path)
		if err != nil {
			fatal(err)
		}
		fmt.Fprintf(os.Stderr, "account: %s\n", s.Address.Hex())
		entries = map[string]string{
			secretstore.KeyMnemonic:       mn,
			secretstore.KeyDerivationPath: *path,
		}
	default:
		fatal(fmt.Errorf("unknown -kind %q (want private-key or mnemonic)", *kind))
	}

	ss, err := secretstore.Open(secretstore.OpenOptions{Path: *dbPath, EncryptionKey: keyBytes})
	if err != nil {
		fatal(err)
	}
	defer ss.Close()

	for k, v := range entries {
		if err := ss.SetString(k, v); err != nil {
			fatal(err)
		}
	}
	fmt.Fprintf(os.Stderr, "stored %d keys in %s\n", len(entries), *dbPath)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func readLine() string {
	br := bufio.NewReader(os.Stdin)
	s, _ := br.ReadString('\n')
	return strings.TrimSpace(s)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
