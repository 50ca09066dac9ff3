// Package wallet resolves the signing key used for battle transactions.
package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"

	"github.com/memed/arena/internal/contract"
	"github.com/memed/arena/pkg/config"
	"github.com/memed/arena/pkg/logger"
	"github.com/memed/arena/pkg/secretstore"
)

// Source names where a signer came from.
type Source string

const (
	SourceNone        Source = "none"
	SourcePrivateKey  Source = "private_key"
	SourceMnemonic    Source = "mnemonic"
	SourceSecretStore Source = "secret_store"
)

// Load resolves a signer from, in order: an explicit private key, a
// mnemonic, then the Badger secret store. A nil signer with SourceNone means
// read-only mode.
func Load(cfg config.WalletConfig) (*contract.Signer, Source, error) {
	if pk := strings.TrimSpace(cfg.PrivateKey); pk != "" {
		s, err := FromPrivateKey(pk)
		return s, SourcePrivateKey, err
	}
	if mn := strings.TrimSpace(cfg.Mnemonic); mn != "" {
		s, err := FromMnemonic(mn, cfg.DerivationPath)
		return s, SourceMnemonic, err
	}
	if strings.TrimSpace(cfg.SecretDB) == "" {
		logger.Info("no wallet configured, running read-only")
		return nil, SourceNone, nil
	}

	encKey, err := secretstore.ParseKey(cfg.SecretKey)
	if err != nil {
		return nil, SourceSecretStore, fmt.Errorf("secret key: %w", err)
	}
	store, err := secretstore.Open(secretstore.OpenOptions{Path: cfg.SecretDB, EncryptionKey: encKey, ReadOnly: true})
	if err != nil {
		return nil, SourceSecretStore, err
	}
	defer store.Close()

	s, err := FromStore(store, cfg.DerivationPath)
	if s == nil && err == nil {
		logger.Warnf("secret store %s holds no wallet, running read-only", cfg.SecretDB)
		return nil, SourceNone, nil
	}
	return s, SourceSecretStore, err
}

// FromStore reads a private key or mnemonic from store. A store holding
// neither yields (nil, nil).
func FromStore(store *secretstore.Store, defaultPath string) (*contract.Signer, error) {
	pk, ok, err := store.GetString(secretstore.KeyPrivateKey)
	if err != nil {
		return nil, err
	}
	if ok && strings.TrimSpace(pk) != "" {
		return FromPrivateKey(pk)
	}
	mn, ok, err := store.GetString(secretstore.KeyMnemonic)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(mn) == "" {
		return nil, nil
	}
	path := defaultPath
	if p, ok, err := store.GetString(secretstore.KeyDerivationPath); err != nil {
		return nil, err
	} else if ok && strings.TrimSpace(p) != "" {
		path = p
	}
	return FromMnemonic(mn, path)
}

// FromPrivateKey parses a hex key, with or without 0x.
func FromPrivateKey(hexKey string) (*contract.Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return contract.NewSigner(key), nil
}

// FromMnemonic derives the account at derivationPath.
func FromMnemonic(mnemonic, derivationPath string) (*contract.Signer, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	derivationPath = strings.TrimSpace(derivationPath)
	if mnemonic == "" {
		return nil, errors.New("mnemonic is required")
	}
	if derivationPath == "" {
		return nil, errors.New("derivation_path is required")
	}

	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	path, err := hdwallet.ParseDerivationPath(derivationPath)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation_path: %w", err)
	}
	acct, err := w.Derive(path, false)
	if err != nil {
		return nil, fmt.Errorf("derive failed: %w", err)
	}
	key, err := w.PrivateKey(acct)
	if err != nil {
		return nil, fmt.Errorf("private key failed: %w", err)
	}
	return contract.NewSigner(key), nil
}
