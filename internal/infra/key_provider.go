package infra

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

const (
	historyKeyName = "history.key"
	historyKeyLen  = 32
)

// HistoryKeyFile keeps the SQLCipher key for the session history as a hex
// line in the data directory, readable by the owner only.
type HistoryKeyFile struct {
	path string
}

func NewHistoryKeyFile(dataDir string) *HistoryKeyFile {
	return &HistoryKeyFile{path: filepath.Join(dataDir, historyKeyName)}
}

func (k *HistoryKeyFile) Path() string {
	return k.path
}

// GetKey returns the stored history key.
func (k *HistoryKeyFile) GetKey() ([]byte, error) {
	raw, err := os.ReadFile(k.path)
	if err != nil {
		return nil, fmt.Errorf("history key unreadable: %w", err)
	}
	return parseHistoryKey(strings.TrimSpace(string(raw)))
}

// StoreKey saves key, creating the data directory (0700) on first use.
func (k *HistoryKeyFile) StoreKey(key []byte) error {
	if err := checkHistoryKey(key); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(k.path), 0700); err != nil {
		return fmt.Errorf("cannot create data dir for history key: %w", err)
	}
	line := hex.EncodeToString(key) + "\n"
	if err := writeFileAtomic(k.path, []byte(line), 0600); err != nil {
		return fmt.Errorf("cannot save history key: %w", err)
	}
	return nil
}

func (k *HistoryKeyFile) KeyExists() bool {
	_, err := os.Stat(k.path)
	return err == nil
}

func parseHistoryKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("history key is not hex: %w", err)
	}
	if err := checkHistoryKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

func checkHistoryKey(key []byte) error {
	if len(key) != historyKeyLen {
		return fmt.Errorf("invalid key size: got %d bytes, want %d", len(key), historyKeyLen)
	}
	return nil
}

// GenerateKey returns a fresh random history key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, historyKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate history key: %w", err)
	}
	return key, nil
}

// EnsureKey loads the key from provider, creating and saving one if none exists.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	return key, provider.StoreKey(key)
}

// OpenHistory opens the encrypted session history kept in dataDir.
func OpenHistory(dataDir string) (*EncryptedHistory, error) {
	key, err := EnsureKey(NewHistoryKeyFile(dataDir))
	if err != nil {
		return nil, err
	}
	return NewEncryptedHistory(dataDir, key)
}

var _ domain.KeyProvider = (*HistoryKeyFile)(nil)
