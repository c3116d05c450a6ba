package ntag424

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// KeyFile represents a key loaded from a .hex file.
type KeyFile struct {
	Name string // File name (e.g., "key0.hex")
	Key  []byte // 16-byte AES key
}

// LoadKeyHexFile loads a 16-byte AES key from a .hex file.
// The file should contain a single line with 32 hexadecimal characters.
func LoadKeyHexFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if len(line) != 32 {
			return nil, fmt.Errorf("key must be 32 hex chars, got %d", len(line))
		}
		key, err := hex.DecodeString(line)
		if err != nil {
			return nil, fmt.Errorf("invalid hex key: %v", err)
		}
		return key, nil
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("key file is empty")
}

// LoadAllHexKeys loads all .hex key files from a directory.
// Skips invalid files silently.
func LoadAllHexKeys(dir string) ([]KeyFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var keys []KeyFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(e.Name())) != ".hex" {
			continue
		}

		path := filepath.Join(dir, e.Name())
		key, err := LoadKeyHexFile(path)
		if err != nil {
			continue
		}

		keys = append(keys, KeyFile{Name: e.Name(), Key: key})
	}

	return keys, nil
}

// ChangeKey issues DESFire ChangeKey (native INS 0xC4) for keyNumber using
// the session's current authentication. Per AN12196 §11.4.2 the payload
// shape depends on keyNumber alone:
//
//   - keyNumber == 0: new_key || new_key_version
//   - otherwise: (old_key XOR new_key) || new_key_version || jam_crc32(new_key)_le
//
// oldKey is ignored (may be nil) when keyNumber == 0.
func ChangeKey(card Card, sess *Session, keyNumber byte, oldKey, newKey []byte, newKeyVersion byte) error {
	if len(newKey) != 16 {
		return fmt.Errorf("%w: new key must be 16 bytes, got %d", ErrValidation, len(newKey))
	}
	if !sess.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	var keyData []byte
	if keyNumber == 0 {
		keyData = make([]byte, 17)
		copy(keyData, newKey)
		keyData[16] = newKeyVersion
	} else {
		if len(oldKey) != 16 {
			return fmt.Errorf("%w: old key must be 16 bytes, got %d", ErrValidation, len(oldKey))
		}
		xored, err := xorBytes(oldKey, newKey)
		if err != nil {
			return err
		}
		crc := jamCRC32(newKey)
		keyData = make([]byte, 0, 21)
		keyData = append(keyData, xored...)
		keyData = append(keyData, newKeyVersion)
		keyData = append(keyData, byte(crc), byte(crc>>8), byte(crc>>16), byte(crc>>24))
	}

	changingOwnKey := keyNumber == sess.auth.KeyNo

	resp, err := Send(card, sess, 0xC4, []byte{keyNumber}, keyData, CommModeFull)
	if err != nil {
		return err
	}
	if !resp.IsOK() {
		return &CardError{Cmd: 0xC4, SW: resp.Status}
	}
	if changingOwnKey {
		// The card drops the session on success; there is nothing left to
		// authenticate against until the caller re-authenticates.
		sess.auth = nil
	}
	return nil
}

// ChangeKeySame re-keys the PICC master key (slot 0) using only the new key
// and version, with no old key required. It is a narrower sibling of
// ChangeKey for the single case where keyNumber == 0: the wire payload is
// identical (new_key || new_key_version, no XOR, no CRC) and the card's
// response carries no response MAC because the session is invalidated by the
// change, so callers that only ever re-key slot 0 can skip passing oldKey.
func ChangeKeySame(card Card, sess *Session, newKey []byte, newKeyVersion byte) error {
	return ChangeKey(card, sess, 0x00, nil, newKey, newKeyVersion)
}
