package ntag424

import (
	"encoding/hex"
	"fmt"
	"net/url"
)

// buildSDMSessionVector concatenates prefix || uid? || counterLE? (either
// may be nil when the PICC data's tag byte marks it absent) and zero-pads
// the result to exactly 16 bytes, per AN12196 §4.8. The prefix plus a full
// 7-byte UID plus a full 3-byte counter fills the block exactly, so a
// concatenation that overflows it indicates a malformed caller input.
func buildSDMSessionVector(prefix, uid, counterLE []byte) ([]byte, error) {
	sv := make([]byte, 0, 16)
	sv = append(sv, prefix...)
	sv = append(sv, uid...)
	sv = append(sv, counterLE...)
	if len(sv) > 16 {
		return nil, fmt.Errorf("%w: SDM session vector exceeds 16 bytes", ErrValidation)
	}
	padded := make([]byte, 16)
	copy(padded, sv)
	return padded, nil
}

// deriveSDMFileReadMACKey derives SesSDMFileReadMAC per AN12196 §8.3:
// CMAC(key, 3C C3 00 01 00 80 || uid? || counter_le?).
func deriveSDMFileReadMACKey(key, uid, counterLE []byte) ([]byte, error) {
	sv, err := buildSDMSessionVector([]byte{0x3C, 0xC3, 0x00, 0x01, 0x00, 0x80}, uid, counterLE)
	if err != nil {
		return nil, err
	}
	return aesCMAC(key, sv)
}

// deriveSDMFileReadENCKey derives SesSDMFileReadENC per AN12196 §8.3:
// CMAC(key, C3 3C 00 01 00 80 || uid? || counter_le?).
func deriveSDMFileReadENCKey(key, uid, counterLE []byte) ([]byte, error) {
	sv, err := buildSDMSessionVector([]byte{0xC3, 0x3C, 0x00, 0x01, 0x00, 0x80}, uid, counterLE)
	if err != nil {
		return nil, err
	}
	return aesCMAC(key, sv)
}

// SDMPICCData is the decrypted content of an encrypted PICC data mirror.
// UID and CounterLE are nil when the tag byte's corresponding presence bit
// is clear — a tag may be configured to mirror only one of the two.
type SDMPICCData struct {
	UID       []byte // 7 bytes, present iff tag&0x80 != 0
	CounterLE []byte // 3 bytes, little-endian, present iff tag&0x40 != 0
}

// DecryptSDMPICCData decrypts a 16-byte encrypted PICC data block with
// AES-CBC under a zero IV (no padding is stripped; the tag byte, UID and
// counter take at most the first 11 bytes, and the rest of the block is
// ignored) and splits out the UID and
// read counter according to the tag byte's presence flags: bit 7 marks a
// UID, bit 6 marks a read counter. Either, both, or neither may be set.
func DecryptSDMPICCData(encPICCData, metaReadKey []byte) (*SDMPICCData, error) {
	if len(encPICCData) != 16 {
		return nil, fmt.Errorf("%w: encrypted PICC data must be 16 bytes, got %d", ErrValidation, len(encPICCData))
	}
	iv := make([]byte, 16)
	plain, err := aesCBCDecrypt(metaReadKey, iv, encPICCData)
	if err != nil {
		return nil, err
	}
	if len(plain) < 1 {
		return nil, fmt.Errorf("%w: decrypted PICC data too short", ErrMalformedResponse)
	}
	tag := plain[0]
	picc := &SDMPICCData{}
	offset := 1
	if tag&0x80 != 0 {
		if len(plain) < offset+7 {
			return nil, fmt.Errorf("%w: decrypted PICC data too short for UID", ErrMalformedResponse)
		}
		picc.UID = plain[offset : offset+7]
		offset += 7
	}
	if tag&0x40 != 0 {
		if len(plain) < offset+3 {
			return nil, fmt.Errorf("%w: decrypted PICC data too short for counter", ErrMalformedResponse)
		}
		picc.CounterLE = plain[offset : offset+3]
		offset += 3
	}
	return picc, nil
}

// ValidateSDMSignature implements the offline SDM signature check: decrypt
// the encrypted PICC data, derive SesSDMFileReadMAC from whichever of the
// embedded UID/counter the tag byte marks present, and compare
// reduce_mac(CMAC(SesSDMFileReadMAC, "")) against the tag-supplied mac.
// Returns the embedded UID and counter regardless of match so callers can
// log a failed tap; counter is 0 if the tag byte marked it absent.
func ValidateSDMSignature(encPICCData, mac, metaReadKey []byte) (uid []byte, counter uint32, ok bool, err error) {
	if len(mac) != 8 {
		return nil, 0, false, fmt.Errorf("%w: mac must be 8 bytes, got %d", ErrValidation, len(mac))
	}
	picc, err := DecryptSDMPICCData(encPICCData, metaReadKey)
	if err != nil {
		return nil, 0, false, err
	}
	if picc.CounterLE != nil {
		counter = uint32(picc.CounterLE[0]) | uint32(picc.CounterLE[1])<<8 | uint32(picc.CounterLE[2])<<16
	}

	sesMacKey, err := deriveSDMFileReadMACKey(metaReadKey, picc.UID, picc.CounterLE)
	if err != nil {
		return picc.UID, counter, false, err
	}
	full, err := aesCMAC(sesMacKey, []byte{})
	if err != nil {
		return picc.UID, counter, false, err
	}
	expected := reduceMAC(full)
	return picc.UID, counter, constantTimeEqual(mac, expected), nil
}

// DecryptSDMFileData decrypts an SDM-protected encrypted file data block
// using SesSDMFileReadENC derived from the same UID/counter pair recovered
// from the PICC data mirror.
func DecryptSDMFileData(encFileData, fileReadKey, uid, counterLE []byte) ([]byte, error) {
	sesEncKey, err := deriveSDMFileReadENCKey(fileReadKey, uid, counterLE)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, 16)
	plain, err := aesCBCDecrypt(sesEncKey, iv, encFileData)
	if err != nil {
		return nil, err
	}
	return unpadISO9797M2(plain)
}

// ParseSDMURL extracts the picc_data and mac hex parameters embedded by
// the tag's SDM mirroring in a tapped URL, and the optional enc file-data
// parameter.
func ParseSDMURL(rawURL string) (piccData, mac, enc string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", "", err
	}
	q := u.Query()
	piccData = q.Get("picc_data")
	mac = q.Get("mac")
	enc = q.Get("enc")
	if piccData == "" || mac == "" {
		return piccData, mac, enc, fmt.Errorf("%w: missing picc_data/mac parameters", ErrValidation)
	}
	return piccData, mac, enc, nil
}

// ValidateSDMURL parses and validates an SDM URL in one step.
func ValidateSDMURL(rawURL string, metaReadKey []byte) (uid []byte, counter uint32, ok bool, err error) {
	piccDataHex, macHex, _, err := ParseSDMURL(rawURL)
	if err != nil {
		return nil, 0, false, err
	}
	piccData, err := hex.DecodeString(piccDataHex)
	if err != nil {
		return nil, 0, false, fmt.Errorf("picc_data hex decode: %w", err)
	}
	mac, err := hex.DecodeString(macHex)
	if err != nil {
		return nil, 0, false, fmt.Errorf("mac hex decode: %w", err)
	}
	return ValidateSDMSignature(piccData, mac, metaReadKey)
}

// GenerateSDMURL builds an SDM URL of the same shape the tag itself would
// produce on tap, for test fixtures and provisioning previews.
func GenerateSDMURL(baseURL string, uid []byte, counter uint32, metaReadKey []byte) (string, error) {
	if len(uid) != 7 {
		return "", fmt.Errorf("%w: UID must be 7 bytes, got %d", ErrValidation, len(uid))
	}
	if counter > 0xFFFFFF {
		return "", fmt.Errorf("%w: counter must be <= 0xFFFFFF, got %d", ErrValidation, counter)
	}
	counterLE := []byte{byte(counter), byte(counter >> 8), byte(counter >> 16)}

	plain := make([]byte, 16)
	plain[0] = 0xC7
	copy(plain[1:8], uid)
	copy(plain[8:11], counterLE)
	iv := make([]byte, 16)
	encPICCData, err := aesCBCEncrypt(metaReadKey, iv, plain)
	if err != nil {
		return "", err
	}

	sesMacKey, err := deriveSDMFileReadMACKey(metaReadKey, uid, counterLE)
	if err != nil {
		return "", err
	}
	full, err := aesCMAC(sesMacKey, []byte{})
	if err != nil {
		return "", err
	}
	mac := reduceMAC(full)

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	q := parsedURL.Query()
	q.Set("picc_data", hex.EncodeToString(encPICCData))
	q.Set("mac", hex.EncodeToString(mac))
	parsedURL.RawQuery = q.Encode()
	return parsedURL.String(), nil
}
