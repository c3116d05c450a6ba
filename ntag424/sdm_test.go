package ntag424

import (
	"bytes"
	"encoding/hex"
	"testing"
)

// TestSDMMACKAT pins deriveSDMFileReadMACKey/reduceMAC against the literal
// vectors: mac_key=16x00, uid=049d98f20b1090, counter=0x000026 must validate
// against mac=71fd0299f6a6f742, and must reject both a wrong mac byte
// (…f743) and a wrong counter (0x000027 with the original mac).
func TestSDMMACKAT(t *testing.T) {
	macKey := make([]byte, 16)
	uid, err := hex.DecodeString("049d98f20b1090")
	if err != nil {
		t.Fatalf("decode uid: %v", err)
	}
	counterLE := []byte{0x26, 0x00, 0x00}
	wantMAC, err := hex.DecodeString("71fd0299f6a6f742")
	if err != nil {
		t.Fatalf("decode mac: %v", err)
	}

	sesMacKey, err := deriveSDMFileReadMACKey(macKey, uid, counterLE)
	if err != nil {
		t.Fatalf("deriveSDMFileReadMACKey: %v", err)
	}
	full, err := aesCMAC(sesMacKey, []byte{})
	if err != nil {
		t.Fatalf("aesCMAC: %v", err)
	}
	got := reduceMAC(full)
	if !bytes.Equal(got, wantMAC) {
		t.Fatalf("mac = %x, want %x", got, wantMAC)
	}

	wrongMAC, err := hex.DecodeString("71fd0299f6a6f743")
	if err != nil {
		t.Fatalf("decode wrong mac: %v", err)
	}
	if constantTimeEqual(got, wrongMAC) {
		t.Fatal("expected a flipped mac byte not to match")
	}

	wrongCounterLE := []byte{0x27, 0x00, 0x00}
	sesMacKeyWrongCounter, err := deriveSDMFileReadMACKey(macKey, uid, wrongCounterLE)
	if err != nil {
		t.Fatalf("deriveSDMFileReadMACKey(wrong counter): %v", err)
	}
	fullWrongCounter, err := aesCMAC(sesMacKeyWrongCounter, []byte{})
	if err != nil {
		t.Fatalf("aesCMAC(wrong counter): %v", err)
	}
	if constantTimeEqual(reduceMAC(fullWrongCounter), wantMAC) {
		t.Fatal("expected a wrong counter to produce a different mac")
	}
}

// TestSDMDecryptAndValidateKAT pins DecryptSDMPICCData/ValidateSDMSignature
// against the literal vector: enc_key=mac_key=16x00,
// encrypted_picc=1cc49b9aa47d2837e5f1a1b5deae811c, mac=6488aeba44044cbf must
// validate and yield uid=049d98f20b1090, counter=56; single-bit flips in
// either the encrypted PICC data or the mac must invalidate it.
func TestSDMDecryptAndValidateKAT(t *testing.T) {
	key := make([]byte, 16)
	encPICC, err := hex.DecodeString("1cc49b9aa47d2837e5f1a1b5deae811c")
	if err != nil {
		t.Fatalf("decode encrypted_picc: %v", err)
	}
	mac, err := hex.DecodeString("6488aeba44044cbf")
	if err != nil {
		t.Fatalf("decode mac: %v", err)
	}
	wantUID, err := hex.DecodeString("049d98f20b1090")
	if err != nil {
		t.Fatalf("decode uid: %v", err)
	}

	uid, counter, ok, err := ValidateSDMSignature(encPICC, mac, key)
	if err != nil {
		t.Fatalf("ValidateSDMSignature: %v", err)
	}
	if !ok {
		t.Fatal("expected the KAT signature to validate")
	}
	if !bytes.Equal(uid, wantUID) {
		t.Fatalf("uid = %x, want %x", uid, wantUID)
	}
	if counter != 56 {
		t.Fatalf("counter = %d, want 56", counter)
	}

	flippedPICC := append([]byte{}, encPICC...)
	flippedPICC[0] ^= 0x01
	if _, _, ok, err := ValidateSDMSignature(flippedPICC, mac, key); err == nil && ok {
		t.Fatal("expected a flipped encrypted_picc byte to invalidate the signature")
	}

	flippedMAC := append([]byte{}, mac...)
	flippedMAC[0] ^= 0x01
	if _, _, ok, err := ValidateSDMSignature(encPICC, flippedMAC, key); err != nil || ok {
		t.Fatal("expected a flipped mac byte to invalidate the signature")
	}
}

func TestGenerateAndValidateSDMURLRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x5A}, 16)
	uid := []byte{0x04, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	counter := uint32(42)

	url, err := GenerateSDMURL("https://example.com/tap", uid, counter, key)
	if err != nil {
		t.Fatalf("GenerateSDMURL: %v", err)
	}

	gotUID, gotCounter, ok, err := ValidateSDMURL(url, key)
	if err != nil {
		t.Fatalf("ValidateSDMURL: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to validate")
	}
	if !bytes.Equal(gotUID, uid) {
		t.Fatalf("UID = %x, want %x", gotUID, uid)
	}
	if gotCounter != counter {
		t.Fatalf("counter = %d, want %d", gotCounter, counter)
	}
}

func TestValidateSDMURLRejectsWrongKey(t *testing.T) {
	key := bytes.Repeat([]byte{0x5A}, 16)
	wrongKey := bytes.Repeat([]byte{0x5B}, 16)
	uid := []byte{0x04, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66}

	url, err := GenerateSDMURL("https://example.com/tap", uid, 1, key)
	if err != nil {
		t.Fatalf("GenerateSDMURL: %v", err)
	}
	_, _, ok, err := ValidateSDMURL(url, wrongKey)
	if err != nil {
		t.Fatalf("ValidateSDMURL: %v", err)
	}
	if ok {
		t.Fatal("expected signature validation to fail under the wrong key")
	}
}

func TestValidateSDMURLRejectsTamperedCounter(t *testing.T) {
	key := bytes.Repeat([]byte{0x5A}, 16)
	uid := []byte{0x04, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66}

	urlA, err := GenerateSDMURL("https://example.com/tap", uid, 1, key)
	if err != nil {
		t.Fatalf("GenerateSDMURL: %v", err)
	}
	urlB, err := GenerateSDMURL("https://example.com/tap", uid, 2, key)
	if err != nil {
		t.Fatalf("GenerateSDMURL: %v", err)
	}

	piccA, _, _, err := ParseSDMURL(urlA)
	if err != nil {
		t.Fatalf("ParseSDMURL(A): %v", err)
	}
	_, macB, _, err := ParseSDMURL(urlB)
	if err != nil {
		t.Fatalf("ParseSDMURL(B): %v", err)
	}

	// Splice A's encrypted PICC data with B's MAC: the signature must not
	// validate against mismatched counters.
	spliced := "https://example.com/tap?picc_data=" + piccA + "&mac=" + macB
	_, _, ok, err := ValidateSDMURL(spliced, key)
	if err != nil {
		t.Fatalf("ValidateSDMURL(spliced): %v", err)
	}
	if ok {
		t.Fatal("expected a spliced PICC data/MAC pair to fail validation")
	}
}

func TestParseSDMURLRequiresPICCDataAndMAC(t *testing.T) {
	if _, _, _, err := ParseSDMURL("https://example.com/tap?mac=aa"); err == nil {
		t.Fatal("expected an error when picc_data is missing")
	}
	if _, _, _, err := ParseSDMURL("https://example.com/tap?picc_data=aa"); err == nil {
		t.Fatal("expected an error when mac is missing")
	}
}

func TestDecryptSDMFileDataRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x77}, 16)
	uid := []byte{0x04, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	counterLE := []byte{0x01, 0x00, 0x00}

	sesEncKey, err := deriveSDMFileReadENCKey(key, uid, counterLE)
	if err != nil {
		t.Fatalf("deriveSDMFileReadENCKey: %v", err)
	}
	plaintext := []byte("hello sdm file contents")
	padded := padISO9797M2(plaintext)
	iv := make([]byte, 16)
	encrypted, err := aesCBCEncrypt(sesEncKey, iv, padded)
	if err != nil {
		t.Fatalf("aesCBCEncrypt: %v", err)
	}

	got, err := DecryptSDMFileData(encrypted, key, uid, counterLE)
	if err != nil {
		t.Fatalf("DecryptSDMFileData: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("DecryptSDMFileData = %q, want %q", got, plaintext)
	}
}

func TestGenerateSDMURLRejectsBadUID(t *testing.T) {
	key := bytes.Repeat([]byte{0x5A}, 16)
	if _, err := GenerateSDMURL("https://example.com", []byte{0x01, 0x02}, 0, key); err == nil {
		t.Fatal("expected an error for a non-7-byte UID")
	}
	if _, err := GenerateSDMURL("https://example.com", bytes.Repeat([]byte{0x01}, 7), 0x01000000, key); err == nil {
		t.Fatal("expected an error for a counter exceeding 0xFFFFFF")
	}
}
