package ntag424

import (
	"bytes"
	"encoding/hex"
	"os"
	"testing"
)

// scriptedAuthCard plays the card side of AuthenticateEV2First: it decrypts
// step 2's RndA||RndB' under the shared key to recover RndA, then returns a
// properly encrypted TI||RndA' response, exactly as a real tag would.
type scriptedAuthCard struct {
	key  []byte
	rndB []byte
	ti   []byte

	calls int
}

func (c *scriptedAuthCard) Transmit(apdu []byte) ([]byte, error) {
	c.calls++
	iv0 := make([]byte, 16)
	switch apdu[1] {
	case 0x71:
		// AuthenticateEV2First step 1: respond with Enc(key, RndB), SW=91AF.
		encRndB, err := aesCBCEncrypt(c.key, iv0, c.rndB)
		if err != nil {
			return nil, err
		}
		return append(encRndB, 0x91, 0xAF), nil
	case 0xAF:
		// apdu = [CLA, INS, P1, P2, Lc, encRndARndB'(32 bytes), Le]
		enc := apdu[5 : 5+32]
		dec, err := aesCBCDecrypt(c.key, iv0, enc)
		if err != nil {
			return nil, err
		}
		rndA := dec[:16]
		rndBRotGot := dec[16:]
		if !bytes.Equal(rndBRotGot, rotateLeft1(c.rndB)) {
			return []byte{0x91, 0xAE}, nil // authentication error
		}
		rndARot := rotateRight1(rndA)
		plain := append(append([]byte{}, c.ti...), rndARot...)
		resp, err := aesCBCEncrypt(c.key, iv0, plain)
		if err != nil {
			return nil, err
		}
		return append(resp, 0x91, 0x00), nil
	default:
		return []byte{0x91, 0x1E}, nil
	}
}

func TestAuthenticateEV2FirstDerivesSessionKeys(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 16)
	rndA := bytes.Repeat([]byte{0x01}, 16)
	rndB := []byte{
		0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88,
		0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x00,
	}
	ti := []byte{0xCA, 0xFE, 0xBA, 0xBE}

	t.Setenv("NTAG_RNDA", "01010101010101010101010101010101")

	card := &scriptedAuthCard{key: key, rndB: rndB, ti: ti}
	sess := NewSession()
	sess.cmdCtr = 7 // must be reset to 0 on success

	if err := AuthenticateEV2First(card, sess, key, 0x03); err != nil {
		t.Fatalf("AuthenticateEV2First: %v", err)
	}
	if !sess.IsAuthenticated() {
		t.Fatal("expected session to be authenticated")
	}
	if sess.cmdCtr != 0 {
		t.Fatalf("cmdCtr = %d, want 0 after fresh authentication", sess.cmdCtr)
	}
	if sess.auth.KeyNo != 0x03 {
		t.Fatalf("KeyNo = %d, want 3", sess.auth.KeyNo)
	}
	if !bytes.Equal(sess.auth.TI[:], ti) {
		t.Fatalf("TI = %x, want %x", sess.auth.TI[:], ti)
	}

	xor6 := make([]byte, 6)
	for i := 0; i < 6; i++ {
		xor6[i] = rndA[2+i] ^ rndB[i]
	}
	sv1 := append([]byte{0xA5, 0x5A, 0x00, 0x01, 0x00, 0x80}, rndA[:2]...)
	sv1 = append(sv1, xor6...)
	sv1 = append(sv1, rndB[6:16]...)
	sv1 = append(sv1, rndA[8:16]...)
	sv2 := append([]byte{0x5A, 0xA5, 0x00, 0x01, 0x00, 0x80}, rndA[:2]...)
	sv2 = append(sv2, xor6...)
	sv2 = append(sv2, rndB[6:16]...)
	sv2 = append(sv2, rndA[8:16]...)

	wantEnc, err := aesCMAC(key, sv1)
	if err != nil {
		t.Fatalf("aesCMAC(sv1): %v", err)
	}
	wantMac, err := aesCMAC(key, sv2)
	if err != nil {
		t.Fatalf("aesCMAC(sv2): %v", err)
	}
	if !bytes.Equal(sess.auth.SesEncKey[:], wantEnc) {
		t.Fatalf("SesEncKey = %x, want %x", sess.auth.SesEncKey[:], wantEnc)
	}
	if !bytes.Equal(sess.auth.SesMacKey[:], wantMac) {
		t.Fatalf("SesMacKey = %x, want %x", sess.auth.SesMacKey[:], wantMac)
	}
}

// TestAuthenticateEV2FirstSessionKeyKAT pins the session-key derivation
// against the known-answer vector: key=16x00,
// RndA=b98f4c50cf1c2e084fd150e33992b048, RndB=91517975190dcea6104948efa3085c1b
// must derive ses_enc_key=7a93d6571e4b180fca6ac90c9a7488d4,
// ses_mac_key=fc4af159b62e549b5812394cab1918cc.
func TestAuthenticateEV2FirstSessionKeyKAT(t *testing.T) {
	key := make([]byte, 16)
	rndAHex := "b98f4c50cf1c2e084fd150e33992b048"
	rndB, err := hex.DecodeString("91517975190dcea6104948efa3085c1b")
	if err != nil {
		t.Fatalf("decode RndB: %v", err)
	}
	wantSesEncKey, err := hex.DecodeString("7a93d6571e4b180fca6ac90c9a7488d4")
	if err != nil {
		t.Fatalf("decode ses_enc_key: %v", err)
	}
	wantSesMacKey, err := hex.DecodeString("fc4af159b62e549b5812394cab1918cc")
	if err != nil {
		t.Fatalf("decode ses_mac_key: %v", err)
	}
	ti := []byte{0x00, 0x00, 0x00, 0x00}

	t.Setenv("NTAG_RNDA", rndAHex)

	card := &scriptedAuthCard{key: key, rndB: rndB, ti: ti}
	sess := NewSession()
	if err := AuthenticateEV2First(card, sess, key, 0x00); err != nil {
		t.Fatalf("AuthenticateEV2First: %v", err)
	}
	if !bytes.Equal(sess.auth.SesEncKey[:], wantSesEncKey) {
		t.Fatalf("SesEncKey = %x, want %x", sess.auth.SesEncKey[:], wantSesEncKey)
	}
	if !bytes.Equal(sess.auth.SesMacKey[:], wantSesMacKey) {
		t.Fatalf("SesMacKey = %x, want %x", sess.auth.SesMacKey[:], wantSesMacKey)
	}
}

func TestAuthenticateEV2FirstLeavesSessionUntouchedOnFailure(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 16)
	wrongKey := bytes.Repeat([]byte{0x99}, 16)
	rndB := bytes.Repeat([]byte{0x07}, 16)
	ti := []byte{0x01, 0x02, 0x03, 0x04}

	t.Setenv("NTAG_RNDA", "01010101010101010101010101010101")

	card := &scriptedAuthCard{key: key, rndB: rndB, ti: ti}
	sess := NewSession()
	prior := &AuthState{KeyNo: 0x09}
	sess.auth = prior
	sess.cmdCtr = 3

	if err := AuthenticateEV2First(card, sess, wrongKey, 0x03); err == nil {
		t.Fatal("expected authentication failure against a wrong key")
	}
	if sess.auth != prior {
		t.Fatal("failed authentication must not alter the existing session state")
	}
	if sess.cmdCtr != 3 {
		t.Fatalf("cmdCtr = %d, want unchanged 3", sess.cmdCtr)
	}
}

func TestAuthenticateWithFallbackTriesZeroKeyLast(t *testing.T) {
	factoryKey := make([]byte, 16)
	rndB := bytes.Repeat([]byte{0x0A}, 16)
	ti := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	os.Unsetenv("NTAG_RNDA")

	card := &scriptedAuthCard{key: factoryKey, rndB: rndB, ti: ti}
	sess := NewSession()

	wrongKey := bytes.Repeat([]byte{0x5A}, 16)
	usedKey, usedSlot, err := AuthenticateWithFallback(card, sess, wrongKey, 0x01, 0x02)
	if err != nil {
		t.Fatalf("AuthenticateWithFallback: %v", err)
	}
	if !bytes.Equal(usedKey, factoryKey) {
		t.Fatalf("usedKey = %x, want the all-zero factory key", usedKey)
	}
	if usedSlot != 0 {
		t.Fatalf("usedSlot = %d, want 0", usedSlot)
	}
	if !sess.IsAuthenticated() {
		t.Fatal("expected session to be authenticated after fallback")
	}
}

func TestAuthenticateWithFallbackFailsWhenNoAttemptSucceeds(t *testing.T) {
	card := &scriptedAuthCard{key: bytes.Repeat([]byte{0x11}, 16), rndB: bytes.Repeat([]byte{0x22}, 16), ti: []byte{0, 0, 0, 0}}
	sess := NewSession()

	_, _, err := AuthenticateWithFallback(card, sess, bytes.Repeat([]byte{0x33}, 16), 0x01, 0x02)
	if err == nil {
		t.Fatal("expected an error when every attempt is rejected")
	}
	if sess.IsAuthenticated() {
		t.Fatal("session must remain unauthenticated after every fallback attempt fails")
	}
}
