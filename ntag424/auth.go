package ntag424

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// AuthError represents an authentication failure at a specific step.
type AuthError struct {
	Step    string // "step1" or "step2"
	SW      uint16 // Status word (if applicable)
	RespLen int    // Response length (if applicable)
	Cause   error  // Underlying error
}

func (e *AuthError) Error() string {
	if e == nil {
		return "auth error"
	}
	if e.Cause != nil {
		return fmt.Sprintf("auth %s failed: %v", e.Step, e.Cause)
	}
	return fmt.Sprintf("auth %s failed (SW=%04X len=%d)", e.Step, e.SW, e.RespLen)
}

func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ClassifyAuthError extracts details from an AuthError.
func ClassifyAuthError(err error) (step string, sw uint16, respLen int, ok bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Step, authErr.SW, authErr.RespLen, true
	}
	return "", 0, 0, false
}

// AuthenticateEV2First performs the AuthenticateEV2First handshake
// (native INS 0x71, then 0xAF) and, on full success, atomically installs
// the derived AuthState on sess and resets its command counter to 0. On
// any failure the existing session, if any, is left untouched.
//
// Environment variables for testing:
//   - NTAG_RNDA: 32-character hex string to override random RndA generation
func AuthenticateEV2First(card Card, sess *Session, key []byte, keyNo byte) error {
	auth, err := authenticateEV2First(card, sess, key, keyNo)
	if err != nil {
		return err
	}
	sess.auth = auth
	sess.cmdCtr = 0
	return nil
}

func authenticateEV2First(card Card, sess *Session, key []byte, keyNo byte) (*AuthState, error) {
	// Step 1: send keyNo, receive encrypted RndB.
	apdu1 := []byte{0x90, 0x71, 0x00, 0x00, 0x02, keyNo, 0x00, 0x00}
	resp1, sw, err := Transmit(card, apdu1)
	if err != nil {
		return nil, &AuthError{Step: "step1", Cause: err}
	}
	if sw != SWMoreData || len(resp1) != 16 {
		return nil, &AuthError{Step: "step1", SW: sw, RespLen: len(resp1)}
	}

	iv0 := make([]byte, 16)
	rndB, err := aesCBCDecrypt(key, iv0, resp1)
	if err != nil {
		return nil, &AuthError{Step: "step1", Cause: err}
	}

	rndA := make([]byte, 16)
	if rndAHex := os.Getenv("NTAG_RNDA"); len(rndAHex) == 32 {
		if b, err := hex.DecodeString(rndAHex); err == nil && len(b) == 16 {
			copy(rndA, b)
		} else if _, err := io.ReadFull(rand.Reader, rndA); err != nil {
			return nil, &AuthError{Step: "step1", Cause: err}
		}
	} else if _, err := io.ReadFull(rand.Reader, rndA); err != nil {
		return nil, &AuthError{Step: "step1", Cause: err}
	}

	// Step 2: send AES-CBC-Enc(key, RndA || rotate_left(RndB)), receive
	// AES-CBC-Enc(key, TI || RndA' || ...), where RndA' is RndA rotated
	// left; the host rotates it right and compares it with RndA.
	rndBRot := rotateLeft1(rndB)
	rndAB := append(append([]byte{}, rndA...), rndBRot...)
	rndABEnc, err := aesCBCEncrypt(key, iv0, rndAB)
	if err != nil {
		return nil, &AuthError{Step: "step2", Cause: err}
	}

	apdu2 := make([]byte, 0, 5+len(rndABEnc)+1)
	apdu2 = append(apdu2, 0x90, 0xAF, 0x00, 0x00, 0x20)
	apdu2 = append(apdu2, rndABEnc...)
	apdu2 = append(apdu2, 0x00)
	resp2, sw, err := Transmit(card, apdu2)
	if err != nil {
		return nil, &AuthError{Step: "step2", Cause: err}
	}
	if sw != SWDESFireOK || len(resp2) != 32 {
		return nil, &AuthError{Step: "step2", SW: sw, RespLen: len(resp2)}
	}

	dec, err := aesCBCDecrypt(key, iv0, resp2)
	if err != nil {
		return nil, &AuthError{Step: "step2", Cause: err}
	}

	ti := dec[:4]
	rndARot := dec[4:20]
	rndACheck := rotateRight1(rndARot)
	if !bytes.Equal(rndACheck, rndA) {
		return nil, &AuthError{Step: "step2", Cause: fmt.Errorf("%w", ErrAuthMismatch)}
	}

	// SV1/SV2 per AN12196 §6.6.2.
	xor6 := make([]byte, 6)
	for i := 0; i < 6; i++ {
		xor6[i] = rndA[2+i] ^ rndB[i]
	}
	sv1 := make([]byte, 0, 32)
	sv1 = append(sv1, 0xA5, 0x5A, 0x00, 0x01, 0x00, 0x80)
	sv1 = append(sv1, rndA[:2]...)
	sv1 = append(sv1, xor6...)
	sv1 = append(sv1, rndB[6:16]...)
	sv1 = append(sv1, rndA[8:16]...)

	sv2 := make([]byte, 0, 32)
	sv2 = append(sv2, 0x5A, 0xA5, 0x00, 0x01, 0x00, 0x80)
	sv2 = append(sv2, rndA[:2]...)
	sv2 = append(sv2, xor6...)
	sv2 = append(sv2, rndB[6:16]...)
	sv2 = append(sv2, rndA[8:16]...)

	sesEncKey, err := aesCMAC(key, sv1)
	if err != nil {
		return nil, &AuthError{Step: "step2", Cause: err}
	}
	sesMacKey, err := aesCMAC(key, sv2)
	if err != nil {
		return nil, &AuthError{Step: "step2", Cause: err}
	}

	if sess != nil {
		sess.log().Debug("session keys derived",
			"rndA", strings.ToUpper(hex.EncodeToString(rndA)),
			"rndB", strings.ToUpper(hex.EncodeToString(rndB)),
			"ti", strings.ToUpper(hex.EncodeToString(ti)),
			"ses_enc_key", strings.ToUpper(hex.EncodeToString(sesEncKey)),
			"ses_mac_key", strings.ToUpper(hex.EncodeToString(sesMacKey)))
	}

	auth := &AuthState{KeyNo: keyNo}
	copy(auth.SesEncKey[:], sesEncKey)
	copy(auth.SesMacKey[:], sesMacKey)
	copy(auth.TI[:], ti)
	return auth, nil
}

// AuthenticateWithFallback attempts authentication with multiple key/slot
// combinations against sess, in order:
//  1. provided key with keyNo
//  2. provided key with altKeyNo (if different)
//  3. provided key with slot 0 (if neither keyNo nor altKeyNo is 0)
//  4. the all-zero key with slot 0 (if the provided key is not all-zero)
//
// Returns the effective key and slot used on success.
func AuthenticateWithFallback(card Card, sess *Session, key []byte, keyNo byte, altKeyNo byte) ([]byte, byte, error) {
	zeroKey := make([]byte, 16)
	type attempt struct {
		key   []byte
		keyNo byte
		label string
	}
	attempts := []attempt{
		{key: key, keyNo: keyNo, label: fmt.Sprintf("keyno %d (provided)", keyNo)},
	}
	if altKeyNo != keyNo {
		attempts = append(attempts, attempt{key: key, keyNo: altKeyNo, label: fmt.Sprintf("keyno %d (sdm-keyno)", altKeyNo)})
	}
	if keyNo != 0 && altKeyNo != 0 {
		attempts = append(attempts, attempt{key: key, keyNo: 0, label: "keyno 0 (same key)"})
	}
	if !isAllZero(key) {
		attempts = append(attempts, attempt{key: zeroKey, keyNo: 0, label: "keyno 0 (all-zero fallback)"})
	}

	var lastErr error
	for i, a := range attempts {
		err := AuthenticateEV2First(card, sess, a.key, a.keyNo)
		if err == nil {
			sess.log().Info("authenticated", "method", a.label)
			return a.key, a.keyNo, nil
		}
		if i > 0 {
			sess.log().Warn("auth attempt failed", "method", a.label, "error", err)
		}
		lastErr = err
	}
	return nil, 0, lastErr
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
