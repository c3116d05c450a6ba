package ntag424

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Send is the dispatcher (C4): given a native command, its cleartext
// header, its to-be-protected data, and a CommMode, it frames the request,
// transmits it, verifies and (for Full) decrypts the response, and advances
// the session's command counter and returns the result.
//
// Plain falls through with no protection. Mac and Full require an
// installed session for Mac to actually protect anything (Mac silently
// behaves as Plain without one); Full always requires one.
func Send(card Card, sess *Session, cmd byte, header, data []byte, mode CommMode) (*CommandResponse, error) {
	switch mode {
	case CommModePlain:
		return sendPlain(card, sess, cmd, header, data)
	case CommModeMac:
		return sendMac(card, sess, cmd, header, data)
	case CommModeFull:
		return sendFull(card, sess, cmd, header, data)
	default:
		return nil, fmt.Errorf("%w: comm mode %v", ErrUnsupportedVariant, mode)
	}
}

func sendPlain(card Card, sess *Session, cmd byte, header, data []byte) (*CommandResponse, error) {
	payload := make([]byte, 0, len(header)+len(data))
	payload = append(payload, header...)
	payload = append(payload, data...)
	apdu := buildNativeFrame(cmd, payload)

	resp, err := card.Transmit(apdu)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if sess != nil {
		sess.cmdCtr++
	}
	status, body, err := splitResponse(resp)
	if err != nil {
		return nil, err
	}
	return &CommandResponse{Status: status, Data: body}, nil
}

func sendMac(card Card, sess *Session, cmd byte, header, data []byte) (*CommandResponse, error) {
	if !sess.IsAuthenticated() {
		return sendPlain(card, sess, cmd, header, data)
	}
	auth := sess.auth

	macInput := make([]byte, 0, 1+2+4+len(header)+len(data))
	macInput = append(macInput, cmd)
	macInput = append(macInput, byte(sess.cmdCtr&0xFF), byte(sess.cmdCtr>>8))
	macInput = append(macInput, auth.TI[:]...)
	macInput = append(macInput, header...)
	macInput = append(macInput, data...)

	full, err := aesCMAC(auth.SesMacKey[:], macInput)
	if err != nil {
		return nil, err
	}
	requestMac := reduceMAC(full)

	payload := make([]byte, 0, len(header)+len(data)+len(requestMac))
	payload = append(payload, header...)
	payload = append(payload, data...)
	payload = append(payload, requestMac...)
	apdu := buildNativeFrame(cmd, payload)

	sess.log().Debug("secure messaging request",
		"cmd", fmt.Sprintf("0x%02X", cmd),
		"apdu", strings.ToUpper(hex.EncodeToString(apdu)),
		"mac_input", strings.ToUpper(hex.EncodeToString(macInput)),
		"request_mac", strings.ToUpper(hex.EncodeToString(requestMac)))

	resp, err := card.Transmit(apdu)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	// cmd_counter increments iff sendNative returned, whether status was OK or not.
	sess.cmdCtr++

	status, body, err := splitResponse(resp)
	if err != nil {
		return nil, err
	}
	if !isOKStatus(status) {
		// Error status: return as-is, skipping response MAC verification.
		return &CommandResponse{Status: status, Data: body}, nil
	}
	if len(body) == 0 {
		return &CommandResponse{Status: status}, nil
	}
	if len(body) < 8 {
		return nil, fmt.Errorf("%w: response shorter than MAC tag (len=%d)", ErrMalformedResponse, len(body))
	}

	payloadBody := body[:len(body)-8]
	responseMac := body[len(body)-8:]

	respMacInput := make([]byte, 0, 1+2+4+len(payloadBody))
	respMacInput = append(respMacInput, byte(status))
	respMacInput = append(respMacInput, byte(sess.cmdCtr&0xFF), byte(sess.cmdCtr>>8))
	respMacInput = append(respMacInput, auth.TI[:]...)
	respMacInput = append(respMacInput, payloadBody...)

	expectedFull, err := aesCMAC(auth.SesMacKey[:], respMacInput)
	if err != nil {
		return nil, err
	}
	expected := reduceMAC(expectedFull)
	if !constantTimeEqual(responseMac, expected) {
		return nil, ErrResponseMacMismatch
	}

	return &CommandResponse{Status: status, Data: payloadBody}, nil
}

func sendFull(card Card, sess *Session, cmd byte, header, data []byte) (*CommandResponse, error) {
	if !sess.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	auth := sess.auth

	encData := data
	if len(data) > 0 {
		ivIn := make([]byte, 16)
		ivIn[0], ivIn[1] = 0xA5, 0x5A
		copy(ivIn[2:6], auth.TI[:])
		ivIn[6], ivIn[7] = byte(sess.cmdCtr&0xFF), byte(sess.cmdCtr>>8)
		iv, err := aesECBEncrypt(auth.SesEncKey[:], ivIn)
		if err != nil {
			return nil, err
		}
		padded := padISO9797M2(data)
		encData, err = aesCBCEncrypt(auth.SesEncKey[:], iv, padded)
		if err != nil {
			return nil, err
		}
	} else {
		encData = []byte{}
	}

	resp, err := sendMac(card, sess, cmd, header, encData)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || !isOKStatus(resp.Status) {
		return resp, nil
	}

	ivIn := make([]byte, 16)
	ivIn[0], ivIn[1] = 0x5A, 0xA5
	copy(ivIn[2:6], auth.TI[:])
	ivIn[6], ivIn[7] = byte(sess.cmdCtr&0xFF), byte(sess.cmdCtr>>8)
	iv, err := aesECBEncrypt(auth.SesEncKey[:], ivIn)
	if err != nil {
		return nil, err
	}
	plaintext, err := aesCBCDecrypt(auth.SesEncKey[:], iv, resp.Data)
	if err != nil {
		return nil, err
	}
	plaintext, err = unpadISO9797M2(plaintext)
	if err != nil {
		return nil, err
	}
	return &CommandResponse{Status: resp.Status, Data: plaintext}, nil
}

// sendFullHelper is kept for call sites that only care about decrypted data
// and a plain error, matching the reference code's narrower SsmCmdFull shape.
func sendFullHelper(card Card, sess *Session, cmd byte, header, data []byte) ([]byte, error) {
	resp, err := sendFull(card, sess, cmd, header, data)
	if err != nil {
		return nil, err
	}
	if !resp.IsOK() {
		return nil, &CardError{Cmd: cmd, SW: resp.Status}
	}
	return resp.Data, nil
}
