package ntag424

import "fmt"

// transportCap is the max response length passed to the reader port, per
// the validated reader class (larger responses are not chained).
const transportCap = 0x80

// buildISOFrame wraps header/data/le into an ISO 7816-4 command frame.
// header must be exactly [CLA, INS, P1, P2]. le, if requestLe is true, is
// appended as a single short-form byte.
func buildISOFrame(header [4]byte, data []byte, requestLe bool, le byte) []byte {
	frame := make([]byte, 0, 4+1+len(data)+1)
	frame = append(frame, header[:]...)
	if len(data) > 0 {
		frame = append(frame, byte(len(data)&0xFF))
		frame = append(frame, data...)
	}
	if requestLe {
		frame = append(frame, le)
	}
	return frame
}

// buildNativeFrame wraps a DESFire native command (CLA=0x90) with the given
// instruction byte and payload (header||data||mac, already assembled by the
// caller). P1=P2=0x00, Le=0x00.
func buildNativeFrame(ins byte, payload []byte) []byte {
	header := [4]byte{0x90, ins, 0x00, 0x00}
	return buildISOFrame(header, payload, true, 0x00)
}

// splitResponse separates the trailing 2-byte status word from the
// preceding response body, if any.
func splitResponse(resp []byte) (status uint16, body []byte, err error) {
	if len(resp) < 2 {
		return 0, nil, fmt.Errorf("%w: response shorter than 2 bytes", ErrMalformedResponse)
	}
	status = uint16(resp[len(resp)-2])<<8 | uint16(resp[len(resp)-1])
	if len(resp) > 2 {
		body = resp[:len(resp)-2]
	}
	return status, body, nil
}
