package ntag424

// Card abstracts card transmit behavior for real PC/SC cards and test doubles.
// It is the reader port contract of the engine: transmit(frame) -> response,
// where response is the complete reply terminated by the 2-byte status word.
type Card interface {
	Transmit(apdu []byte) ([]byte, error)
}

// Transmit sends an APDU to the card and splits off the status word.
// Returns (response_data, status_word, error); response_data does NOT
// include the trailing SW bytes.
func Transmit(card Card, apdu []byte) ([]byte, uint16, error) {
	resp, err := card.Transmit(apdu)
	if err != nil {
		return nil, 0, err
	}
	status, body, err := splitResponse(resp)
	if err != nil {
		return nil, 0, err
	}
	return body, status, nil
}
