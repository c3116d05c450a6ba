package ntag424

import "log/slog"

// CommMode is the 2-bit wire encoding of how a command is framed: whether
// its request/response carries a CMAC, is encrypted, or neither.
type CommMode byte

const (
	// CommModePlain sends the native frame as-is: no MAC, no encryption.
	CommModePlain CommMode = 0b00
	// CommModeMac adds a truncated request CMAC and verifies the response CMAC.
	CommModeMac CommMode = 0b01
	// CommModeFull additionally AES-CBC encrypts the request/response payload.
	CommModeFull CommMode = 0b11
)

// String renders the symbolic CommMode name.
func (m CommMode) String() string {
	switch m {
	case CommModePlain:
		return "plain"
	case CommModeMac:
		return "mac"
	case CommModeFull:
		return "full"
	default:
		return "invalid"
	}
}

// ParseCommMode maps a symbolic name back to its CommMode, the inverse of String.
func ParseCommMode(name string) (CommMode, bool) {
	switch name {
	case "plain":
		return CommModePlain, true
	case "mac":
		return CommModeMac, true
	case "full":
		return CommModeFull, true
	default:
		return 0, false
	}
}

// IsValid reports whether m is one of the three defined encodings; 0b10 is
// not a valid CommMode.
func (m CommMode) IsValid() bool {
	return m == CommModePlain || m == CommModeMac || m == CommModeFull
}

// AuthState holds the session keys and transaction identifier installed by
// a successful AuthenticateEV2First. It is immutable once installed; a new
// AuthState entirely replaces the old one.
type AuthState struct {
	TI        [4]byte
	SesEncKey [16]byte
	SesMacKey [16]byte
	KeyNo     byte
}

// Session is the mutable, single-owner state attached to one tag session:
// the command counter and the currently installed authentication state, if
// any. Both fields are owned exclusively by the Session and mutated only by
// the dispatcher (cmdCtr) and by AuthenticateEV2First (auth).
type Session struct {
	cmdCtr uint16
	auth   *AuthState
	logger *slog.Logger
}

// NewSession returns an unauthenticated session.
func NewSession() *Session {
	return &Session{}
}

// IsAuthenticated reports whether an AuthState is currently installed.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.auth != nil
}

// SetLogger installs a structured logger; with a nil logger the session
// logs through slog.Default().
func (s *Session) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

func (s *Session) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// CmdCtr returns the current command counter value.
func (s *Session) CmdCtr() uint16 {
	return s.cmdCtr
}

// CommandResponse is the result of a dispatched command: the raw two status
// bytes and, if any, the payload preceding them (already decrypted, for
// CommModeFull).
type CommandResponse struct {
	Status uint16
	Data   []byte
}

// IsOK implements the spec's is_ok predicate.
func (r *CommandResponse) IsOK() bool {
	return r != nil && isOKStatus(r.Status)
}
