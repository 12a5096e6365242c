package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// inbound prefixes, matched in this order:
const (
	prefixResponse    = "RESP="
	prefixCredentials = "TOKEN_AND_USER"
	prefixGameHash    = "CRC_FOUND_MD5"
	prefixReset       = "RESET"
	prefixReadCRC     = "READ_CRC"
	prefixStartWatch  = "START_WATCH"
)

var (
	ErrUnknownCommand = errors.New("protocol: unknown command")
	ErrMalformed      = errors.New("protocol: malformed command")
)

// Command is one parsed inbound line.
type Command interface {
	fmt.Stringer
	isCommand()
}

// Response answers an outbound request.
type Response struct {
	ID     uint8
	Status uint16
	Body   string
}

// Credentials carries the stored user name and API token.
type Credentials struct {
	User  string
	Token string
}

// GameHash carries the fingerprint resolved to the achievement database hash.
type GameHash struct {
	Hash string
}

type Reset struct{}
type ReadCRC struct{}
type StartWatch struct{}

func (Response) isCommand()    {}
func (Credentials) isCommand() {}
func (GameHash) isCommand()    {}
func (Reset) isCommand()       {}
func (ReadCRC) isCommand()     {}
func (StartWatch) isCommand()  {}

func (c Response) String() string {
	return fmt.Sprintf("RESP id=%02X status=%d len=%d", c.ID, c.Status, len(c.Body))
}
func (c Credentials) String() string { return fmt.Sprintf("TOKEN_AND_USER user=%s", c.User) }
func (c GameHash) String() string    { return fmt.Sprintf("CRC_FOUND_MD5 %s", c.Hash) }
func (Reset) String() string         { return "RESET" }
func (ReadCRC) String() string       { return "READ_CRC" }
func (StartWatch) String() string    { return "START_WATCH" }

// Parse decodes a line received from the co-processor.
func Parse(line string) (Command, error) {
	switch {
	case strings.HasPrefix(line, prefixResponse):
		return parseResponse(line[len(prefixResponse):])
	case strings.HasPrefix(line, prefixCredentials):
		return parseCredentials(line[len(prefixCredentials):])
	case strings.HasPrefix(line, prefixGameHash):
		return parseGameHash(line[len(prefixGameHash):])
	case strings.HasPrefix(line, prefixReset):
		return Reset{}, nil
	case strings.HasPrefix(line, prefixReadCRC):
		return ReadCRC{}, nil
	case strings.HasPrefix(line, prefixStartWatch):
		return StartWatch{}, nil
	}
	return nil, fmt.Errorf("%w: %.16q", ErrUnknownCommand, line)
}

// RESP=II;SSS;body
func parseResponse(s string) (Command, error) {
	if len(s) < 6 || s[2] != ';' || (len(s) > 6 && s[6] != ';') {
		return nil, fmt.Errorf("%w: response header %.12q", ErrMalformed, s)
	}
	id, err := strconv.ParseUint(s[0:2], 16, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: response id: %v", ErrMalformed, err)
	}
	status, err := strconv.ParseUint(s[3:6], 16, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: response status: %v", ErrMalformed, err)
	}
	body := ""
	if len(s) > 7 {
		body = s[7:]
	}
	return Response{ID: uint8(id), Status: uint16(status), Body: body}, nil
}

// TOKEN_AND_USER=user,token
func parseCredentials(s string) (Command, error) {
	s = strings.TrimPrefix(s, "=")
	user, token, ok := strings.Cut(s, ",")
	if !ok || user == "" {
		return nil, fmt.Errorf("%w: credentials", ErrMalformed)
	}
	return Credentials{User: user, Token: token}, nil
}

// CRC_FOUND_MD5=<32 hex chars>
func parseGameHash(s string) (Command, error) {
	s = strings.TrimPrefix(s, "=")
	if len(s) > 32 {
		s = s[:32]
	}
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: empty game hash", ErrMalformed)
	}
	return GameHash{Hash: strings.ToLower(s)}, nil
}
