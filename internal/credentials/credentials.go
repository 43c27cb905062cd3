package credentials

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// ErrCredentialFormat is returned when the secrets file has fewer than two lines.
var ErrCredentialFormat = errors.New("credentials: secrets file must contain a username line and a password line")

// requiredLines is the number of lines a secrets file must provide.
const requiredLines = 2

// Credentials holds a broker username and password.
type Credentials struct {
	Username string
	Password string
}

// String implements fmt.Stringer without revealing the password.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q, Password: [REDACTED]}", c.Username)
}

// LogValue implements slog.LogValuer so the password never reaches structured logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.String("username", c.Username))
}

// Load reads credentials from the secrets file at path.
//
// Lines may end in LF or CRLF. Returns ErrCredentialFormat if the file has
// fewer than two lines, or a wrapped I/O error if it cannot be read.
func Load(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading secrets file: %w", err)
	}
	return Parse(data)
}

// Parse extracts credentials from the contents of a secrets file.
func Parse(data []byte) (Credentials, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))

	var lines []string
	for len(lines) < requiredLines && scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return Credentials{}, fmt.Errorf("scanning secrets file: %w", err)
	}

	if len(lines) < requiredLines {
		return Credentials{}, fmt.Errorf("%w: found %d line(s)", ErrCredentialFormat, len(lines))
	}

	return Credentials{
		Username: lines[0],
		Password: lines[1],
	}, nil
}
