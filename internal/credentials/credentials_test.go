package credentials

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSecrets(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.txt")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write secrets file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantUser string
		wantPass string
		wantErr  error
	}{
		{name: "two lines", content: "user\npass", wantUser: "user", wantPass: "pass"},
		{name: "trailing newline", content: "user\npass\n", wantUser: "user", wantPass: "pass"},
		{name: "crlf", content: "user\r\npass\r\n", wantUser: "user", wantPass: "pass"},
		{name: "extra lines ignored", content: "user\npass\nextra\n", wantUser: "user", wantPass: "pass"},
		{name: "empty password line", content: "user\n\n", wantUser: "user", wantPass: ""},
		{name: "one line", content: "user\n", wantErr: ErrCredentialFormat},
		{name: "empty file", content: "", wantErr: ErrCredentialFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := Load(writeSecrets(t, tt.content))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if creds.Username != tt.wantUser || creds.Password != tt.wantPass {
				t.Errorf("Load() = %q/%q, want %q/%q", creds.Username, creds.Password, tt.wantUser, tt.wantPass)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
	if errors.Is(err, ErrCredentialFormat) {
		t.Error("missing file reported as format error")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}

func TestCredentials_Redaction(t *testing.T) {
	creds := Credentials{Username: "node", Password: "s3cret"}

	if strings.Contains(creds.String(), "s3cret") {
		t.Error("String() leaks password")
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("loaded", "credentials", creds)
	if strings.Contains(buf.String(), "s3cret") {
		t.Error("structured log leaks password")
	}
	if !strings.Contains(buf.String(), "node") {
		t.Error("structured log missing username")
	}
}
