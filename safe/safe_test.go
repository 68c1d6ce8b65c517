package safe

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestValidateSecret(t *testing.T) {
	if err := ValidateSecret([]byte("short")); !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("short secret: got %v", err)
	}
	if err := ValidateSecret(bytes.Repeat([]byte("a"), MinSecretLen)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr error
	}{
		{"https://93.184.215.14/board", nil},
		{"ftp://93.184.215.14/data", ErrScheme},
		{"javascript:alert(1)", ErrScheme},
		{"file:///etc/passwd", ErrScheme},
		{"http://127.0.0.1/admin", ErrPrivateTarget},
		{"http://10.0.0.1/internal", ErrPrivateTarget},
		{"http://192.168.1.1/api", ErrPrivateTarget},
		{"http://[::1]/api", ErrPrivateTarget},
		{"http://172.16.0.1/secret", ErrPrivateTarget},
		{"http://169.254.169.254/latest", ErrPrivateTarget},
		{"http://localhost:8080/", ErrPrivateTarget},
	}
	for _, tt := range tests {
		err := CheckURL(tt.url, false)
		if tt.wantErr == nil && err != nil {
			t.Errorf("CheckURL(%q): %v", tt.url, err)
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Errorf("CheckURL(%q): got %v, want %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestCheckURL_AllowPrivate(t *testing.T) {
	if err := CheckURL("http://127.0.0.1:9000/", true); err != nil {
		t.Fatalf("allowPrivate: %v", err)
	}
	if err := CheckURL("ftp://127.0.0.1/", true); !errors.Is(err, ErrScheme) {
		t.Fatalf("scheme still checked: %v", err)
	}
}

func TestReadLimited(t *testing.T) {
	data, err := ReadLimited(strings.NewReader("hello"), 5)
	if err != nil || string(data) != "hello" {
		t.Fatalf("got %q, %v", data, err)
	}
	if _, err := ReadLimited(strings.NewReader("hello!"), 5); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("over limit: got %v", err)
	}
}
