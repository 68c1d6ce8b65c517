// Package safe holds the guards relocate applies to untrusted input: signing
// secret length, navigation targets and request body size.
package safe

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// MinSecretLen is the minimum length of the JWT signing secret.
const MinSecretLen = 32

// MaxBody caps request bodies read by the HTTP surface (4 MiB: page
// snapshots travel in them).
const MaxBody = 4 << 20

var (
	ErrSecretTooShort = fmt.Errorf("safe: secret must be at least %d bytes", MinSecretLen)
	ErrPrivateTarget  = errors.New("safe: URL targets a private or loopback address")
	ErrScheme         = errors.New("safe: only http and https URLs can be opened")
	ErrTooLarge       = errors.New("safe: body too large")
)

// ValidateSecret checks that secret is at least MinSecretLen bytes.
func ValidateSecret(secret []byte) error {
	if len(secret) < MinSecretLen {
		return ErrSecretTooShort
	}
	return nil
}

// CheckURL reports whether rawURL may be opened in the shared browser.
// Only http and https are accepted. Unless allowPrivate is set, a host that
// is, or resolves to, a private or loopback address is rejected. Lookup
// failures are let through: navigation fails on its own.
func CheckURL(rawURL string, allowPrivate bool) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("safe: invalid URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ErrScheme
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("safe: URL has no host")
	}
	if allowPrivate {
		return nil
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isPrivate(addr) {
			return ErrPrivateTarget
		}
		return nil
	}
	if strings.EqualFold(host, "localhost") {
		return ErrPrivateTarget
	}
	addrs, err := net.LookupHost(host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if addr, err := netip.ParseAddr(a); err == nil && isPrivate(addr) {
			return ErrPrivateTarget
		}
	}
	return nil
}

// ReadLimited reads at most limit bytes from r.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return data, nil
}

func isPrivate(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}
