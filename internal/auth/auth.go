package auth

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Brownie44l1/originserver/internal/headers"
)

// PasswordFile is the sidecar file whose presence gates a directory
const PasswordFile = ".password"

// Realm is sent in the WWW-Authenticate challenge
const Realm = "667 Server"

// Challenge is the WWW-Authenticate header value for a 401
var Challenge = fmt.Sprintf("Basic realm=%q", Realm)

// Decision is the outcome of the authentication gate
type Decision int

const (
	NoAuthRequired Decision = iota
	MissingCredentials
	InvalidCredentials
	Authorized
)

func (d Decision) String() string {
	switch d {
	case NoAuthRequired:
		return "no-auth-required"
	case MissingCredentials:
		return "missing-credentials"
	case InvalidCredentials:
		return "invalid-credentials"
	case Authorized:
		return "authorized"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Allowed reports whether the request may proceed to method dispatch
func (d Decision) Allowed() bool {
	return d == NoAuthRequired || d == Authorized
}

var errNotBasic = errors.New("authorization scheme is not Basic")

// Store answers membership queries against one credentials file.
// The file is opened and scanned on every call so edits apply immediately.
type Store struct {
	path string
}

// NewStore returns a store backed by the file at path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Contains reports whether credentials ("user:pass") appear as a line
// in the file. Both sides are trimmed before comparison.
func (s *Store) Contains(credentials string) (bool, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	want := strings.TrimSpace(credentials)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == want {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// DecodeBasic extracts the "user:pass" plaintext from a Basic
// Authorization header value. The scheme match is case-insensitive.
func DecodeBasic(value string) (string, error) {
	const prefix = "basic "
	if len(value) < len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
		return "", errNotBasic
	}
	encoded := strings.TrimSpace(value[len(prefix):])
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode credentials: %w", err)
	}
	return string(decoded), nil
}

// Gate decides whether a request for resolvedPath may proceed
type Gate struct{}

// StoreFor returns the credential store guarding resolvedPath, or nil
// when the containing directory has no password file. Existence alone
// gates the directory; an unreadable file rejects every credential.
func (Gate) StoreFor(resolvedPath string) *Store {
	path := filepath.Join(filepath.Dir(resolvedPath), PasswordFile)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return NewStore(path)
}

// Check evaluates the gate for one request
func (g Gate) Check(resolvedPath string, h *headers.Headers) Decision {
	store := g.StoreFor(resolvedPath)
	if store == nil {
		return NoAuthRequired
	}

	value, ok := h.Get("authorization")
	if !ok {
		return MissingCredentials
	}

	credentials, err := DecodeBasic(value)
	if err != nil {
		return InvalidCredentials
	}

	ok, err = store.Contains(credentials)
	if err != nil || !ok {
		return InvalidCredentials
	}
	return Authorized
}
