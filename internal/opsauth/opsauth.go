// Package opsauth guards the operational endpoints with HTTP Basic auth.
// Credentials live in a file of "user:$argon2id$..." lines.
package opsauth

import (
	"bufio"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

// Realm is sent in the WWW-Authenticate challenge.
const Realm = "meradin ops"

// Credentials maps user names to encoded password hashes.
type Credentials struct {
	users map[string]string
}

// Load reads a credentials file. A missing path yields nil credentials
// and no error, which leaves the ops endpoints open.
func Load(path string) (*Credentials, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFile, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads "user:hash" lines. Blank lines and lines starting with '#'
// are skipped.
func Parse(r io.Reader) (*Credentials, error) {
	c := &Credentials{users: make(map[string]string)}
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		user, hash, ok := strings.Cut(line, ":")
		if !ok || user == "" || !strings.HasPrefix(hash, "$argon2id$") {
			return nil, fmt.Errorf("%w: line %d", ErrMalformed, lineNo)
		}
		c.users[user] = hash
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFile, err)
	}
	return c, nil
}

// Len returns the number of known users.
func (c *Credentials) Len() int {
	if c == nil {
		return 0
	}
	return len(c.users)
}

// Check reports whether user and password match a stored entry.
func (c *Credentials) Check(user, password string) bool {
	if c == nil {
		return false
	}
	hash, ok := c.users[user]
	if !ok {
		// Unknown users still pay the hash cost.
		hash = dummyHash()
	}
	match, err := VerifyPassword(password, hash)
	return ok && err == nil && match
}

// Require wraps next with a Basic auth check. Nil or empty credentials
// disable the check.
func (c *Credentials) Require(next http.Handler) http.Handler {
	if c.Len() == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || !c.Check(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HashPassword creates an Argon2id hash of password in the PHC string
// format.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPass
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSalt, err)
	}
	return encode(password, salt), nil
}

func encode(password string, salt []byte) string {
	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

// VerifyPassword compares password against an encoded Argon2id hash.
func VerifyPassword(password, hash string) (bool, error) {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, fmt.Errorf("%w: unsupported version", ErrInvalidHash)
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, fmt.Errorf("%w: bad key", ErrInvalidHash)
	}

	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

// Line formats one credentials file entry.
func Line(user, password string) (string, error) {
	if user == "" || strings.Contains(user, ":") {
		return "", ErrEmptyUser
	}
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}
	return user + ":" + hash + "\n", nil
}

// WriteFile writes a single-user credentials file with mode 0600. An
// existing file is replaced only when overwrite is set.
func WriteFile(path, user, password string, overwrite bool) error {
	line, err := Line(user, password)
	if err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrFileExists, path)
		}
		return fmt.Errorf("%w: %w", ErrWriteFile, err)
	}
	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", ErrWriteFile, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFile, err)
	}
	return nil
}

var dummyHash = sync.OnceValue(func() string {
	return encode("meradin", make([]byte, saltLen))
})
