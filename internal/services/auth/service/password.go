package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"

	perr "opscreen/internal/platform/errors"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters, tuned for interactive login
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// HashPassword derives an argon2id hash in the standard modular-crypt encoding
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", perr.Internalf("salt generation: %v", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether the password matches the encoded hash
func VerifyPassword(encoded, password string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var mem, iter uint32
	var par uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, iter, mem, par, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// weakPasswords is a small denylist of values seen constantly in breach dumps
var weakPasswords = map[string]struct{}{
	"password":  {},
	"password1": {},
	"passw0rd":  {},
	"12345678":  {},
	"123456789": {},
	"qwerty123": {},
	"letmein1":  {},
	"welcome1":  {},
	"admin123":  {},
	"changeme":  {},
	"iloveyou1": {},
}

// CheckPasswordStrength enforces the signup/change-password rules: at least
// eight characters, at least one letter and one digit, not on the denylist
func CheckPasswordStrength(password string) error {
	if len(password) < 8 {
		return perr.WithField(perr.InvalidArgf("password must be at least 8 characters"), "password")
	}
	if _, weak := weakPasswords[strings.ToLower(password)]; weak {
		return perr.WithField(perr.InvalidArgf("password is too common"), "password")
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return perr.WithField(
			perr.InvalidArgf("password must contain at least one letter and one digit"), "password")
	}
	return nil
}
