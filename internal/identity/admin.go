package identity

import (
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthenticated is returned for unknown administrators or wrong passwords.
var ErrUnauthenticated = errors.New("invalid credentials")

// AdminDirectory authenticates the administrator. Several aliases may log in
// with the same password; the alias used becomes the resolver identity.
type AdminDirectory struct {
	aliases      mapset.Set[string]
	passwordHash []byte
}

// NewAdminDirectory builds a directory from a bcrypt hash.
func NewAdminDirectory(aliases []string, passwordHash []byte) (*AdminDirectory, error) {
	set := mapset.NewSet[string]()
	for _, a := range aliases {
		if a = EmailAccountKey(a); a != "" {
			set.Add(a)
		}
	}
	if set.Cardinality() == 0 {
		return nil, fmt.Errorf("at least one admin alias is required")
	}
	if _, err := bcrypt.Cost(passwordHash); err != nil {
		return nil, fmt.Errorf("admin password hash: %w", err)
	}
	return &AdminDirectory{aliases: set, passwordHash: passwordHash}, nil
}

// NewAdminDirectoryFromPassword hashes a plaintext password with bcrypt.
func NewAdminDirectoryFromPassword(aliases []string, password string) (*AdminDirectory, error) {
	if len(password) < 8 {
		return nil, fmt.Errorf("admin password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return NewAdminDirectory(aliases, hash)
}

// Authenticate verifies the credential and returns the resolver identity.
func (d *AdminDirectory) Authenticate(email, password string) (string, error) {
	alias := EmailAccountKey(email)
	if !d.aliases.Contains(alias) {
		return "", ErrUnauthenticated
	}
	if err := bcrypt.CompareHashAndPassword(d.passwordHash, []byte(password)); err != nil {
		return "", ErrUnauthenticated
	}
	return alias, nil
}

// IsAdmin reports whether email is a known alias.
func (d *AdminDirectory) IsAdmin(email string) bool {
	return d.aliases.Contains(EmailAccountKey(email))
}

// Aliases lists the configured aliases.
func (d *AdminDirectory) Aliases() []string {
	out := d.aliases.ToSlice()
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out
}
