package util

import (
	"crypto/rand"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/charmbracelet/ssh"
	"github.com/rs/zerolog/log"
	gossh "golang.org/x/crypto/ssh"
)

//go:embed version.txt
var embeddedVersion string

func LogPublicKey(s ssh.Session) {
	log.Info().
		Str("user", s.User()).
		Str("remote", s.RemoteAddr().String()).
		Str("key", PkToHash(PublicKeyToString(s.PublicKey()))).
		Msg("Opened admin ssh session")
}

func PublicKeyToString(s ssh.PublicKey) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(string(gossh.MarshalAuthorizedKey(s)))
}

// PkToHash is the fingerprint used in logs instead of the full key.
func PkToHash(pk string) string {
	h := sha256.Sum256([]byte(pk))
	return hex.EncodeToString(h[:])
}

func GetVersion() string {
	return strings.TrimSpace(embeddedVersion)
}

func GetNameAndVersion() string {
	return fmt.Sprintf("%s / %s", Name, GetVersion())
}

// RandomString returns length hex characters from crypto/rand. Used for
// generated node credentials.
func RandomString(length int) string {
	b := make([]byte, (length+1)/2)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)[:length]
}

func DateTimeFormat() string {
	return "2006-01-02 15:04:05"
}

// Abbreviate shortens s to max runes, ending in an ellipsis.
func Abbreviate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
