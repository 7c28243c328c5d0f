package middleware

import (
	"fmt"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/deemkeen/chartreuse/util"
	"github.com/rs/zerolog/log"
)

// AdminKeys is the set of public keys allowed on the admin console.
type AdminKeys struct {
	keys []ssh.PublicKey
}

// ParseAdminKeys parses authorized_keys formatted lines. Any invalid line
// fails the whole set.
func ParseAdminKeys(lines []string) (*AdminKeys, error) {
	a := &AdminKeys{}
	for i, line := range lines {
		key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("admin key %d: %w", i+1, err)
		}
		a.keys = append(a.keys, key)
	}
	return a, nil
}

func (a *AdminKeys) Allowed(key ssh.PublicKey) bool {
	if a == nil || key == nil {
		return false
	}
	for _, k := range a.keys {
		if ssh.KeysEqual(k, key) {
			return true
		}
	}
	return false
}

func (a *AdminKeys) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// PublicKeyHandler is the wish public key callback for the admin server.
func (a *AdminKeys) PublicKeyHandler(ctx ssh.Context, key ssh.PublicKey) bool {
	ok := a.Allowed(key)
	if !ok {
		log.Warn().
			Str("user", ctx.User()).
			Str("remote", ctx.RemoteAddr().String()).
			Str("key", util.PkToHash(util.PublicKeyToString(key))).
			Msg("Rejected admin ssh key")
	}
	return ok
}

// AuthMiddleware re-checks the session key before any handler runs.
func AuthMiddleware(keys *AdminKeys) wish.Middleware {
	return func(h ssh.Handler) ssh.Handler {
		return func(s ssh.Session) {
			if !keys.Allowed(s.PublicKey()) {
				wish.Fatalln(s, "access denied")
				return
			}
			util.LogPublicKey(s)
			h(s)
		}
	}
}
