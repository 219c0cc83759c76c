package api

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

const authRealm = `Basic realm="camrelay"`

var (
	errAuthMissing = errors.New("authentication required")
	errAuthScheme  = errors.New("invalid authentication type")
	errAuthFormat  = errors.New("invalid credentials format")
)

// basicAuthMiddleware guards operations that declare a security requirement.
// Browsers cannot set headers on EventSource, so ?auth=<base64 user:pass> is
// accepted when no Authorization header is present.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		user, pass, err := credentials(ctx)
		if err != nil {
			s.challenge(ctx, err.Error(), err)
			return
		}
		if !equal(user, username) || !equal(pass, password) {
			s.challenge(ctx, "invalid credentials")
			return
		}
		next(ctx)
	}
}

func (s *Server) challenge(ctx huma.Context, msg string, errs ...error) {
	ctx.SetHeader("WWW-Authenticate", authRealm)
	_ = huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg, errs...)
}

func credentials(ctx huma.Context) (string, string, error) {
	var encoded string
	if header := ctx.Header("Authorization"); header != "" {
		const prefix = "Basic "
		if !strings.HasPrefix(header, prefix) {
			return "", "", errAuthScheme
		}
		encoded = header[len(prefix):]
	} else {
		encoded = ctx.Query("auth")
	}
	if encoded == "" {
		return "", "", errAuthMissing
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", errAuthFormat
	}
	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", errAuthFormat
	}
	return user, pass, nil
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
