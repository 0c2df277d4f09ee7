// ABOUTME: Bearer token extraction and the HTTP auth middleware that
// ABOUTME: injects the verified subject into the request context.

package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ExtractBearer pulls the token out of an Authorization header value.
func ExtractBearer(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", errors.New("authorization header is not a bearer token")
	}
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}

// Middleware verifies the bearer token on every request and attaches the
// subject to the context. When require is false, requests without
// credentials pass through anonymously; a present-but-invalid token is
// rejected either way.
func Middleware(verifier TokenVerifier, require bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := ExtractBearer(r.Header.Get("Authorization"))
			if err != nil {
				if require {
					http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			subject, err := verifier.Verify(token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			ctx := WithIdentity(r.Context(), Identity{Subject: subject})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
