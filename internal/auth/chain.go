// ABOUTME: Verifier chaining so JWT and static-token auth can be
// ABOUTME: enabled side by side.

package auth

// Chain tries each verifier in order and returns the first success. The
// last verifier's error is surfaced when none accepts the token.
type Chain []TokenVerifier

func (c Chain) Verify(token string) (string, error) {
	err := error(ErrInvalidToken)
	for _, v := range c {
		subject, verr := v.Verify(token)
		if verr == nil {
			return subject, nil
		}
		err = verr
	}
	return "", err
}
