package referral

import (
	"context"
	"crypto/rand"
	"fmt"
)

// Resolver validates referral code shape and resolves codes to referrers.
type Resolver struct {
	store Store
}

// NewResolver creates a resolver backed by the given store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve normalizes and resolves a referral code.
//
// Returns ErrCodeMalformed for codes that fail the shape check (decided
// without touching the store) and ErrCodeNotFound for well-formed codes with
// no registered referrer. Any other error is a store read failure.
func (r *Resolver) Resolve(ctx context.Context, code string) (*Referrer, error) {
	code = Normalize(code)
	if !ValidCode(code) {
		return nil, ErrCodeMalformed
	}

	ref, err := r.store.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// maxCodeAttempts bounds collision retries during code generation. With a
// 30^8 code space, more than a couple of attempts means the store is lying.
const maxCodeAttempts = 5

// NewCode generates a fresh referral code that is not yet assigned.
func (r *Resolver) NewCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := randomCode()
		_, err := r.store.FindByCode(ctx, code)
		if err == ErrCodeNotFound {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("check code availability: %w", err)
		}
		// Collision: draw again.
	}
	return "", fmt.Errorf("could not generate an unassigned code after %d attempts", maxCodeAttempts)
}

// randomCode draws 8 uniform characters from the code alphabet.
func randomCode() string {
	b := make([]byte, CodeLength)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	out := make([]byte, CodeLength)
	for i, v := range b {
		out[i] = codeAlphabet[int(v)%len(codeAlphabet)]
	}
	return string(out)
}
