// Package referral manages referrers and their referral codes.
//
// A referral code is an 8-character opaque identifier tied one-to-one to a
// referrer. Codes are displayed as XXXX-XXXX but stored and compared without
// the hyphen. Resolution distinguishes three outcomes: malformed (bad shape,
// no store access needed), not found (well-formed but unregistered), and
// found. The first two are normal results, not failures.
package referral

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Code alphabet excludes 0/O, 1/I/L to keep codes transcribable over the
// phone. 30 symbols ^ 8 positions is plenty of space for collision retries.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// CodeLength is the canonical referral code length after normalization.
const CodeLength = 8

var (
	// ErrCodeMalformed indicates the code does not have the 8-character shape.
	ErrCodeMalformed = errors.New("referral code is malformed")
	// ErrCodeNotFound indicates a well-formed code with no matching referrer.
	ErrCodeNotFound = errors.New("referral code not found")
	// ErrReferrerNotFound indicates no referrer with the given ID.
	ErrReferrerNotFound = errors.New("referrer not found")
	// ErrCodeTaken indicates a code collision on create.
	ErrCodeTaken = errors.New("referral code already assigned")
)

// Referrer is an identity that hands out a referral code.
// The code is immutable once assigned and unique across all referrers.
type Referrer struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

// DisplayCode returns the code in its hyphenated XXXX-XXXX display form.
func (r *Referrer) DisplayCode() string {
	if len(r.Code) != CodeLength {
		return r.Code
	}
	return r.Code[:4] + "-" + r.Code[4:]
}

// HasContactChannel reports whether the referrer can be notified at all.
func (r *Referrer) HasContactChannel() bool {
	return r.Email != "" || r.Phone != ""
}

// Store persists referrers.
type Store interface {
	Create(ctx context.Context, r *Referrer) error
	Get(ctx context.Context, id string) (*Referrer, error)
	// FindByCode returns ErrCodeNotFound when no referrer has the code.
	FindByCode(ctx context.Context, code string) (*Referrer, error)
	// SetVerified updates the verified-identity flag.
	SetVerified(ctx context.Context, id string, verified bool) error
}

// Normalize uppercases a code and strips the single display hyphen.
// It does not validate; use ValidCode for that.
func Normalize(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) == CodeLength+1 && code[4] == '-' {
		code = code[:4] + code[5:]
	}
	return code
}

// ValidCode reports whether a normalized code has the canonical shape:
// exactly 8 characters from the code alphabet.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(codeAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
