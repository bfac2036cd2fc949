// Package esia builds the client_secret parameter of the ESIA OAuth 2.0
// authorization and token requests: a detached CMS signature over the
// concatenation of scope, timestamp, client_id and state, in URL-safe base64.
package esia

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	esiasign "github.com/mdean75/esia-sign"
)

// TimestampLayout is the timestamp format ESIA expects, e.g.
// "2024.03.01 12:00:00 +0300".
const TimestampLayout = "2006.01.02 15:04:05 -0700"

// PayloadSigner signs a payload. *esiasign.Signer satisfies it.
type PayloadSigner interface {
	Sign(payload []byte) (*esiasign.SignatureResult, error)
}

// ClientSecretParams are the request parameters covered by client_secret.
// The same values must be sent alongside it.
type ClientSecretParams struct {
	// Scope is space separated, e.g. "openid fullname".
	Scope     string
	Timestamp time.Time
	ClientID  string
	// State is a UUID chosen per request; see NewState.
	State string
}

// FormattedTimestamp returns Timestamp in TimestampLayout.
func (p ClientSecretParams) FormattedTimestamp() string {
	return p.Timestamp.Format(TimestampLayout)
}

// Message returns the bytes to sign.
func (p ClientSecretParams) Message() []byte {
	return []byte(p.Scope + p.FormattedTimestamp() + p.ClientID + p.State)
}

func (p ClientSecretParams) validate() error {
	var errs []error
	if p.Scope == "" {
		errs = append(errs, errors.New("scope is empty"))
	}
	if p.ClientID == "" {
		errs = append(errs, errors.New("client id is empty"))
	}
	if p.Timestamp.IsZero() {
		errs = append(errs, errors.New("timestamp is zero"))
	}
	if p.State == "" {
		errs = append(errs, errors.New("state is empty"))
	}
	return errors.Join(errs...)
}

// NewState returns a random version 4 UUID for the state parameter.
func NewState() string {
	return uuid.NewString()
}

// ClientSecret signs p.Message() and returns the envelope in URL-safe base64.
func ClientSecret(signer PayloadSigner, p ClientSecretParams) (string, error) {
	if err := p.validate(); err != nil {
		return "", fmt.Errorf("esia: invalid client secret parameters: %w", err)
	}
	res, err := signer.Sign(p.Message())
	if err != nil {
		return "", fmt.Errorf("esia: sign client secret: %w", err)
	}
	if !res.Detached {
		return "", errors.New("esia: client secret requires a detached signature")
	}
	return res.Base64URL(), nil
}
