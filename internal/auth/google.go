package auth

import (
	"context"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/snippetsmaster/snippets-back/internal/config"
)

const tokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

var ErrGoogleTokenInvalid = errors.New("google token verification failed")

type (
	// GoogleIdentity is the subset of the ID token payload the service needs
	// to map an assertion onto a local user.
	GoogleIdentity struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
		Aud   string `json:"aud"`
	}

	GoogleVerifier interface {
		Verify(ctx context.Context, idToken string) (*GoogleIdentity, error)
	}

	googleVerifier struct {
		client   *resty.Client
		url      string
		clientID string
	}
)

func NewGoogleVerifier(cfg *config.Config) GoogleVerifier {
	return &googleVerifier{
		client:   resty.New(),
		url:      tokenInfoURL,
		clientID: cfg.GoogleClientID,
	}
}

func (v *googleVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	identity := GoogleIdentity{}
	resp, err := v.client.R().
		SetContext(ctx).
		SetQueryParam("id_token", idToken).
		SetResult(&identity).
		Get(v.url)
	if err != nil {
		return nil, errors.Wrap(err, "call tokeninfo")
	}
	if resp.IsError() {
		return nil, ErrGoogleTokenInvalid
	}

	// The tokeninfo endpoint already rejects expired and badly signed
	// tokens; the audience still has to match our own client id.
	if v.clientID != "" && identity.Aud != v.clientID {
		return nil, ErrGoogleTokenInvalid
	}
	if identity.Email == "" {
		return nil, ErrGoogleTokenInvalid
	}

	return &identity, nil
}
