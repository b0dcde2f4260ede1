// Package auth supplies access tokens for the remote conversion service.
package auth

import "context"

// Provider yields a valid access token for remote calls. An empty token or
// an error means the job cannot proceed and must surface as a
// not-authenticated failure, never as a per-page retry.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// StaticProvider returns a fixed token. Used when the operator supplies a
// token out of band, and throughout the tests.
type StaticProvider struct {
	AccessToken string
}

func (p StaticProvider) Token(context.Context) (string, error) {
	return p.AccessToken, nil
}
