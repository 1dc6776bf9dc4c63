// Package oauth adapts external identity providers to one capability set:
// build an authorization URL, exchange a code, fetch a canonical profile.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	apperrors "github.com/bouabca/hawiyat-site-sub000/pkg/errors"
	"github.com/bouabca/hawiyat-site-sub000/pkg/httpclient"
)

// Profile is the provider-independent identity returned after sign-in.
// Email is as supplied by the provider, not yet normalized.
type Profile struct {
	ID    string
	Name  string
	Email string
	Image string
}

// Provider is one configured identity provider.
type Provider interface {
	ID() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error)
}

// Credentials are the per-provider client settings.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Configured reports whether both client id and secret are set.
func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Definition describes a provider: its endpoints, scopes and how its
// user-info calls map onto a Profile. FetchProfile may make several calls.
type Definition struct {
	ID           string
	Endpoint     oauth2.Endpoint
	Scopes       []string
	FetchProfile func(ctx context.Context, api *API, token *oauth2.Token) (*Profile, error)
}

// API performs authenticated JSON calls against a provider through the
// shared circuit breaker.
type API struct {
	client   *httpclient.CircuitBreakerClient
	upstream string
}

// GetJSON fetches url with token and decodes the body into dst.
func (a *API) GetJSON(ctx context.Context, token *oauth2.Token, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	token.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return apperrors.Internal("identity provider is unavailable", err)
	}
	if !httpclient.IsSuccess(resp.StatusCode) {
		return httpclient.ParseResponseError(resp, a.upstream)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(dst); err != nil {
		return apperrors.Internal("", fmt.Errorf("decode %s response: %w", a.upstream, err))
	}
	return nil
}

type adapter struct {
	def    Definition
	config oauth2.Config
	client *httpclient.CircuitBreakerClient
	api    *API
}

// New builds a Provider from a definition. All HTTP, including the token
// exchange, goes through client.
func New(def Definition, creds Credentials, client *httpclient.CircuitBreakerClient) Provider {
	return &adapter{
		def: def,
		config: oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURL,
			Endpoint:     def.Endpoint,
			Scopes:       def.Scopes,
		},
		client: client,
		api:    &API{client: client, upstream: def.ID},
	}
}

func (a *adapter) ID() string { return a.def.ID }

func (a *adapter) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state)
}

func (a *adapter) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client.StandardClient())
	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			e := apperrors.Authentication(fmt.Sprintf("%s sign-in failed", a.def.ID))
			e.Err = err
			return nil, e
		}
		return nil, apperrors.Internal("identity provider is unavailable", err)
	}
	return tok, nil
}

func (a *adapter) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	return a.def.FetchProfile(ctx, a.api, token)
}
