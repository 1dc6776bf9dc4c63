package oauth

import (
	"context"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Default user-info endpoints. Tests point them at local servers.
var (
	GoogleUserInfoURL  = "https://openidconnect.googleapis.com/v1/userinfo"
	GitHubUserURL      = "https://api.github.com/user"
	GitHubEmailsURL    = "https://api.github.com/user/emails"
	BitbucketUserURL   = "https://api.bitbucket.org/2.0/user"
	BitbucketEmailsURL = "https://api.bitbucket.org/2.0/user/emails"
	BitbucketAuthURL   = "https://bitbucket.org/site/oauth2/authorize"
	BitbucketTokenURL  = "https://bitbucket.org/site/oauth2/access_token"
)

// Google signs in with OpenID Connect user info.
func Google() Definition {
	return Definition{
		ID:       "google",
		Endpoint: endpoints.Google,
		Scopes:   []string{"openid", "email", "profile"},
		FetchProfile: func(ctx context.Context, api *API, tok *oauth2.Token) (*Profile, error) {
			var u struct {
				Sub     string `json:"sub"`
				Name    string `json:"name"`
				Email   string `json:"email"`
				Picture string `json:"picture"`
			}
			if err := api.GetJSON(ctx, tok, GoogleUserInfoURL, &u); err != nil {
				return nil, err
			}
			return &Profile{ID: u.Sub, Name: u.Name, Email: u.Email, Image: u.Picture}, nil
		},
	}
}

// GitHub reads /user and falls back to /user/emails when the public
// profile has no address.
func GitHub() Definition {
	return Definition{
		ID:       "github",
		Endpoint: endpoints.GitHub,
		Scopes:   []string{"read:user", "user:email"},
		FetchProfile: func(ctx context.Context, api *API, tok *oauth2.Token) (*Profile, error) {
			var u struct {
				ID        int64  `json:"id"`
				Login     string `json:"login"`
				Name      string `json:"name"`
				Email     string `json:"email"`
				AvatarURL string `json:"avatar_url"`
			}
			if err := api.GetJSON(ctx, tok, GitHubUserURL, &u); err != nil {
				return nil, err
			}

			p := &Profile{ID: strconv.FormatInt(u.ID, 10), Name: u.Name, Email: u.Email, Image: u.AvatarURL}
			if p.Name == "" {
				p.Name = u.Login
			}
			if p.Email == "" {
				var emails []struct {
					Email    string `json:"email"`
					Primary  bool   `json:"primary"`
					Verified bool   `json:"verified"`
				}
				if err := api.GetJSON(ctx, tok, GitHubEmailsURL, &emails); err != nil {
					return nil, err
				}
				for _, e := range emails {
					if e.Primary && e.Verified {
						p.Email = e.Email
						break
					}
				}
			}
			return p, nil
		},
	}
}

// Bitbucket is described in full: it has no OpenID user-info endpoint and
// the primary address needs a second call.
func Bitbucket() Definition {
	return Definition{
		ID: "bitbucket",
		Endpoint: oauth2.Endpoint{
			AuthURL:   BitbucketAuthURL,
			TokenURL:  BitbucketTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		Scopes: []string{"account", "email"},
		FetchProfile: func(ctx context.Context, api *API, tok *oauth2.Token) (*Profile, error) {
			var u struct {
				AccountID   string `json:"account_id"`
				Username    string `json:"username"`
				DisplayName string `json:"display_name"`
				Avatar      string `json:"avatar"`
				Links       struct {
					Avatar struct {
						Href string `json:"href"`
					} `json:"avatar"`
				} `json:"links"`
			}
			if err := api.GetJSON(ctx, tok, BitbucketUserURL, &u); err != nil {
				return nil, err
			}

			p := &Profile{ID: u.AccountID, Name: u.DisplayName, Image: u.Links.Avatar.Href}
			if p.Name == "" {
				p.Name = u.Username
			}
			if p.Image == "" {
				p.Image = u.Avatar
			}

			// The emails call is optional: a failure leaves the profile
			// without an address.
			var emails struct {
				Values []struct {
					Email     string `json:"email"`
					IsPrimary bool   `json:"is_primary"`
				} `json:"values"`
			}
			if err := api.GetJSON(ctx, tok, BitbucketEmailsURL, &emails); err == nil {
				for _, e := range emails.Values {
					if e.IsPrimary {
						p.Email = e.Email
						break
					}
				}
			}
			return p, nil
		},
	}
}
