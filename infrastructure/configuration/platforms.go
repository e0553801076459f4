package configuration

import (
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// Platform describes one destination platform's OAuth quirks declaratively.
// The exchange coordinator consumes these records instead of branching per
// platform; user-info normalization is the only per-platform code.
type Platform struct {
	Name        string
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	Scopes      []string
	// AuthStyle selects form-body vs basic-auth header token exchange.
	AuthStyle oauth2.AuthStyle
	// UsePKCE adds a verifier/challenge pair to the authorization flow.
	UsePKCE bool
	// LongLivedExchange upgrades the short-lived token after the code
	// exchange (Facebook fb_exchange_token).
	LongLivedExchange bool

	ClientID     string
	ClientSecret string
	RedirectURI  string
}

var platforms = map[string]Platform{
	"facebook": {
		Name:              "facebook",
		AuthURL:           "https://www.facebook.com/v19.0/dialog/oauth",
		TokenURL:          "https://graph.facebook.com/v19.0/oauth/access_token",
		UserInfoURL:       "https://graph.facebook.com/v19.0/me?fields=id,name",
		Scopes:            []string{"pages_show_list", "pages_read_engagement", "pages_manage_posts", "public_profile"},
		AuthStyle:         oauth2.AuthStyleInParams,
		LongLivedExchange: true,
	},
	"twitter": {
		Name:        "twitter",
		AuthURL:     "https://twitter.com/i/oauth2/authorize",
		TokenURL:    "https://api.twitter.com/2/oauth2/token",
		UserInfoURL: "https://api.twitter.com/2/users/me",
		Scopes:      []string{"tweet.read", "tweet.write", "users.read", "offline.access"},
		AuthStyle:   oauth2.AuthStyleInHeader,
		UsePKCE:     true,
	},
	"linkedin": {
		Name:        "linkedin",
		AuthURL:     "https://www.linkedin.com/oauth/v2/authorization",
		TokenURL:    "https://www.linkedin.com/oauth/v2/accessToken",
		UserInfoURL: "https://api.linkedin.com/v2/userinfo",
		Scopes:      []string{"openid", "profile", "w_member_social"},
		AuthStyle:   oauth2.AuthStyleInParams,
	},
	"reddit": {
		Name:        "reddit",
		AuthURL:     "https://www.reddit.com/api/v1/authorize",
		TokenURL:    "https://www.reddit.com/api/v1/access_token",
		UserInfoURL: "https://oauth.reddit.com/api/v1/me",
		Scopes:      []string{"identity", "submit"},
		AuthStyle:   oauth2.AuthStyleInHeader,
	},
}

// GetPlatform returns the platform descriptor merged with the configured
// client credentials. The second return is false for unknown platforms.
func GetPlatform(name string) (*Platform, bool) {
	p, ok := platforms[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	if client, ok := C.OAuth[p.Name]; ok {
		p.ClientID = client.ClientID
		p.ClientSecret = client.ClientSecret
		p.RedirectURI = client.RedirectURI
	}
	if p.RedirectURI == "" {
		p.RedirectURI = fmt.Sprintf("%s/auth/%s/callback", C.App.BaseURL, p.Name)
	}
	return &p, true
}

// PlatformNames lists the supported platform identifiers.
func PlatformNames() []string {
	names := make([]string, 0, len(platforms))
	for name := range platforms {
		names = append(names, name)
	}
	return names
}
