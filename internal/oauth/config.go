package oauth

import "golang.org/x/oauth2"

const (
	authURL         = "https://api.prod.whoop.com/oauth/oauth2/auth"
	defaultTokenURL = "https://api.prod.whoop.com/oauth/oauth2/token" //nolint:gosec // not credentials, just endpoint URL
)

var scopes = []string{
	"offline",
	"read:recovery",
	"read:cycles",
	"read:sleep",
	"read:workout",
	"read:profile",
	"read:body_measurement",
}

// Endpoint holds the provider OAuth application settings. TokenURL is
// overridable so tests can point refreshes at a local server.
type Endpoint struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenURL     string
}

func NewConfig(e Endpoint) *oauth2.Config {
	tokenURL := e.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	return &oauth2.Config{
		ClientID:     e.ClientID,
		ClientSecret: e.ClientSecret,
		RedirectURL:  e.RedirectURL,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}
}
