package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// GoogleOAuth resolves authorization codes through Google's OAuth endpoint.
type GoogleOAuth struct {
	config *oauth2.Config
}

func NewGoogleOAuth(clientID, clientSecret, redirectURL string) *GoogleOAuth {
	return &GoogleOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				googleoauth.UserinfoEmailScope,
				googleoauth.UserinfoProfileScope,
			},
		},
	}
}

// Email exchanges code and returns the account's verified email address.
func (g *GoogleOAuth) Email(ctx context.Context, code string) (string, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("code exchange failed: %w", err)
	}

	svc, err := googleoauth.NewService(ctx, option.WithTokenSource(g.config.TokenSource(ctx, token)))
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("userinfo request failed: %w", err)
	}
	if info.Email == "" || (info.VerifiedEmail != nil && !*info.VerifiedEmail) {
		return "", fmt.Errorf("google account has no verified email")
	}
	return info.Email, nil
}
