package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/tenantauth/tenantauth/internal/config"
	"github.com/tenantauth/tenantauth/internal/db/models"
)

const githubAPIBase = "https://api.github.com"

// GitHubProvider handles GitHub OAuth authentication. GitHub is plain
// OAuth2 without OIDC discovery, so the profile comes from the REST API
// rather than an ID token.
type GitHubProvider struct {
	oauth2  oauth2.Config
	apiBase string
}

// NewGitHubProvider creates a new GitHub OAuth provider.
func NewGitHubProvider(cfg config.OAuthProvider) *GitHubProvider {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"read:user", "user:email"}
	}

	return &GitHubProvider{
		oauth2: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     github.Endpoint,
			Scopes:       scopes,
		},
		apiBase: githubAPIBase,
	}
}

// AuthURL returns the GitHub authorization URL with the state token.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.oauth2.AuthCodeURL(state)
}

// ResolveIdentity exchanges the authorization code and fetches the
// user's profile. A missing email (private on the account and absent
// from /user/emails) is a hard failure.
func (p *GitHubProvider) ResolveIdentity(ctx context.Context, code string) (*Profile, error) {
	token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	client := p.oauth2.Client(ctx, token)

	var ghUser struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	if err := p.getJSON(ctx, client, "/user", &ghUser); err != nil {
		return nil, fmt.Errorf("failed to fetch github profile: %w", err)
	}

	email := ghUser.Email
	if email == "" {
		email, err = p.primaryEmail(ctx, client)
		if err != nil {
			return nil, err
		}
	}

	if email == "" {
		return nil, ErrProfileEmailMissing
	}

	firstName, lastName := splitFullName(ghUser.Name)

	return &Profile{
		Email:      email,
		FirstName:  firstName,
		LastName:   lastName,
		ExternalID: strconv.FormatInt(ghUser.ID, 10),
		Source:     models.AuthSourceGitHub,
	}, nil
}

// primaryEmail looks up the account's verified primary email, which the
// /user endpoint omits when the address is private.
func (p *GitHubProvider) primaryEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}

	if err := p.getJSON(ctx, client, "/user/emails", &emails); err != nil {
		return "", fmt.Errorf("failed to fetch github emails: %w", err)
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}

	return "", nil
}

func (p *GitHubProvider) getJSON(ctx context.Context, client *http.Client, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+path, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github api returned status %d for %s", resp.StatusCode, path)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func splitFullName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}

	parts := strings.SplitN(full, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}

	return parts[0], parts[1]
}
