package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"golang.org/x/oauth2"

	"postpilot/domain/model"
	"postpilot/domain/repository"
	"postpilot/infrastructure/cache"
	"postpilot/infrastructure/clients/facebook"
	"postpilot/infrastructure/configuration"
	"postpilot/infrastructure/logger"
	"postpilot/infrastructure/utils"
	"postpilot/infrastructure/vault"
)

var (
	ErrUnsupportedPlatform      = errors.New("unsupported platform")
	ErrMissingClientCredentials = errors.New("platform client credentials not configured")
	ErrInvalidState             = errors.New("invalid or expired state token")
	ErrNoRefreshToken           = errors.New("connection has no refresh token")
	ErrCredentialNotDecryptable = errors.New("stored credential could not be decrypted")
)

const stateTTL = 10 * time.Minute

// ExchangeOutcome is what the callback handler needs to finish the flow.
type ExchangeOutcome struct {
	UserID     string
	ReturnURL  string
	Profile    model.Profile
	Connection *model.Connection
}

// IOAuthUsecase drives the authorization-code flow per platform and the
// refresh-grant path used by the token refresh scheduler.
type IOAuthUsecase interface {
	BuildAuthorizationURL(ctx context.Context, userID, platform, returnURL string) (string, error)
	ExchangeCode(ctx context.Context, platform, code, state string) (*ExchangeOutcome, error)
	Refresh(ctx context.Context, connectionID int64) (*model.Connection, error)
	Disconnect(ctx context.Context, userID, platform string) error
}

type oauthUsecase struct {
	connRepo   repository.IConnection
	tokenVault *vault.Vault
	states     cache.IStateStore
	secretKey  string
	fb         *facebook.Client
	httpClient *http.Client
	lookup     func(string) (*configuration.Platform, bool)
}

func NewOAuthUsecase(connRepo repository.IConnection, tokenVault *vault.Vault, states cache.IStateStore, secretKey string, fb *facebook.Client) IOAuthUsecase {
	return &oauthUsecase{
		connRepo:   connRepo,
		tokenVault: tokenVault,
		states:     states,
		secretKey:  secretKey,
		fb:         fb,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		lookup:     configuration.GetPlatform,
	}
}

func (u *oauthUsecase) BuildAuthorizationURL(ctx context.Context, userID, platform, returnURL string) (string, error) {
	p, ok := u.lookup(platform)
	if !ok {
		return "", ErrUnsupportedPlatform
	}
	if p.ClientID == "" || p.ClientSecret == "" {
		return "", ErrMissingClientCredentials
	}

	now := time.Now().UTC()
	state, err := utils.GenerateToken(&model.StateClaims{
		UserID:    userID,
		Platform:  p.Name,
		ReturnURL: returnURL,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(stateTTL).Unix(),
		},
	}, u.secretKey)
	if err != nil {
		return "", err
	}

	conf := oauthConfig(p)
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline}
	if p.UsePKCE {
		verifier := oauth2.GenerateVerifier()
		if err := u.states.Put(ctx, state, verifier, stateTTL); err != nil {
			return "", fmt.Errorf("store pkce verifier: %w", err)
		}
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}
	return conf.AuthCodeURL(state, opts...), nil
}

func (u *oauthUsecase) ExchangeCode(ctx context.Context, platform, code, state string) (*ExchangeOutcome, error) {
	claims, err := u.verifyState(state)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(claims.Platform, platform) {
		return nil, ErrInvalidState
	}
	p, ok := u.lookup(claims.Platform)
	if !ok {
		return nil, ErrUnsupportedPlatform
	}
	if p.ClientID == "" || p.ClientSecret == "" {
		return nil, ErrMissingClientCredentials
	}

	conf := oauthConfig(p)
	var opts []oauth2.AuthCodeOption
	if p.UsePKCE {
		verifier, found := u.states.Consume(ctx, state)
		if !found {
			return nil, ErrInvalidState
		}
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	token, err := conf.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}

	accessToken := token.AccessToken
	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		t := token.Expiry.UTC()
		expiresAt = &t
	}

	metadata := map[string]string{}
	if p.LongLivedExchange {
		longLived, llExpiry, err := u.fb.ExchangeLongLived(ctx, p.ClientID, p.ClientSecret, accessToken)
		if err != nil {
			return nil, err
		}
		accessToken = longLived
		expiresAt = llExpiry
		pages, err := u.fb.ListPages(ctx, longLived)
		if err != nil {
			return nil, err
		}
		if len(pages) > 0 {
			// Auto-select the first page; page selection UI lives upstream.
			pageToken, err := u.tokenVault.Encrypt(pages[0].AccessToken)
			if err != nil {
				return nil, err
			}
			metadata["page_id"] = pages[0].ID
			metadata["page_name"] = pages[0].Name
			metadata["page_token"] = pageToken
		}
	}

	profile, err := u.fetchProfile(ctx, p, accessToken)
	if err != nil {
		return nil, err
	}

	encAccess, err := u.tokenVault.Encrypt(accessToken)
	if err != nil {
		return nil, err
	}
	encRefresh := ""
	if token.RefreshToken != "" {
		if encRefresh, err = u.tokenVault.Encrypt(token.RefreshToken); err != nil {
			return nil, err
		}
	}

	conn := &model.Connection{
		UserID:           claims.UserID,
		Platform:         p.Name,
		AccessToken:      encAccess,
		RefreshToken:     encRefresh,
		ExpiresAt:        expiresAt,
		PlatformUserID:   profile.ID,
		PlatformUsername: profile.Username,
		DisplayName:      profile.Name,
		Metadata:         metadata,
		Scopes:           strings.Join(p.Scopes, " "),
		Status:           model.ConnectionStatusActive,
	}
	if err := u.connRepo.Upsert(ctx, conn); err != nil {
		return nil, fmt.Errorf("store connection: %w", err)
	}
	logger.GetLogger().
		WithField("user_id", claims.UserID).
		WithField("platform", p.Name).
		Info("Platform connected")

	return &ExchangeOutcome{
		UserID:     claims.UserID,
		ReturnURL:  claims.ReturnURL,
		Profile:    *profile,
		Connection: conn,
	}, nil
}

func (u *oauthUsecase) Refresh(ctx context.Context, connectionID int64) (*model.Connection, error) {
	conn, err := u.connRepo.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	refreshToken := u.tokenVault.Decrypt(conn.RefreshToken)
	if vault.IsEnvelope(refreshToken) {
		return nil, ErrCredentialNotDecryptable
	}
	p, ok := u.lookup(conn.Platform)
	if !ok {
		return nil, ErrUnsupportedPlatform
	}

	conf := oauthConfig(p)
	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		detail := err.Error()
		if sErr := u.connRepo.UpdateStatus(ctx, conn.ID, model.ConnectionStatusError, &detail); sErr != nil {
			logger.GetLogger().WithField("error", sErr).Error("Failed to record refresh failure")
		}
		return nil, fmt.Errorf("refresh grant: %w", err)
	}

	encAccess, err := u.tokenVault.Encrypt(token.AccessToken)
	if err != nil {
		return nil, err
	}
	encRefresh := conn.RefreshToken
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		if encRefresh, err = u.tokenVault.Encrypt(token.RefreshToken); err != nil {
			return nil, err
		}
	}
	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		t := token.Expiry.UTC()
		expiresAt = &t
	}
	if err := u.connRepo.UpdateTokens(ctx, conn.ID, encAccess, encRefresh, expiresAt); err != nil {
		return nil, err
	}
	conn.AccessToken = encAccess
	conn.RefreshToken = encRefresh
	conn.ExpiresAt = expiresAt
	conn.Status = model.ConnectionStatusActive
	conn.LastError = nil
	return conn, nil
}

func (u *oauthUsecase) Disconnect(ctx context.Context, userID, platform string) error {
	return u.connRepo.Delete(ctx, userID, platform)
}

func (u *oauthUsecase) verifyState(state string) (*model.StateClaims, error) {
	claims := &model.StateClaims{}
	token, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(u.secretKey), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidState
	}
	return claims, nil
}

func (u *oauthUsecase) fetchProfile(ctx context.Context, p *configuration.Platform, accessToken string) (*model.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request: %w", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info status %d: %s", resp.StatusCode, string(body))
	}
	return normalizeProfile(p.Name, body)
}

// normalizeProfile is the only per-platform code in the coordinator; every
// other quirk is declarative platform configuration.
func normalizeProfile(platform string, body []byte) (*model.Profile, error) {
	switch platform {
	case "facebook":
		var v struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, err
		}
		return &model.Profile{ID: v.ID, Username: v.Name, Name: v.Name}, nil
	case "twitter":
		var v struct {
			Data struct {
				ID       string `json:"id"`
				Username string `json:"username"`
				Name     string `json:"name"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, err
		}
		return &model.Profile{ID: v.Data.ID, Username: v.Data.Username, Name: v.Data.Name}, nil
	case "linkedin":
		var v struct {
			Sub  string `json:"sub"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, err
		}
		return &model.Profile{ID: v.Sub, Username: v.Name, Name: v.Name}, nil
	case "reddit":
		var v struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, err
		}
		return &model.Profile{ID: v.ID, Username: v.Name, Name: v.Name}, nil
	default:
		var v struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Name     string `json:"name"`
		}
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, err
		}
		return &model.Profile{ID: v.ID, Username: v.Username, Name: v.Name}, nil
	}
}

func oauthConfig(p *configuration.Platform) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  p.RedirectURI,
		Scopes:       p.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.AuthURL,
			TokenURL:  p.TokenURL,
			AuthStyle: p.AuthStyle,
		},
	}
}
