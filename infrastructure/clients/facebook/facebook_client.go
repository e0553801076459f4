package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"postpilot/domain/model"
	"postpilot/domain/repository"
	"postpilot/infrastructure/logger"
)

const graphBase = "https://graph.facebook.com/v19.0"

// Client publishes to a Facebook page feed and performs the long-lived
// token exchange the Graph API requires before page tokens can be fetched.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{httpClient: &http.Client{Timeout: 15 * time.Second}}
}

var _ repository.IPublisher = (*Client)(nil)

type longLivedParams struct {
	GrantType       string `url:"grant_type"`
	ClientID        string `url:"client_id"`
	ClientSecret    string `url:"client_secret"`
	FBExchangeToken string `url:"fb_exchange_token"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeLongLived upgrades a short-lived user token. Returns the long-lived
// token and its expiry.
func (c *Client) ExchangeLongLived(ctx context.Context, clientID, clientSecret, shortToken string) (string, *time.Time, error) {
	params, err := query.Values(longLivedParams{
		GrantType:       "fb_exchange_token",
		ClientID:        clientID,
		ClientSecret:    clientSecret,
		FBExchangeToken: shortToken,
	})
	if err != nil {
		return "", nil, err
	}
	body, err := c.get(ctx, fmt.Sprintf("%s/oauth/access_token?%s", graphBase, params.Encode()))
	if err != nil {
		return "", nil, fmt.Errorf("long-lived exchange: %w", err)
	}
	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", nil, fmt.Errorf("parse long-lived token: %w", err)
	}
	var expiresAt *time.Time
	if tok.ExpiresIn > 0 {
		t := time.Now().UTC().Add(time.Duration(tok.ExpiresIn) * time.Second)
		expiresAt = &t
	}
	return tok.AccessToken, expiresAt, nil
}

// Page is one entry of /me/accounts.
type Page struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

// ListPages fetches the pages the user token can manage.
func (c *Client) ListPages(ctx context.Context, userToken string) ([]Page, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/me/accounts?access_token=%s", graphBase, url.QueryEscape(userToken)))
	if err != nil {
		return nil, fmt.Errorf("pages fetch: %w", err)
	}
	var pages struct {
		Data []Page `json:"data"`
	}
	if err := json.Unmarshal(body, &pages); err != nil {
		return nil, fmt.Errorf("parse pages list: %w", err)
	}
	return pages.Data, nil
}

// Publish posts content to the connected page feed using the page token in
// the connection metadata.
func (c *Client) Publish(ctx context.Context, creds repository.Credentials, content string) (*model.PublishResult, error) {
	pageID := creds.Metadata["page_id"]
	if pageID == "" {
		return &model.PublishResult{Success: false, Error: "no_page_selected"}, nil
	}
	pageToken := creds.Metadata["page_token"]
	if pageToken == "" {
		pageToken = creds.AccessToken
	}
	form := url.Values{}
	form.Set("message", content)
	form.Set("access_token", pageToken)
	postURL := fmt.Sprintf("%s/%s/feed", graphBase, url.PathEscape(pageID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.GetLogger().WithField("body", string(body)).Warn("facebook feed post failed")
		return &model.PublishResult{Success: false, Error: fmt.Sprintf("facebook_post_failed:%s", string(body))}, nil
	}
	var fbResp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &fbResp); err != nil || fbResp.ID == "" {
		return &model.PublishResult{Success: false, Error: "parse_post_response_failed"}, nil
	}
	return &model.PublishResult{
		Success:  true,
		RemoteID: fbResp.ID,
		URL:      fmt.Sprintf("https://www.facebook.com/%s", fbResp.ID),
	}, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph api status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
