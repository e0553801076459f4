package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"postpilot/domain/model"
	"postpilot/domain/repository"
	"postpilot/infrastructure/logger"
)

const submitURL = "https://oauth.reddit.com/api/submit"

const userAgent = "postpilot/1.0"

// Client submits self posts to the subreddit configured on the connection.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{httpClient: &http.Client{Timeout: 15 * time.Second}}
}

var _ repository.IPublisher = (*Client)(nil)

func (c *Client) Publish(ctx context.Context, creds repository.Credentials, content string) (*model.PublishResult, error) {
	subreddit := creds.Metadata["subreddit"]
	if subreddit == "" {
		return &model.PublishResult{Success: false, Error: "no_subreddit_configured"}, nil
	}
	title := content
	if idx := strings.IndexByte(title, '\n'); idx > 0 {
		title = title[:idx]
	}
	if len([]rune(title)) > 300 {
		title = string([]rune(title)[:300])
	}

	form := url.Values{}
	form.Set("sr", subreddit)
	form.Set("kind", "self")
	form.Set("title", title)
	form.Set("text", content)
	form.Set("api_type", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.GetLogger().WithField("status", resp.StatusCode).WithField("body", string(body)).Warn("reddit submit failed")
		return &model.PublishResult{Success: false, Error: fmt.Sprintf("reddit_post_failed:%s", string(body))}, nil
	}
	var rdResp struct {
		JSON struct {
			Errors [][]interface{} `json:"errors"`
			Data   struct {
				Name string `json:"name"`
				URL  string `json:"url"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := json.Unmarshal(body, &rdResp); err != nil {
		return &model.PublishResult{Success: false, Error: "parse_submit_response_failed"}, nil
	}
	if len(rdResp.JSON.Errors) > 0 {
		return &model.PublishResult{Success: false, Error: fmt.Sprintf("reddit_post_rejected:%v", rdResp.JSON.Errors)}, nil
	}
	return &model.PublishResult{
		Success:  true,
		RemoteID: rdResp.JSON.Data.Name,
		URL:      rdResp.JSON.Data.URL,
	}, nil
}
