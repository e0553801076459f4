package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"postpilot/domain/model"
	"postpilot/domain/repository"
	"postpilot/infrastructure/logger"
)

const tweetsURL = "https://api.twitter.com/2/tweets"

// Twitter caps tweet text; longer content is truncated with an ellipsis.
const maxTweetLen = 280

// Client posts tweets through the v2 API.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{httpClient: &http.Client{Timeout: 15 * time.Second}}
}

var _ repository.IPublisher = (*Client)(nil)

func (c *Client) Publish(ctx context.Context, creds repository.Credentials, content string) (*model.PublishResult, error) {
	text := content
	if len([]rune(text)) > maxTweetLen {
		runes := []rune(text)
		text = string(runes[:maxTweetLen-1]) + "…"
	}
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tweetsURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		logger.GetLogger().WithField("status", resp.StatusCode).WithField("body", string(body)).Warn("tweet create failed")
		return &model.PublishResult{Success: false, Error: fmt.Sprintf("twitter_post_failed:%s", string(body))}, nil
	}
	var twResp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &twResp); err != nil || twResp.Data.ID == "" {
		return &model.PublishResult{Success: false, Error: "parse_tweet_response_failed"}, nil
	}
	return &model.PublishResult{
		Success:  true,
		RemoteID: twResp.Data.ID,
		URL:      fmt.Sprintf("https://twitter.com/i/web/status/%s", twResp.Data.ID),
	}, nil
}
