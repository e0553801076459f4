package linkedin

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

const ugcPostsURL = "https://api.linkedin.com/v2/ugcPosts"

// Client creates member shares through the UGC Posts API.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{httpClient: &http.Client{Timeout: 15 * time.Second}}
}

var _ repository.IPublisher = (*Client)(nil)

func (c *Client) Publish(ctx context.Context, creds repository.Credentials, content string) (*model.PublishResult, error) {
	if creds.PlatformUserID == "" {
		return &model.PublishResult{Success: false, Error: "missing_member_id"}, nil
	}
	payload, err := json.Marshal(map[string]interface{}{
		"author":         fmt.Sprintf("urn:li:person:%s", creds.PlatformUserID),
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]interface{}{
			"com.linkedin.ugc.ShareContent": map[string]interface{}{
				"shareCommentary": map[string]string{
					"text": content,
				},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ugcPostsURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		logger.GetLogger().WithField("status", resp.StatusCode).WithField("body", string(body)).Warn("linkedin share failed")
		return &model.PublishResult{Success: false, Error: fmt.Sprintf("linkedin_post_failed:%s", string(body))}, nil
	}
	var liResp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &liResp); err != nil || liResp.ID == "" {
		// The UGC API also reports the id in a response header.
		if id := resp.Header.Get("X-Restli-Id"); id != "" {
			liResp.ID = id
		} else {
			return &model.PublishResult{Success: false, Error: "parse_share_response_failed"}, nil
		}
	}
	return &model.PublishResult{
		Success:  true,
		RemoteID: liResp.ID,
		URL:      fmt.Sprintf("https://www.linkedin.com/feed/update/%s", liResp.ID),
	}, nil
}
