package devices

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const credentialsPath = "/v2/enygma-computer-vision/credentials/"

// RemoteClient fetches device configuration from the device server.
type RemoteClient struct {
	client *resty.Client
	log    zerolog.Logger
}

func NewRemoteClient(baseURL string, timeout time.Duration, log zerolog.Logger) *RemoteClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "jan-vision-api/1.0")
	return &RemoteClient{
		client: client,
		log:    log.With().Str("component", "device-server-client").Logger(),
	}
}

// Fetch returns the raw device document for the bearer token.
func (c *RemoteClient) Fetch(ctx context.Context, token string) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("fetch device config: %w", err)
	}
	if resp.IsError() {
		c.log.Warn().
			Int("status", resp.StatusCode()).
			Msg("device server rejected config request")
		return nil, fmt.Errorf("fetch device config: device server returned %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
