package api

import (
	"context"
	"fmt"

	"github.com/rickgao/gateway-cache/internal/auth"
)

// GetGateway fetches the gateway URL. No token is needed.
func (c *Client) GetGateway(ctx context.Context) (*Gateway, error) {
	var resp Gateway
	if err := c.get(ctx, "/gateway", nil, &resp); err != nil {
		return nil, fmt.Errorf("get gateway: %w", err)
	}
	return &resp, nil
}

// GetGatewayBot fetches the gateway URL, the recommended shard count and the
// session start limit of the bot.
func (c *Client) GetGatewayBot(ctx context.Context) (*GatewayBot, error) {
	if c.token == "" {
		return nil, fmt.Errorf("get gateway bot: %w", auth.ErrEmptyToken)
	}

	var resp GatewayBot
	if err := c.get(ctx, "/gateway/bot", nil, &resp); err != nil {
		return nil, fmt.Errorf("get gateway bot: %w", err)
	}

	if resp.SessionStartLimit.Remaining == 0 && resp.SessionStartLimit.Total > 0 {
		c.logger.Warn("session start limit exhausted",
			"total", resp.SessionStartLimit.Total,
			"reset_in", resp.SessionStartLimit.ResetIn(),
		)
	}
	return &resp, nil
}

// GatewayURL returns the gateway URL from GET /gateway.
func (c *Client) GatewayURL(ctx context.Context) (string, error) {
	gw, err := c.GetGateway(ctx)
	if err != nil {
		return "", err
	}
	if gw.URL == "" {
		return "", fmt.Errorf("get gateway: empty url")
	}
	return gw.URL, nil
}
