package platform

import (
	"context"
	"net/url"

	"github.com/strataisp/console/internal/diag"
)

// Router resolves one router from the core inventory.
func (c *Client) Router(ctx context.Context, id string) (diag.Router, error) {
	var router diag.Router
	err := c.get(ctx, "/api/internal/routers/"+url.PathEscape(id), &router)
	if err != nil {
		return diag.Router{}, err
	}
	return router, nil
}

// Routers lists the full router inventory.
func (c *Client) Routers(ctx context.Context) ([]diag.Router, error) {
	var wire struct {
		Routers []diag.Router `json:"routers"`
	}
	if err := c.get(ctx, "/api/internal/routers", &wire); err != nil {
		return nil, err
	}
	return wire.Routers, nil
}
