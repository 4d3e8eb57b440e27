package dhis2

import (
	"context"
	"fmt"
	"net/url"
)

// Me is the authenticated account as reported by /api/me.
type Me struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// Me verifies the credentials and returns the account they belong to.
func (c *Client) Me(ctx context.Context) (*Me, error) {
	params := url.Values{}
	params.Set("fields", "id,username,name,displayName")
	var me Me
	if err := c.getJSON(ctx, "/api/me", params, &me); err != nil {
		return nil, fmt.Errorf("check credentials: %w", err)
	}
	return &me, nil
}
