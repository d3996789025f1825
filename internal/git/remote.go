package git

import (
	"context"
	"fmt"
	"strings"
)

// Remotes returns the configured remote names
func (c *Client) Remotes(ctx context.Context) ([]string, error) {
	res, err := c.run(ctx, "remote")
	if err != nil {
		return nil, fmt.Errorf("failed to list remotes: %w", err)
	}
	return res.Lines(), nil
}

// HasRemote reports whether a remote called name is configured
func (c *Client) HasRemote(ctx context.Context, name string) (bool, error) {
	remotes, err := c.Remotes(ctx)
	if err != nil {
		return false, err
	}
	for _, r := range remotes {
		if strings.TrimSpace(r) == name {
			return true, nil
		}
	}
	return false, nil
}
