package panel

import (
	"encoding/json"
	"fmt"

	"sellerbot/internal/models"
)

// NewClient creates a panel client from a stored panel row.
func NewClient(p *models.Panel) (Client, error) {
	switch p.Type {
	case "marzban":
		c := NewMarzbanClient(p.URLPanel, p.UsernamePanel, p.PasswordPanel)
		if p.Inbounds != "" {
			c.SetDefaultInbounds(parseInboundConfig(p.Inbounds))
		}
		return c, nil
	case "xui", "x-ui_single":
		startOnFirstUse := p.Connection == "onconecton"
		return NewXUIClient(p.URLPanel, p.UsernamePanel, p.PasswordPanel, p.InboundID, p.LinkSubX, startOnFirstUse), nil
	default:
		return nil, fmt.Errorf("unsupported panel type: %s", p.Type)
	}
}

// parseInboundConfig accepts either a protocol->tags object or a flat tag
// array, both of which appear in stored panel rows.
func parseInboundConfig(raw string) map[string][]string {
	var m map[string][]string
	if err := json.Unmarshal([]byte(raw), &m); err == nil {
		return m
	}

	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err == nil && len(tags) > 0 {
		return map[string][]string{"vless": tags}
	}

	return nil
}
