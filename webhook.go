package netatmo

import (
	"context"
	"net/url"
)

// webhookAppType identifies the security app when dropping webhooks.
const webhookAppType = "app_security"

// AddWebhook registers a callback URL that Netatmo notifies on camera and
// smoke detector events. Only one webhook can be registered per
// application; registering a new URL replaces the previous one. Requires
// ScopeReadCamera.
func (c *Client) AddWebhook(ctx context.Context, webhookURL string) error {
	if webhookURL == "" {
		return ErrEmptyWebhookURL
	}

	params := url.Values{}
	params.Set("url", webhookURL)

	_, err := c.AuthorizedPost(ctx, "addwebhook", params)
	return err
}

// DropWebhook removes the webhook registered for the application.
func (c *Client) DropWebhook(ctx context.Context) error {
	params := url.Values{}
	params.Set("app_types", webhookAppType)

	_, err := c.AuthorizedPost(ctx, "dropwebhook", params)
	return err
}
