package netatmo

import (
	"context"
	"net/url"
)

// TypeHomeCoach is the hardware type of a healthy home coach.
const TypeHomeCoach = "NHC"

// HomeCoachData is the payload of a home coach data call. Coach devices
// share the weather Device shape; their dashboard adds the health index
// (0 healthy .. 4 unhealthy).
type HomeCoachData struct {
	Devices []*Device `json:"devices"`
	User    *User     `json:"user,omitempty"`
}

// GetHomeCoachData returns the home coach devices visible to the
// credential. deviceID narrows to one device; empty returns all. Requires
// ScopeReadHomecoach.
func (c *Client) GetHomeCoachData(ctx context.Context, deviceID string) (*HomeCoachData, error) {
	params := url.Values{}
	if deviceID != "" {
		params.Set("device_id", deviceID)
	}

	resp, err := c.AuthorizedPost(ctx, "gethomecoachsdata", params)
	if err != nil {
		return nil, err
	}

	return unmarshalBody[HomeCoachData](resp.Body, "home coach data")
}
