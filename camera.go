package netatmo

import (
	"context"
	"net/url"
	"strconv"
)

// Camera types reported by the home API.
const (
	TypeWelcomeCamera  = "NACamera"
	TypePresenceCamera = "NOC"
	TypeSmokeDetector  = "NSD"
)

// HomeData is the payload of a home data call: the homes the credential can
// see, with their cameras, persons and recent events.
type HomeData struct {
	Homes      []*Home     `json:"homes"`
	User       *User       `json:"user,omitempty"`
	GlobalInfo *GlobalInfo `json:"global_info,omitempty"`
}

// GlobalInfo carries account-wide camera settings.
type GlobalInfo struct {
	ShowTags bool `json:"show_tags,omitempty"`
}

// Home groups the cameras, persons and events of one place.
type Home struct {
	ID             string           `json:"id"`
	Name           string           `json:"name,omitempty"`
	Place          *Place           `json:"place,omitempty"`
	GoneAfter      int64            `json:"gone_after,omitempty"`
	EventsTTL      string           `json:"events_ttl,omitempty"`
	Persons        []*Person        `json:"persons,omitempty"`
	Cameras        []*Camera        `json:"cameras,omitempty"`
	SmokeDetectors []*SmokeDetector `json:"smokedetectors,omitempty"`
	Events         []*CameraEvent   `json:"events,omitempty"`
}

// Person is somebody the cameras know, identified or not.
type Person struct {
	ID         string    `json:"id"`
	Pseudo     string    `json:"pseudo,omitempty"`
	LastSeen   int64     `json:"last_seen,omitempty"`
	OutOfSight bool      `json:"out_of_sight,omitempty"`
	Face       *Snapshot `json:"face,omitempty"`
}

// Known reports whether the person has been named by the user. The cameras
// also track unknown faces, which carry no pseudo.
func (p *Person) Known() bool {
	return p != nil && p.Pseudo != ""
}

// Camera is one Welcome or Presence unit.
type Camera struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Name       string `json:"name,omitempty"`
	Status     string `json:"status,omitempty"`
	VPNURL     string `json:"vpn_url,omitempty"`
	IsLocal    bool   `json:"is_local,omitempty"`
	SDStatus   string `json:"sd_status,omitempty"`
	AlimStatus string `json:"alim_status,omitempty"`
	LastSetup  int64  `json:"last_setup,omitempty"`
	UsePinCode bool   `json:"use_pin_code,omitempty"`
}

// SmokeDetector is one smoke alarm unit attached to a home.
type SmokeDetector struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	LastSetup int64  `json:"last_setup,omitempty"`
}

// CameraEvent is one entry of a home's event timeline.
type CameraEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type,omitempty"`
	SubType     int       `json:"sub_type,omitempty"`
	Time        int64     `json:"time,omitempty"`
	CameraID    string    `json:"camera_id,omitempty"`
	DeviceID    string    `json:"device_id,omitempty"`
	PersonID    string    `json:"person_id,omitempty"`
	Message     string    `json:"message,omitempty"`
	Snapshot    *Snapshot `json:"snapshot,omitempty"`
	VideoID     string    `json:"video_id,omitempty"`
	VideoStatus string    `json:"video_status,omitempty"`
	IsArrival   bool      `json:"is_arrival,omitempty"`
}

// Snapshot locates a stored image; fetch it with GetCameraPicture using ID
// and Key, or directly via URL when present.
type Snapshot struct {
	ID      string `json:"id,omitempty"`
	Version int    `json:"version,omitempty"`
	Key     string `json:"key,omitempty"`
	URL     string `json:"url,omitempty"`
}

// eventsResponse is the envelope body of an events listing.
type eventsResponse struct {
	EventsList []*CameraEvent `json:"events_list"`
}

// GetHomeData returns the camera homes visible to the credential. homeID
// narrows to one home; empty returns all. size caps the number of events
// returned per home, zero keeps the server default. Requires
// ScopeReadCamera or ScopeReadPresence.
func (c *Client) GetHomeData(ctx context.Context, homeID string, size int) (*HomeData, error) {
	params := url.Values{}
	if homeID != "" {
		params.Set("home_id", homeID)
	}
	if size > 0 {
		params.Set("size", strconv.Itoa(size))
	}

	resp, err := c.AuthorizedPost(ctx, "gethomedata", params)
	if err != nil {
		return nil, err
	}

	return unmarshalBody[HomeData](resp.Body, "home data")
}

// GetCameraPicture fetches a stored snapshot as raw image bytes. The image
// ID and key come from a Snapshot reference. Requires ScopeAccessCamera or
// ScopeAccessPresence.
func (c *Client) GetCameraPicture(ctx context.Context, imageID, key string) ([]byte, error) {
	if imageID == "" {
		return nil, ErrEmptyImageID
	}
	if key == "" {
		return nil, ErrEmptyKey
	}

	params := url.Values{}
	params.Set("image_id", imageID)
	params.Set("key", key)

	resp, err := c.AuthorizedPost(ctx, "getcamerapicture", params)
	if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

// GetEventsUntil returns a home's events from now back to (and including)
// the given event. Requires ScopeReadCamera or ScopeReadPresence.
func (c *Client) GetEventsUntil(ctx context.Context, homeID, eventID string) ([]*CameraEvent, error) {
	if homeID == "" {
		return nil, ErrEmptyHomeID
	}
	if eventID == "" {
		return nil, ErrEmptyEventID
	}

	params := url.Values{}
	params.Set("home_id", homeID)
	params.Set("event_id", eventID)

	resp, err := c.AuthorizedPost(ctx, "geteventsuntil", params)
	if err != nil {
		return nil, err
	}

	body, err := unmarshalBody[eventsResponse](resp.Body, "events")
	if err != nil {
		return nil, err
	}

	return body.EventsList, nil
}

// SetPersonsAway marks a person as having left the home. With an empty
// personID the whole home is marked empty. Requires ScopeWriteCamera.
func (c *Client) SetPersonsAway(ctx context.Context, homeID, personID string) error {
	if homeID == "" {
		return ErrEmptyHomeID
	}

	params := url.Values{}
	params.Set("home_id", homeID)
	if personID != "" {
		params.Set("person_id", personID)
	}

	_, err := c.AuthorizedPost(ctx, "setpersonsaway", params)
	return err
}

// SetPersonsHome marks the given persons as being at home. Requires
// ScopeWriteCamera.
func (c *Client) SetPersonsHome(ctx context.Context, homeID string, personIDs []string) error {
	if homeID == "" {
		return ErrEmptyHomeID
	}
	if len(personIDs) == 0 {
		return ErrEmptyPersonID
	}

	params := url.Values{}
	params.Set("home_id", homeID)
	for _, id := range personIDs {
		params.Add("person_ids[]", id)
	}

	_, err := c.AuthorizedPost(ctx, "setpersonshome", params)
	return err
}
