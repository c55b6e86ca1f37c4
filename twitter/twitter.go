// Package twitter is a thin adapter over the Twitter users/lookup API
// projecting profile image URLs.
package twitter

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/holaplex/imgopt/lib/rest"
)

const apiRoot = "https://api.twitter.com"

// Profile is the projection returned to callers. HighRes is the
// low-res avatar URL with the "_normal" marker stripped.
type Profile struct {
	Handle      string `json:"handle"`
	LowRes      string `json:"profile_image_url_lowres"`
	HighRes     string `json:"profile_image_url_highres"`
	Banner      string `json:"banner_image_url"`
	Description string `json:"description"`
}

// APIError is an error record forwarded from the Twitter API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

type apiProfile struct {
	ScreenName  string     `json:"screen_name"`
	Avatar      string     `json:"profile_image_url_https"`
	Banner      string     `json:"profile_banner_url"`
	Description string     `json:"description"`
	Errors      []APIError `json:"errors"`
}

// Client looks up profiles. Safe for concurrent use.
type Client struct {
	srv *rest.Client
}

// New makes a Client with the given bearer token.
func New(httpClient *http.Client, token string) *Client {
	srv := rest.NewClient(httpClient).SetRoot(apiRoot)
	srv.SetHeader("Authorization", "Bearer "+token)
	srv.SetHeader("Accept", "application/json")
	return &Client{srv: srv}
}

// SetRoot points the client at a different API root, used by tests.
func (c *Client) SetRoot(root string) *Client {
	c.srv.SetRoot(root)
	return c
}

// Lookup fetches one profile by handle. An error array in the API
// response is returned as an *APIError.
func (c *Client) Lookup(ctx context.Context, handle string) (*Profile, error) {
	form := url.Values{"screen_name": {handle}}
	opts := rest.Opts{
		Method:      "POST",
		Path:        "/1.1/users/lookup.json",
		ContentType: "application/x-www-form-urlencoded",
		Body:        strings.NewReader(form.Encode()),
	}
	var profiles []apiProfile
	if _, err := c.srv.CallJSON(ctx, &opts, nil, &profiles); err != nil {
		return nil, errors.Wrap(err, "twitter lookup")
	}
	if len(profiles) == 0 {
		return nil, errors.Errorf("no profile found for %q", handle)
	}
	p := profiles[0]
	if len(p.Errors) > 0 {
		return nil, &p.Errors[0]
	}
	return &Profile{
		Handle:      p.ScreenName,
		LowRes:      p.Avatar,
		HighRes:     strings.ReplaceAll(p.Avatar, "_normal", ""),
		Banner:      p.Banner,
		Description: p.Description,
	}, nil
}
