// Package invite handles project invitation links. A link is any URL
// carrying the project ID in its "invite" query parameter.
package invite

import (
	"fmt"
	"net/url"

	"planboard/internal/model"
)

const queryParam = "invite"

// Link renders an invitation URL for the given project on top of the
// application's base URL.
func Link(baseURL string, id model.ProjectID) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invite: parse base url: %w", err)
	}
	q := u.Query()
	q.Set(queryParam, id.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseProjectID extracts the invited project from a URL, reporting
// false when the URL carries no invitation.
func ParseProjectID(rawURL string) (model.ProjectID, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	id := u.Query().Get(queryParam)
	if id == "" {
		return "", false
	}
	return model.ProjectID(id), true
}
