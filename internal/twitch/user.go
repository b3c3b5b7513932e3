package twitch

import (
	"encoding/json"
	"fmt"
)

// UserID is a Twitch user identifier. Helix sends IDs as strings; numeric IDs are
// accepted too and kept in their decimal form.
type UserID string

// UnmarshalJSON accepts both `"123"` and `123`.
func (id *UserID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id must be a string or number: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// User is the profile returned by GET /users for the token's owner.
type User struct {
	ID              UserID `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	Email           string `json:"email"`
	ProfileImageURL string `json:"profile_image_url"`
}

// usersResponse represents Helix's GET /users response.
type usersResponse struct {
	Data []User `json:"data"`
}
