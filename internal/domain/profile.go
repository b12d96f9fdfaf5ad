package domain

import "time"

// Profile is the public face of a user. Its ID equals the user ID.
type Profile struct {
	ID            string    `json:"id"`
	DisplayName   *string   `json:"display_name"`
	AvatarURL     *string   `json:"avatar_url"`
	StatusMessage *string   `json:"status_message"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProfileUpdate is a partial patch. Nil fields are left alone; a pointer to
// the empty string clears the field.
type ProfileUpdate struct {
	DisplayName   *string `json:"display_name,omitempty" validate:"omitempty,max=50"`
	AvatarURL     *string `json:"avatar_url,omitempty" validate:"omitempty,max=2048"`
	StatusMessage *string `json:"status_message,omitempty" validate:"omitempty,max=200"`
}

// Validate enforces the display name and status length limits.
func (u ProfileUpdate) Validate() error {
	return validateStruct(u)
}

// Empty reports whether the patch changes nothing.
func (u ProfileUpdate) Empty() bool {
	return u.DisplayName == nil && u.AvatarURL == nil && u.StatusMessage == nil
}

// ProfileSearch finds profiles by display name for starting conversations.
type ProfileSearch struct {
	Query     string `json:"query" validate:"notblank,max=50"`
	ExcludeID string `json:"exclude_id"`
	Limit     int    `json:"limit" validate:"gte=0"`
}
