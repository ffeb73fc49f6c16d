package models

import "time"

type Profile struct {
	ID        string    `json:"id"`
	Username  *string   `json:"username"`
	FullName  *string   `json:"full_name"`
	AvatarURL *string   `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate carries the user-editable profile fields. A nil field was not
// supplied and is left untouched.
type ProfileUpdate struct {
	Username  *string `json:"username,omitempty"`
	FullName  *string `json:"full_name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

func (u ProfileUpdate) Empty() bool {
	return u.Username == nil && u.FullName == nil && u.AvatarURL == nil
}

// Apply merges the supplied fields into p. The id is never changed.
func (u ProfileUpdate) Apply(p *Profile) {
	if p == nil {
		return
	}
	if u.Username != nil {
		v := *u.Username
		p.Username = &v
	}
	if u.FullName != nil {
		v := *u.FullName
		p.FullName = &v
	}
	if u.AvatarURL != nil {
		v := *u.AvatarURL
		p.AvatarURL = &v
	}
}
