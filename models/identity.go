package models

// Identity is who is talking to the chat core. The zero value (empty UserID)
// is the anonymous visitor.
type Identity struct {
	UserID  string `json:"user_id,omitempty"`
	Email   string `json:"email,omitempty"`
	IsAdmin bool   `json:"is_admin"`
}

// Authenticated reports whether a user is signed in.
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}
