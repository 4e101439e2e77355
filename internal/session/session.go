// Package session holds the client's current authentication state and keeps
// it in durable local storage so it survives an agent restart.
package session

import "attendkiosk/internal/backend"

// Session is the persisted authentication state. Token and User are either
// both set or both absent; a partially populated session is never stored.
type Session struct {
	Token string        `json:"token"`
	User  *backend.User `json:"user"`
}

// Active reports whether both halves of the session are present.
func (s Session) Active() bool {
	return s.Token != "" && s.User != nil
}
