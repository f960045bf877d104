// Package domain contains the core concepts of the meeting control plane.
// The Room entity owns every lifecycle and membership invariant; no
// persistence, network, or transport logic should be added here.
package domain

import (
	"time"

	"github.com/samber/lo"

	"meethub/errors"
)

// Room is a bounded-capacity meeting session placed in front of an external
// conferencing provider. Members is a semantic set: a user id appears at most
// once no matter how many times it joins. The slice keeps insertion order so
// a stored record stays stable across rejoins.
type Room struct {
	ID                string     `json:"id"`
	ExternalSessionID string     `json:"external_session_id"`
	HostID            string     `json:"host_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Password          *string    `json:"password,omitempty"`
	Members           []string   `json:"members"`
	Capacity          int        `json:"capacity"`
	CreatedAt         time.Time  `json:"created_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	Active            bool       `json:"active"`

	// Version is bumped by the repository on every committed write. It backs
	// the optimistic-concurrency check of the store contract.
	Version uint64 `json:"version"`
}

func NewRoom(id, externalSessionID, hostID, title, description string, password *string, capacity int, createdAt time.Time) Room {
	return Room{
		ID:                id,
		ExternalSessionID: externalSessionID,
		HostID:            hostID,
		Title:             title,
		Description:       description,
		Password:          password,
		Members:           []string{},
		Capacity:          capacity,
		CreatedAt:         createdAt,
		Active:            true,
	}
}

func (r *Room) IsMember(userID string) bool {
	return lo.Contains(r.Members, userID)
}

func (r *Room) MemberCount() int {
	return len(r.Members)
}

func (r *Room) RequiresPassword() bool {
	return r.Password != nil
}

// PasswordMatches reports whether the supplied password grants access.
// An open room (no password) admits anything, including an empty string.
func (r *Room) PasswordMatches(password string) bool {
	if r.Password == nil {
		return true
	}
	return *r.Password == password
}

// Join adds userID to the member set. It returns added=false for a rejoin,
// which is always permitted: capacity bounds distinct occupants, not
// connection attempts. The capacity check therefore only applies to users
// not yet in the set.
func (r *Room) Join(userID string) (added bool, err error) {
	if !r.Active {
		return false, errors.ErrRoomEnded
	}
	if r.IsMember(userID) {
		return false, nil
	}
	if len(r.Members) >= r.Capacity {
		return false, errors.ErrRoomFull
	}
	r.Members = append(r.Members, userID)
	return true, nil
}

// End transitions the room to its terminal state. The transition is one-way:
// a second call fails with ErrRoomAlreadyEnded and EndedAt is never rewritten.
func (r *Room) End(endedAt time.Time) error {
	if !r.Active {
		return errors.ErrRoomAlreadyEnded
	}
	r.Active = false
	r.EndedAt = &endedAt
	return nil
}
