package domain

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"meethub/errors"
)

func newTestRoom(capacity int, password *string) Room {
	return NewRoom("ab12cd34", "MeetHub_xyz", "host-1", "Standup", "", password, capacity, time.Now().UTC())
}

func TestRoom_Join(t *testing.T) {
	t.Run("should add new members until capacity is reached", func(t *testing.T) {
		req := require.New(t)
		room := newTestRoom(2, nil)

		added, err := room.Join("u1")
		req.NoError(err)
		req.True(added)

		added, err = room.Join("u2")
		req.NoError(err)
		req.True(added)
		req.Equal(2, room.MemberCount())

		_, err = room.Join("u3")
		req.ErrorIs(err, errors.ErrRoomFull)
		req.Equal(2, room.MemberCount())
	})

	t.Run("should be idempotent even at full capacity", func(t *testing.T) {
		req := require.New(t)
		room := newTestRoom(2, nil)

		lo.ForEach([]string{"u1", "u2"}, func(id string, _ int) {
			_, err := room.Join(id)
			req.NoError(err)
		})

		// Rejoin must bypass the capacity check and leave the set untouched.
		added, err := room.Join("u1")
		req.NoError(err)
		req.False(added)
		req.Equal([]string{"u1", "u2"}, room.Members)
	})

	t.Run("should reject joins on an ended room", func(t *testing.T) {
		req := require.New(t)
		room := newTestRoom(5, nil)
		req.NoError(room.End(time.Now().UTC()))

		_, err := room.Join("u1")
		req.ErrorIs(err, errors.ErrRoomEnded)
		req.Equal(0, room.MemberCount())
	})

	t.Run("capacity never exceeded over any join sequence", func(t *testing.T) {
		req := require.New(t)
		room := newTestRoom(3, nil)

		ids := []string{"a", "b", "a", "c", "d", "b", "e", "c"}
		for _, id := range ids {
			_, _ = room.Join(id)
			req.LessOrEqual(room.MemberCount(), room.Capacity)
		}
		req.Equal([]string{"a", "b", "c"}, room.Members)
	})
}

func TestRoom_End(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(2, nil)

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	req.NoError(room.End(first))
	req.False(room.Active)
	req.Equal(first, *room.EndedAt)

	// One-way transition: a later End call must not move the timestamp.
	err := room.End(first.Add(time.Hour))
	req.ErrorIs(err, errors.ErrRoomAlreadyEnded)
	req.Equal(first, *room.EndedAt)
}

func TestRoom_PasswordMatches(t *testing.T) {
	req := require.New(t)

	open := newTestRoom(2, nil)
	req.False(open.RequiresPassword())
	req.True(open.PasswordMatches(""))
	req.True(open.PasswordMatches("anything"))

	locked := newTestRoom(2, lo.ToPtr("abc"))
	req.True(locked.RequiresPassword())
	req.True(locked.PasswordMatches("abc"))
	req.False(locked.PasswordMatches("ABC"))
	req.False(locked.PasswordMatches(""))
}
