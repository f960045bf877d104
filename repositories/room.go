//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"meethub/domain"
	apperrors "meethub/errors"
)

const (
	roomKeyPrefix   = "room:"
	activeKeyPrefix = "active:"
)

type IRoomRepository interface {
	Create(room domain.Room) error
	Get(id string) (domain.Room, error)
	Update(room domain.Room, expectedVersion uint64) (domain.Room, error)
	AddMember(roomID, userID string) (domain.Room, bool, error)
	End(roomID string, endedAt time.Time) (domain.Room, error)
	ListActive(hostID string, limit int) ([]domain.Room, error)
}

// RoomRepository persists rooms in BadgerDB.
//
// Key layout:
//   - "room:{id}"   -> JSON-encoded domain.Room (primary record)
//   - "active:{id}" -> host id (secondary index, maintained in the same
//     transaction as the writes that flip Active)
//
// Every mutating method is a single Badger transaction, so the
// read-check-write sequence on one room is atomic with respect to concurrent
// calls on the same id. Transactions that collide fail with ErrVersionConflict
// and the caller decides whether to retry.
type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) *RoomRepository {
	return &RoomRepository{db: db, log: log}
}

// Create stores a brand-new room. The id check and the write happen in one
// transaction so a colliding id can never overwrite an existing record.
func (r *RoomRepository) Create(room domain.Room) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(roomKey(room.ID))
		if err == nil {
			return apperrors.ErrDuplicateRoomID
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := setRoom(txn, room); err != nil {
			return err
		}
		return txn.Set(activeKey(room.ID), []byte(room.HostID))
	})
	if err != nil {
		return mapWriteErr(err)
	}

	r.log.Info("Room created", "room_id", room.ID, "host_id", room.HostID, "capacity", room.Capacity)
	return nil
}

func (r *RoomRepository) Get(id string) (domain.Room, error) {
	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		room, err = getRoom(txn, id)
		return err
	})
	return room, err
}

// Update replaces the stored record if and only if its version still equals
// expectedVersion. The committed record carries expectedVersion+1.
func (r *RoomRepository) Update(room domain.Room, expectedVersion uint64) (domain.Room, error) {
	err := r.db.Update(func(txn *badger.Txn) error {
		current, err := getRoom(txn, room.ID)
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return apperrors.ErrVersionConflict
		}
		room.Version = expectedVersion + 1
		if err := setRoom(txn, room); err != nil {
			return err
		}
		return syncActiveIndex(txn, room)
	})
	if err != nil {
		return domain.Room{}, mapWriteErr(err)
	}
	return room, nil
}

// AddMember is the atomic check-and-add for joins: membership, capacity and
// lifecycle are re-checked against the stored record inside one transaction.
// A rejoin performs zero writes and is reported with added=false.
func (r *RoomRepository) AddMember(roomID, userID string) (domain.Room, bool, error) {
	var room domain.Room
	var added bool
	err := r.db.Update(func(txn *badger.Txn) error {
		var err error
		room, err = getRoom(txn, roomID)
		if err != nil {
			return err
		}
		added, err = room.Join(userID)
		if err != nil || !added {
			return err
		}
		room.Version++
		return setRoom(txn, room)
	})
	if err != nil {
		return domain.Room{}, false, mapWriteErr(err)
	}

	if added {
		r.log.Info("User joined room", "room_id", roomID, "user_id", userID, "members", room.MemberCount())
	}
	return room, added, nil
}

// End flips the room to its terminal state and drops it from the active index
// in the same transaction. A room that is already ended is left untouched.
func (r *RoomRepository) End(roomID string, endedAt time.Time) (domain.Room, error) {
	var room domain.Room
	err := r.db.Update(func(txn *badger.Txn) error {
		var err error
		room, err = getRoom(txn, roomID)
		if err != nil {
			return err
		}
		if err = room.End(endedAt); err != nil {
			return err
		}
		room.Version++
		if err = setRoom(txn, room); err != nil {
			return err
		}
		return txn.Delete(activeKey(roomID))
	})
	if err != nil {
		return domain.Room{}, mapWriteErr(err)
	}

	r.log.Info("Room ended", "room_id", roomID, "total_members", room.MemberCount())
	return room, nil
}

// ListActive scans the "active:" index in natural key order and resolves each
// hit to its primary record within the same snapshot. The host filter reads
// the index value, so filtered-out rooms cost no extra lookup.
func (r *RoomRepository) ListActive(hostID string, limit int) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(activeKeyPrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(rooms) < limit; it.Next() {
			item := it.Item()
			if hostID != "" {
				owner, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				if string(owner) != hostID {
					continue
				}
			}

			id := strings.TrimPrefix(string(item.Key()), activeKeyPrefix)
			room, err := getRoom(txn, id)
			if err != nil {
				return fmt.Errorf("dangling active index for room %s: %w", id, err)
			}
			rooms = append(rooms, room)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func roomKey(id string) []byte {
	return []byte(roomKeyPrefix + id)
}

func activeKey(id string) []byte {
	return []byte(activeKeyPrefix + id)
}

func getRoom(txn *badger.Txn, id string) (domain.Room, error) {
	var room domain.Room
	item, err := txn.Get(roomKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return room, apperrors.ErrRoomNotFound
	}
	if err != nil {
		return room, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &room)
	})
	return room, err
}

func setRoom(txn *badger.Txn, room domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return txn.Set(roomKey(room.ID), data)
}

func syncActiveIndex(txn *badger.Txn, room domain.Room) error {
	if room.Active {
		return txn.Set(activeKey(room.ID), []byte(room.HostID))
	}
	return txn.Delete(activeKey(room.ID))
}

// mapWriteErr translates Badger's optimistic-transaction conflict into the
// store contract's version conflict so callers retry through a single path.
func mapWriteErr(err error) error {
	if errors.Is(err, badger.ErrConflict) {
		return apperrors.ErrVersionConflict
	}
	return err
}
