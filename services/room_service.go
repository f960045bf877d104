package services

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"meethub/domain"
	apperrors "meethub/errors"
	"meethub/repositories"
)

var validate = validator.New()

const (
	// roomIDBytes gives 8 hex chars: short enough to share by voice, and
	// collision odds stay negligible at any realistic room volume. A stored
	// collision is caught by the repository and the id is regenerated.
	roomIDBytes = 4

	// sessionTokenBytes sizes the provider-side room name token.
	sessionTokenBytes = 12

	maxIDAttempts = 5
)

// Settings carries the deployment-specific knobs of the registry.
type Settings struct {
	// ProviderBaseURL is the base of the external conferencing provider,
	// e.g. https://sfu.mirotalk.com.
	ProviderBaseURL string
	// SessionNamespace prefixes every external session id so rooms minted by
	// this deployment never collide with another tenant's.
	SessionNamespace string
	DefaultCapacity  int
	DefaultListLimit int
}

type CreateRoomCommand struct {
	HostID      string `validate:"required"`
	Title       string `validate:"max=200"`
	Description string `validate:"max=2000"`
	Password    *string
	// Capacity 0 means "use the configured default".
	Capacity int `validate:"gte=0"`
}

type JoinRoomCommand struct {
	RoomID      string `validate:"required"`
	UserID      string `validate:"required"`
	DisplayName string
	Password    string
}

type CreateRoomResult struct {
	RoomID            string    `json:"room_id"`
	ExternalSessionID string    `json:"server_room_id"`
	JoinPath          string    `json:"join_link"`
	EmbedURL          string    `json:"embed_url"`
	PasswordProtected bool      `json:"password_protected"`
	CreatedAt         time.Time `json:"created_at"`
}

type JoinRoomResult struct {
	Status            string `json:"status"`
	RoomID            string `json:"room_id"`
	ExternalSessionID string `json:"server_room_id"`
	EmbedURL          string `json:"embed_url"`
	MemberCount       int    `json:"participant_count"`
}

type LeaveRoomResult struct {
	Status      string `json:"status"`
	RoomID      string `json:"room_id"`
	MemberCount int    `json:"participant_count"`
}

type EndRoomResult struct {
	Status       string    `json:"status"`
	RoomID       string    `json:"room_id"`
	EndedAt      time.Time `json:"ended_at"`
	TotalMembers int       `json:"total_participants"`
}

type RoomSummary struct {
	RoomID            string    `json:"room_id"`
	ExternalSessionID string    `json:"server_room_id"`
	Title             string    `json:"room_title"`
	HostID            string    `json:"host_id"`
	MemberCount       int       `json:"participant_count"`
	Capacity          int       `json:"max_participants"`
	CreatedAt         time.Time `json:"created_at"`
	PasswordProtected bool      `json:"password_protected"`
}

type ParticipantList struct {
	RoomID      string   `json:"room_id"`
	Members     []string `json:"participants"`
	MemberCount int      `json:"participant_count"`
	Capacity    int      `json:"max_participants"`
}

type IRoomService interface {
	Create(cmd CreateRoomCommand) (CreateRoomResult, error)
	Get(roomID string) (domain.Room, error)
	Join(cmd JoinRoomCommand) (JoinRoomResult, error)
	Leave(roomID, userID string) (LeaveRoomResult, error)
	End(roomID string) (EndRoomResult, error)
	ListActive(hostID string, limit int) ([]RoomSummary, error)
	VerifyPassword(roomID, password string) (bool, error)
	Participants(roomID string) (ParticipantList, error)
}

// RoomService owns the room lifecycle and membership state machine. Every
// call touches exactly one room record through the repository; per-room
// atomicity is delegated to the repository's transactions, and a single
// retry on version conflict is the only internal retry policy.
type RoomService struct {
	repo     repositories.IRoomRepository
	log      *slog.Logger
	settings Settings
}

func NewRoomService(repo repositories.IRoomRepository, log *slog.Logger, settings Settings) *RoomService {
	return &RoomService{repo: repo, log: log, settings: settings}
}

func (s *RoomService) Create(cmd CreateRoomCommand) (CreateRoomResult, error) {
	// 1. Validate the command before minting any identifier.
	if err := validate.Struct(cmd); err != nil {
		return CreateRoomResult{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidRequest, err)
	}
	capacity := cmd.Capacity
	if capacity == 0 {
		capacity = s.settings.DefaultCapacity
	}

	// 2. Persist under a fresh id, regenerating on the (unlikely) collision
	// with a stored record. The record either exists fully or not at all.
	var room domain.Room
	for attempt := 0; ; attempt++ {
		id, err := newRoomID()
		if err != nil {
			return CreateRoomResult{}, fmt.Errorf("%w: %v", apperrors.ErrRoomCreationFailed, err)
		}
		room = domain.NewRoom(
			id,
			s.newExternalSessionID(),
			cmd.HostID,
			cmd.Title,
			cmd.Description,
			cmd.Password,
			capacity,
			time.Now().UTC(),
		)

		err = s.repo.Create(room)
		if err == nil {
			break
		}
		if errors.Is(err, apperrors.ErrDuplicateRoomID) && attempt < maxIDAttempts-1 {
			s.log.Warn("Room id collision, regenerating", "room_id", id)
			continue
		}
		return CreateRoomResult{}, fmt.Errorf("%w: %v", apperrors.ErrRoomCreationFailed, err)
	}

	// 3. Hand back the provider-facing coordinates.
	return CreateRoomResult{
		RoomID:            room.ID,
		ExternalSessionID: room.ExternalSessionID,
		JoinPath:          "/room/" + room.ID,
		EmbedURL:          s.createEmbedURL(room),
		PasswordProtected: room.RequiresPassword(),
		CreatedAt:         room.CreatedAt,
	}, nil
}

func (s *RoomService) Get(roomID string) (domain.Room, error) {
	return s.repo.Get(roomID)
}

func (s *RoomService) Join(cmd JoinRoomCommand) (JoinRoomResult, error) {
	if err := validate.Struct(cmd); err != nil {
		return JoinRoomResult{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidRequest, err)
	}

	// 1. Load the room and apply the gate checks in contract order:
	// existence, lifecycle, then password.
	room, err := s.repo.Get(cmd.RoomID)
	if err != nil {
		return JoinRoomResult{}, err
	}
	if !room.Active {
		return JoinRoomResult{}, apperrors.ErrRoomEnded
	}
	if !room.PasswordMatches(cmd.Password) {
		return JoinRoomResult{}, apperrors.ErrBadPassword
	}

	// 2. Atomic check-and-add at the persistence boundary. Lifecycle and
	// capacity are re-checked against the stored record in there, so two
	// racing joins cannot both take the last seat.
	room, added, err := s.addMemberRetrying(cmd.RoomID, cmd.UserID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRoomNotFound),
			errors.Is(err, apperrors.ErrRoomEnded),
			errors.Is(err, apperrors.ErrRoomFull):
			return JoinRoomResult{}, err
		default:
			return JoinRoomResult{}, fmt.Errorf("%w: %v", apperrors.ErrJoinFailed, err)
		}
	}

	if !added {
		s.log.Debug("User rejoined room", "room_id", cmd.RoomID, "user_id", cmd.UserID)
	}

	// 3. Same result shape for a fresh join and a rejoin.
	return JoinRoomResult{
		Status:            "joined",
		RoomID:            room.ID,
		ExternalSessionID: room.ExternalSessionID,
		EmbedURL:          s.joinEmbedURL(room, cmd.DisplayName, cmd.UserID),
		MemberCount:       room.MemberCount(),
	}, nil
}

// Leave is attendance verification, not departure: members are kept for the
// record of who was ever present, so the member set is never shrunk and the
// call performs zero writes. A later Join is simply a no-op rejoin.
func (s *RoomService) Leave(roomID, userID string) (LeaveRoomResult, error) {
	room, err := s.repo.Get(roomID)
	if err != nil {
		return LeaveRoomResult{}, err
	}
	if !room.Active {
		return LeaveRoomResult{}, apperrors.ErrRoomEnded
	}
	if !room.IsMember(userID) {
		return LeaveRoomResult{}, apperrors.ErrNotInRoom
	}

	return LeaveRoomResult{
		Status:      "left",
		RoomID:      room.ID,
		MemberCount: room.MemberCount(),
	}, nil
}

func (s *RoomService) End(roomID string) (EndRoomResult, error) {
	room, err := s.repo.End(roomID, time.Now().UTC())
	if errors.Is(err, apperrors.ErrVersionConflict) {
		room, err = s.repo.End(roomID, time.Now().UTC())
	}
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrRoomNotFound),
			errors.Is(err, apperrors.ErrRoomAlreadyEnded):
			return EndRoomResult{}, err
		default:
			return EndRoomResult{}, fmt.Errorf("%w: %v", apperrors.ErrEndFailed, err)
		}
	}

	return EndRoomResult{
		Status:       "ended",
		RoomID:       room.ID,
		EndedAt:      *room.EndedAt,
		TotalMembers: room.MemberCount(),
	}, nil
}

func (s *RoomService) ListActive(hostID string, limit int) ([]RoomSummary, error) {
	if limit <= 0 {
		limit = s.settings.DefaultListLimit
	}
	rooms, err := s.repo.ListActive(hostID, limit)
	if err != nil {
		return nil, err
	}
	return lo.Map(rooms, func(room domain.Room, _ int) RoomSummary {
		return RoomSummary{
			RoomID:            room.ID,
			ExternalSessionID: room.ExternalSessionID,
			Title:             room.Title,
			HostID:            room.HostID,
			MemberCount:       room.MemberCount(),
			Capacity:          room.Capacity,
			CreatedAt:         room.CreatedAt,
			PasswordProtected: room.RequiresPassword(),
		}
	}), nil
}

// VerifyPassword reports whether the password grants access to the room. An
// unknown room verifies as false rather than failing; storage faults still
// propagate.
func (s *RoomService) VerifyPassword(roomID, password string) (bool, error) {
	room, err := s.repo.Get(roomID)
	if errors.Is(err, apperrors.ErrRoomNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return room.PasswordMatches(password), nil
}

func (s *RoomService) Participants(roomID string) (ParticipantList, error) {
	room, err := s.repo.Get(roomID)
	if err != nil {
		return ParticipantList{}, err
	}
	return ParticipantList{
		RoomID:      room.ID,
		Members:     append([]string{}, room.Members...),
		MemberCount: room.MemberCount(),
		Capacity:    room.Capacity,
	}, nil
}

// addMemberRetrying applies the bounded retry policy: one extra attempt on a
// version conflict, then the conflict surfaces to the caller.
func (s *RoomService) addMemberRetrying(roomID, userID string) (domain.Room, bool, error) {
	room, added, err := s.repo.AddMember(roomID, userID)
	if errors.Is(err, apperrors.ErrVersionConflict) {
		room, added, err = s.repo.AddMember(roomID, userID)
	}
	return room, added, err
}

// createEmbedURL builds the host-facing provider URL. The parameter order and
// the "+" space encoding are a compatibility contract with the provider, so
// the URL is assembled by hand instead of url.Values.
func (s *RoomService) createEmbedURL(room domain.Room) string {
	url := fmt.Sprintf("%s/join?room=%s", s.settings.ProviderBaseURL, room.ExternalSessionID)
	if room.Password != nil {
		url += "&roomPassword=" + *room.Password
	}
	if room.Title != "" {
		url += "&roomName=" + strings.ReplaceAll(room.Title, " ", "+")
	}
	return url
}

// joinEmbedURL builds the participant-facing provider URL. The room password
// is deliberately not embedded: participants type it in the provider UI.
func (s *RoomService) joinEmbedURL(room domain.Room, displayName, userID string) string {
	url := fmt.Sprintf("%s/join?room=%s", s.settings.ProviderBaseURL, room.ExternalSessionID)
	if displayName != "" {
		return url + "&name=" + strings.ReplaceAll(displayName, " ", "+")
	}
	return url + "&name=User_" + userID
}

func newRoomID() (string, error) {
	buf := make([]byte, roomIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *RoomService) newExternalSessionID() string {
	buf := make([]byte, sessionTokenBytes)
	// crypto/rand.Read never fails on supported platforms.
	_, _ = rand.Read(buf)
	return s.settings.SessionNamespace + "_" + base64.RawURLEncoding.EncodeToString(buf)
}
