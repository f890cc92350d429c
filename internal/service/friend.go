package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/magicjournal/server/internal/apperr"
	"github.com/magicjournal/server/internal/db"
	"github.com/magicjournal/server/internal/metrics"
	"github.com/magicjournal/server/internal/model"
	"github.com/magicjournal/server/internal/repository"
	"github.com/magicjournal/server/internal/validation"
)

// FriendTarget names the user a request is sent to, by id or by email
type FriendTarget struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// SendResult is either a new pending request or, when the target had already
// asked us, the friendship created by accepting their request.
type SendResult struct {
	Request    *model.FriendRequest `json:"request"`
	Friendship *model.Friendship    `json:"friendship,omitempty"`
	Accepted   bool                 `json:"accepted"`
}

type FriendGoals struct {
	Friend *model.User   `json:"friend"`
	Goals  []*model.Goal `json:"goals"`
}

type FriendService struct {
	db           *sqlx.DB
	repo         repository.FriendRepository
	users        repository.UserRepository
	goals        repository.GoalRepository
	emailService *EmailService
	now          func() time.Time
}

func NewFriendService(
	database *sqlx.DB,
	repo repository.FriendRepository,
	users repository.UserRepository,
	goals repository.GoalRepository,
	emailService *EmailService,
) *FriendService {
	return &FriendService{
		db:           database,
		repo:         repo,
		users:        users,
		goals:        goals,
		emailService: emailService,
		now:          time.Now,
	}
}

func (s *FriendService) Friends(ctx context.Context, userID string) ([]*model.Friend, error) {
	friends, err := s.repo.Friends(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list friends", err)
	}
	if friends == nil {
		friends = []*model.Friend{}
	}
	return friends, nil
}

func (s *FriendService) Requests(ctx context.Context, userID string) (*model.FriendRequests, error) {
	incoming, err := s.repo.Incoming(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list friend requests", err)
	}
	outgoing, err := s.repo.Outgoing(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list friend requests", err)
	}

	if incoming == nil {
		incoming = []*model.FriendRequest{}
	}
	if outgoing == nil {
		outgoing = []*model.FriendRequest{}
	}
	return &model.FriendRequests{Incoming: incoming, Outgoing: outgoing}, nil
}

// Send creates a pending request to the target. If the target already has a
// pending request to the sender, that request is accepted instead.
func (s *FriendService) Send(ctx context.Context, senderID string, target FriendTarget) (*SendResult, error) {
	receiver, err := s.resolveTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	if receiver.ID == senderID {
		return nil, apperr.BadRequest("cannot send a friend request to yourself")
	}

	var result *SendResult
	err = db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)
		now := s.now()

		friends, err := repo.AreFriends(ctx, senderID, receiver.ID)
		if err != nil {
			return err
		}
		if friends {
			return apperr.Conflict("already friends")
		}

		reverse, err := repo.PendingRequest(ctx, receiver.ID, senderID)
		if err == nil {
			err = repo.CloseRequest(ctx, reverse.ID, model.FriendRequestAccepted, now)
			if err != nil {
				return err
			}
			edge, err := repo.CreateFriendship(ctx, senderID, receiver.ID, now)
			if err != nil {
				return err
			}
			reverse.Status = model.FriendRequestAccepted
			reverse.RespondedAt = &now
			result = &SendResult{Request: reverse, Friendship: edge, Accepted: true}
			return nil
		}
		if !errors.Is(err, repository.ErrFriendRequestNotFound) {
			return err
		}

		_, err = repo.PendingRequest(ctx, senderID, receiver.ID)
		if err == nil {
			return apperr.Conflict("friend request already pending")
		}
		if !errors.Is(err, repository.ErrFriendRequestNotFound) {
			return err
		}

		req := &model.FriendRequest{
			ID:          uuid.New().String(),
			SenderID:    senderID,
			ReceiverID:  receiver.ID,
			Status:      model.FriendRequestPending,
			RequestedAt: now,
		}
		err = repo.CreateRequest(ctx, req)
		if err != nil {
			return err
		}
		req.ReceiverName = receiver.Name
		req.ReceiverEmail = receiver.Email
		result = &SendResult{Request: req}
		return nil
	})
	if err != nil {
		return nil, friendError(err, "failed to send friend request")
	}

	if result.Accepted {
		metrics.FriendTransitions.WithLabelValues(model.FriendRequestAccepted).Inc()
		slog.Info("friend request auto-accepted", "request_id", result.Request.ID, "user_id", senderID, "friend_id", receiver.ID)
		return result, nil
	}

	metrics.FriendTransitions.WithLabelValues(model.FriendRequestPending).Inc()
	slog.Info("friend request sent", "request_id", result.Request.ID, "sender_id", senderID, "receiver_id", receiver.ID)
	s.notify(ctx, senderID, receiver)
	return result, nil
}

// notify emails the receiver about a new request; failures are only logged
func (s *FriendService) notify(ctx context.Context, senderID string, receiver *model.User) {
	if s.emailService == nil {
		return
	}

	sender, err := s.users.ByID(ctx, senderID)
	if err != nil {
		slog.Warn("failed to load friend request sender", "error", err, "sender_id", senderID)
		return
	}

	senderName := sender.Name
	if senderName == "" {
		senderName = sender.Email
	}
	err = s.emailService.SendFriendRequestEmail(ctx, receiver.Email, receiver.Name, senderName)
	if err != nil {
		slog.Warn("failed to send friend request email", "error", err, "receiver_id", receiver.ID)
	}
}

func (s *FriendService) resolveTarget(ctx context.Context, target FriendTarget) (*model.User, error) {
	userID := strings.TrimSpace(target.UserID)

	var (
		user *model.User
		err  error
	)
	switch {
	case userID != "":
		user, err = s.users.ByID(ctx, userID)
	case strings.TrimSpace(target.Email) != "":
		email, verr := validation.NormalizeEmail(target.Email)
		if verr != nil {
			return nil, apperr.BadRequest("%s", verr.Error())
		}
		user, err = s.users.ByEmail(ctx, email)
	default:
		return nil, apperr.BadRequest("provide user_id or email")
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to lookup user", err)
	}
	return user, nil
}

// Accept lets the receiver accept a pending request and creates the friendship
func (s *FriendService) Accept(ctx context.Context, userID, requestID string) (*model.Friendship, error) {
	var edge *model.Friendship
	err := s.transition(ctx, userID, requestID, model.FriendRequestAccepted, func(repo repository.FriendRepository, req *model.FriendRequest, now time.Time) error {
		var err error
		edge, err = repo.CreateFriendship(ctx, req.SenderID, req.ReceiverID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

// Decline lets the receiver reject a pending request
func (s *FriendService) Decline(ctx context.Context, userID, requestID string) error {
	return s.transition(ctx, userID, requestID, model.FriendRequestDeclined, nil)
}

// Cancel lets the sender withdraw a pending request
func (s *FriendService) Cancel(ctx context.Context, userID, requestID string) error {
	return s.transition(ctx, userID, requestID, model.FriendRequestCancelled, nil)
}

func (s *FriendService) transition(
	ctx context.Context,
	userID, requestID, status string,
	after func(repo repository.FriendRepository, req *model.FriendRequest, now time.Time) error,
) error {
	err := db.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)
		now := s.now()

		req, err := repo.RequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}

		actor := req.ReceiverID
		if status == model.FriendRequestCancelled {
			actor = req.SenderID
		}
		if actor != userID {
			return apperr.Forbidden(fmt.Sprintf("not allowed to %s this friend request", verbFor(status)))
		}
		if req.Status != model.FriendRequestPending {
			return repository.ErrFriendRequestNotOpen
		}

		err = repo.CloseRequest(ctx, req.ID, status, now)
		if err != nil {
			return err
		}
		if after != nil {
			return after(repo, req, now)
		}
		return nil
	})
	if err != nil {
		return friendError(err, "failed to update friend request")
	}

	metrics.FriendTransitions.WithLabelValues(status).Inc()
	slog.Info("friend request updated", "request_id", requestID, "user_id", userID, "status", status)
	return nil
}

func verbFor(status string) string {
	switch status {
	case model.FriendRequestAccepted:
		return "accept"
	case model.FriendRequestDeclined:
		return "decline"
	}
	return "cancel"
}

// Unfriend removes the friendship. Past requests keep their terminal status.
func (s *FriendService) Unfriend(ctx context.Context, userID, friendID string) error {
	if userID == friendID {
		return apperr.BadRequest("cannot unfriend yourself")
	}

	err := s.repo.DeleteFriendship(ctx, userID, friendID)
	if err != nil {
		return friendError(err, "failed to remove friend")
	}

	metrics.FriendTransitions.WithLabelValues("removed").Inc()
	slog.Info("friend removed", "user_id", userID, "friend_id", friendID)
	return nil
}

// FriendGoals lists a confirmed friend's goals with their habit names
func (s *FriendService) FriendGoals(ctx context.Context, userID, friendID string) (*FriendGoals, error) {
	if userID == friendID {
		return nil, apperr.BadRequest("friend id must be different from your user id")
	}

	friends, err := s.repo.AreFriends(ctx, userID, friendID)
	if err != nil {
		return nil, apperr.Internal("failed to check friendship", err)
	}
	if !friends {
		return nil, apperr.Forbidden("you can only view habits for confirmed friends")
	}

	friend, err := s.users.ByID(ctx, friendID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.NotFound("friend not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load friend", err)
	}

	goals, err := s.goals.Goals(ctx, friendID)
	if err != nil {
		return nil, apperr.Internal("failed to list friend goals", err)
	}
	if goals == nil {
		goals = []*model.Goal{}
	}
	return &FriendGoals{Friend: friend, Goals: goals}, nil
}

func friendError(err error, msg string) error {
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrFriendRequestNotFound):
		return apperr.NotFound("friend request not found")
	case errors.Is(err, repository.ErrFriendRequestNotOpen):
		return apperr.Conflict("friend request is not pending")
	case errors.Is(err, repository.ErrDuplicateRequest):
		return apperr.Conflict("friend request already pending")
	case errors.Is(err, repository.ErrFriendshipNotFound):
		return apperr.NotFound("friend relationship not found")
	}
	return apperr.Internal(msg, err)
}
