package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/magicjournal/server/internal/db"
	"github.com/magicjournal/server/internal/model"
)

var (
	ErrFriendshipNotFound    = errors.New("friendship not found")
	ErrFriendRequestNotFound = errors.New("friend request not found")
	ErrFriendRequestNotOpen  = errors.New("friend request is not pending")
	ErrDuplicateRequest      = errors.New("pending friend request already exists")
)

type FriendRepository interface {
	AreFriends(ctx context.Context, a, b string) (bool, error)
	CreateFriendship(ctx context.Context, a, b string, since time.Time) (*model.Friendship, error)
	DeleteFriendship(ctx context.Context, a, b string) error
	Friends(ctx context.Context, userID string) ([]*model.Friend, error)

	CreateRequest(ctx context.Context, req *model.FriendRequest) error
	RequestForUpdate(ctx context.Context, id string) (*model.FriendRequest, error)
	PendingRequest(ctx context.Context, senderID, receiverID string) (*model.FriendRequest, error)
	CloseRequest(ctx context.Context, id, status string, at time.Time) error
	Incoming(ctx context.Context, userID string) ([]*model.FriendRequest, error)
	Outgoing(ctx context.Context, userID string) ([]*model.FriendRequest, error)

	WithTx(tx *sqlx.Tx) FriendRepository
}

type friendRepository struct {
	db sqlx.ExtContext
}

func NewFriendRepository(db *sqlx.DB) FriendRepository {
	return &friendRepository{db: db}
}

func (r *friendRepository) WithTx(tx *sqlx.Tx) FriendRepository {
	return &friendRepository{db: tx}
}

func (r *friendRepository) AreFriends(ctx context.Context, a, b string) (bool, error) {
	low, high := model.CanonicalPair(a, b)

	var count int
	query := `SELECT COUNT(*) FROM friendships WHERE user_id1 = $1 AND user_id2 = $2`
	err := sqlx.GetContext(ctx, r.db, &count, query, low, high)
	return count > 0, err
}

// CreateFriendship stores the canonical edge if absent and returns the stored edge
func (r *friendRepository) CreateFriendship(ctx context.Context, a, b string, since time.Time) (*model.Friendship, error) {
	low, high := model.CanonicalPair(a, b)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO friendships (user_id1, user_id2, since) VALUES ($1, $2, $3) ON CONFLICT (user_id1, user_id2) DO NOTHING`,
		low, high, since,
	)
	if err != nil {
		return nil, err
	}

	edge := &model.Friendship{}
	err = sqlx.GetContext(ctx, r.db, edge, `SELECT * FROM friendships WHERE user_id1 = $1 AND user_id2 = $2`, low, high)
	if err != nil {
		return nil, err
	}
	return edge, nil
}

func (r *friendRepository) DeleteFriendship(ctx context.Context, a, b string) error {
	low, high := model.CanonicalPair(a, b)

	result, err := r.db.ExecContext(ctx, `DELETE FROM friendships WHERE user_id1 = $1 AND user_id2 = $2`, low, high)
	if err != nil {
		return err
	}
	return requireRows(result, ErrFriendshipNotFound)
}

func (r *friendRepository) Friends(ctx context.Context, userID string) ([]*model.Friend, error) {
	var friends []*model.Friend
	query := `SELECT u.id, u.email, u.name, u.picture, u.level, u.streak, f.since
	          FROM friendships f
	          JOIN users u ON u.id = CASE WHEN f.user_id1 = $1 THEN f.user_id2 ELSE f.user_id1 END
	          WHERE f.user_id1 = $1 OR f.user_id2 = $1
	          ORDER BY u.name ASC, u.id ASC`

	err := sqlx.SelectContext(ctx, r.db, &friends, query, userID)
	if err != nil {
		return nil, err
	}
	return friends, nil
}

func (r *friendRepository) CreateRequest(ctx context.Context, req *model.FriendRequest) error {
	query := `INSERT INTO friend_requests (id, sender_id, receiver_id, status, requested_at, responded_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.SenderID,
		req.ReceiverID,
		req.Status,
		req.RequestedAt,
		req.RespondedAt,
	)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateRequest
	}
	return err
}

const requestColumns = `id, sender_id, receiver_id, status, requested_at, responded_at`

// RequestForUpdate loads a request and locks it for the rest of the transaction
func (r *friendRepository) RequestForUpdate(ctx context.Context, id string) (*model.FriendRequest, error) {
	req := &model.FriendRequest{}
	query := `SELECT ` + requestColumns + ` FROM friend_requests WHERE id = $1` + db.ForUpdate(r.db.DriverName())

	err := sqlx.GetContext(ctx, r.db, req, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFriendRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// PendingRequest returns the open request from sender to receiver, locking it
func (r *friendRepository) PendingRequest(ctx context.Context, senderID, receiverID string) (*model.FriendRequest, error) {
	req := &model.FriendRequest{}
	query := `SELECT ` + requestColumns + ` FROM friend_requests
	          WHERE sender_id = $1 AND receiver_id = $2 AND status = 'pending'` + db.ForUpdate(r.db.DriverName())

	err := sqlx.GetContext(ctx, r.db, req, query, senderID, receiverID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFriendRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// CloseRequest moves a pending request to a terminal status
func (r *friendRepository) CloseRequest(ctx context.Context, id, status string, at time.Time) error {
	query := `UPDATE friend_requests SET status = $1, responded_at = $2 WHERE id = $3 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, status, at, id)
	if err != nil {
		return err
	}
	return requireRows(result, ErrFriendRequestNotOpen)
}

func (r *friendRepository) Incoming(ctx context.Context, userID string) ([]*model.FriendRequest, error) {
	var requests []*model.FriendRequest
	query := `SELECT fr.id, fr.sender_id, fr.receiver_id, fr.status, fr.requested_at, fr.responded_at,
	                 u.name AS sender_name, u.email AS sender_email
	          FROM friend_requests fr
	          JOIN users u ON u.id = fr.sender_id
	          WHERE fr.receiver_id = $1 AND fr.status = 'pending'
	          ORDER BY fr.requested_at DESC`

	err := sqlx.SelectContext(ctx, r.db, &requests, query, userID)
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *friendRepository) Outgoing(ctx context.Context, userID string) ([]*model.FriendRequest, error) {
	var requests []*model.FriendRequest
	query := `SELECT fr.id, fr.sender_id, fr.receiver_id, fr.status, fr.requested_at, fr.responded_at,
	                 u.name AS receiver_name, u.email AS receiver_email
	          FROM friend_requests fr
	          JOIN users u ON u.id = fr.receiver_id
	          WHERE fr.sender_id = $1 AND fr.status = 'pending'
	          ORDER BY fr.requested_at DESC`

	err := sqlx.SelectContext(ctx, r.db, &requests, query, userID)
	if err != nil {
		return nil, err
	}
	return requests, nil
}
