package model

import "time"

const (
	FriendRequestPending   = "pending"
	FriendRequestAccepted  = "accepted"
	FriendRequestDeclined  = "declined"
	FriendRequestCancelled = "cancelled"
)

type Friendship struct {
	UserID1 string    `db:"user_id1" json:"user_id1"`
	UserID2 string    `db:"user_id2" json:"user_id2"`
	Since   time.Time `db:"since" json:"since"`
}

// CanonicalPair orders two user ids so an undirected edge has one key
func CanonicalPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

type Friend struct {
	ID      string    `db:"id" json:"id"`
	Email   string    `db:"email" json:"email"`
	Name    string    `db:"name" json:"name"`
	Picture string    `db:"picture" json:"picture"`
	Level   int       `db:"level" json:"level"`
	Streak  int       `db:"streak" json:"streak"`
	Since   time.Time `db:"since" json:"since"`
}

type FriendRequest struct {
	ID          string     `db:"id" json:"id"`
	SenderID    string     `db:"sender_id" json:"sender_id"`
	ReceiverID  string     `db:"receiver_id" json:"receiver_id"`
	Status      string     `db:"status" json:"status"`
	RequestedAt time.Time  `db:"requested_at" json:"requested_at"`
	RespondedAt *time.Time `db:"responded_at" json:"responded_at"`

	// Joined counterpart details on listing queries
	SenderName    string `db:"sender_name" json:"sender_name,omitempty"`
	SenderEmail   string `db:"sender_email" json:"sender_email,omitempty"`
	ReceiverName  string `db:"receiver_name" json:"receiver_name,omitempty"`
	ReceiverEmail string `db:"receiver_email" json:"receiver_email,omitempty"`
}

type FriendRequests struct {
	Incoming []*FriendRequest `json:"incoming"`
	Outgoing []*FriendRequest `json:"outgoing"`
}
