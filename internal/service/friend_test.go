package service

import (
	"context"
	"testing"

	"github.com/magicjournal/server/internal/apperr"
	"github.com/magicjournal/server/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) countFriendships(t *testing.T) int {
	t.Helper()

	var n int
	require.NoError(t, f.db.Get(&n, `SELECT COUNT(*) FROM friendships`))
	return n
}

func (f *fixture) requestStatus(t *testing.T, id string) string {
	t.Helper()

	var status string
	require.NoError(t, f.db.Get(&status, `SELECT status FROM friend_requests WHERE id = $1`, id))
	return status
}

func TestFriendSend_ReversePendingAutoAccepts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.createUser(t, "ada@example.com", "Ada")
	bob := f.createUser(t, "bob@example.com", "Bob")

	sent, err := f.friendService.Send(ctx, ada.ID, FriendTarget{Email: "BOB@example.com"})
	require.NoError(t, err)
	assert.False(t, sent.Accepted)
	assert.Equal(t, model.FriendRequestPending, sent.Request.Status)

	reply, err := f.friendService.Send(ctx, bob.ID, FriendTarget{UserID: ada.ID})
	require.NoError(t, err)
	assert.True(t, reply.Accepted)
	assert.Equal(t, sent.Request.ID, reply.Request.ID)
	require.NotNil(t, reply.Friendship)
	assert.Less(t, reply.Friendship.UserID1, reply.Friendship.UserID2)

	assert.Equal(t, model.FriendRequestAccepted, f.requestStatus(t, sent.Request.ID))
	assert.Equal(t, 1, f.countFriendships(t))

	// retrying either direction does not duplicate the edge
	_, err = f.friendService.Send(ctx, bob.ID, FriendTarget{UserID: ada.ID})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	_, err = f.friendService.Send(ctx, ada.ID, FriendTarget{UserID: bob.ID})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, 1, f.countFriendships(t))

	adaFriends, err := f.friendService.Friends(ctx, ada.ID)
	require.NoError(t, err)
	require.Len(t, adaFriends, 1)
	assert.Equal(t, bob.ID, adaFriends[0].ID)

	bobFriends, err := f.friendService.Friends(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobFriends, 1)
	assert.Equal(t, ada.ID, bobFriends[0].ID)
}

func TestFriendSend_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.createUser(t, "ada@example.com", "Ada")
	bob := f.createUser(t, "bob@example.com", "Bob")

	_, err := f.friendService.Send(ctx, ada.ID, FriendTarget{})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	_, err = f.friendService.Send(ctx, ada.ID, FriendTarget{UserID: ada.ID})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	_, err = f.friendService.Send(ctx, ada.ID, FriendTarget{Email: "nobody@example.com"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	for _, bad := range []string{"bob", "Bob <bob@example.com>", "bob@"} {
		_, err = f.friendService.Send(ctx, ada.ID, FriendTarget{Email: bad})
		assert.True(t, apperr.Is(err, apperr.KindBadRequest), bad)
	}

	_, err = f.friendService.Send(ctx, ada.ID, FriendTarget{Email: "  BOB@Example.com "})
	require.NoError(t, err)

	_, err = f.friendService.Send(ctx, ada.ID, FriendTarget{UserID: bob.ID})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	requests, err := f.friendService.Requests(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, requests.Incoming, 1)
	assert.Empty(t, requests.Outgoing)
	assert.Equal(t, "Ada", requests.Incoming[0].SenderName)
}

func TestFriendAccept_OnlyReceiverWhilePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.createUser(t, "ada@example.com", "Ada")
	bob := f.createUser(t, "bob@example.com", "Bob")

	sent, err := f.friendService.Send(ctx, ada.ID, FriendTarget{UserID: bob.ID})
	require.NoError(t, err)

	_, err = f.friendService.Accept(ctx, ada.ID, sent.Request.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	edge, err := f.friendService.Accept(ctx, bob.ID, sent.Request.ID)
	require.NoError(t, err)
	assert.NotNil(t, edge)

	_, err = f.friendService.Accept(ctx, bob.ID, sent.Request.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = f.friendService.Accept(ctx, bob.ID, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, 1, f.countFriendships(t))
}

func TestFriendDeclineAndCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.createUser(t, "ada@example.com", "Ada")
	bob := f.createUser(t, "bob@example.com", "Bob")

	sent, err := f.friendService.Send(ctx, ada.ID, FriendTarget{UserID: bob.ID})
	require.NoError(t, err)

	assert.True(t, apperr.Is(f.friendService.Decline(ctx, ada.ID, sent.Request.ID), apperr.KindForbidden))
	require.NoError(t, f.friendService.Decline(ctx, bob.ID, sent.Request.ID))
	assert.Equal(t, model.FriendRequestDeclined, f.requestStatus(t, sent.Request.ID))
	assert.True(t, apperr.Is(f.friendService.Cancel(ctx, ada.ID, sent.Request.ID), apperr.KindConflict))

	// a declined request does not block a new one
	again, err := f.friendService.Send(ctx, ada.ID, FriendTarget{UserID: bob.ID})
	require.NoError(t, err)

	assert.True(t, apperr.Is(f.friendService.Cancel(ctx, bob.ID, again.Request.ID), apperr.KindForbidden))
	require.NoError(t, f.friendService.Cancel(ctx, ada.ID, again.Request.ID))
	assert.Equal(t, model.FriendRequestCancelled, f.requestStatus(t, again.Request.ID))
	assert.Equal(t, 0, f.countFriendships(t))
}

func TestFriendUnfriend_KeepsRequestHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.createUser(t, "ada@example.com", "Ada")
	bob := f.createUser(t, "bob@example.com", "Bob")

	sent, err := f.friendService.Send(ctx, ada.ID, FriendTarget{UserID: bob.ID})
	require.NoError(t, err)
	_, err = f.friendService.Accept(ctx, bob.ID, sent.Request.ID)
	require.NoError(t, err)

	require.NoError(t, f.friendService.Unfriend(ctx, bob.ID, ada.ID))
	assert.Equal(t, 0, f.countFriendships(t))
	assert.Equal(t, model.FriendRequestAccepted, f.requestStatus(t, sent.Request.ID))

	assert.True(t, apperr.Is(f.friendService.Unfriend(ctx, bob.ID, ada.ID), apperr.KindNotFound))
	assert.True(t, apperr.Is(f.friendService.Unfriend(ctx, bob.ID, bob.ID), apperr.KindBadRequest))

	// they can become friends again
	_, err = f.friendService.Send(ctx, ada.ID, FriendTarget{UserID: bob.ID})
	assert.NoError(t, err)
}

func TestFriendGoals_RequiresFriendship(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ada := f.createUser(t, "ada@example.com", "Ada")
	bob := f.createUser(t, "bob@example.com", "Bob")
	f.createGoal(t, bob.ID, "Learning", nil)

	_, err := f.friendService.FriendGoals(ctx, ada.ID, bob.ID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	sent, err := f.friendService.Send(ctx, ada.ID, FriendTarget{UserID: bob.ID})
	require.NoError(t, err)
	_, err = f.friendService.Accept(ctx, bob.ID, sent.Request.ID)
	require.NoError(t, err)

	view, err := f.friendService.FriendGoals(ctx, ada.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, view.Friend.ID)
	require.Len(t, view.Goals, 1)
	assert.Equal(t, "Learning", view.Goals[0].HabitName)
}
