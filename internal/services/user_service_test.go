package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_GetOrCreate(t *testing.T) {
	env := setupNotifierTestDB(t)
	svc := NewUserService(env.users)

	user, err := svc.GetOrCreate("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, user.NotificationsEnabled)
	assert.False(t, user.Reachable())

	again, err := svc.GetOrCreate("alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestUserService_LinkTelegram(t *testing.T) {
	env := setupNotifierTestDB(t)
	svc := NewUserService(env.users)

	user, err := svc.LinkTelegram("alice", " 123456 ", "@alice_farms")
	require.NoError(t, err)
	assert.Equal(t, "123456", user.ChatHandle())
	assert.Equal(t, "alice_farms", user.TelegramUsername)
	assert.True(t, user.TelegramLinked)
	assert.True(t, user.Reachable())

	_, err = svc.LinkTelegram("bob", "123456", "")
	assert.ErrorIs(t, err, ErrChatAlreadyLinked)

	_, err = svc.LinkTelegram("bob", "hello there", "")
	assert.ErrorIs(t, err, ErrInvalidChatID)

	_, err = svc.LinkTelegram("alice", "123456", "alice")
	assert.NoError(t, err)

	user, err = svc.UnlinkTelegram("alice")
	require.NoError(t, err)
	assert.Nil(t, user.TelegramChatID)
	assert.False(t, user.Reachable())

	_, err = svc.UnlinkTelegram("ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_SetNotificationsEnabled(t *testing.T) {
	env := setupNotifierTestDB(t)
	svc := NewUserService(env.users)
	env.addUser(t, "alice", "42")

	user, err := svc.SetNotificationsEnabled("alice", false)
	require.NoError(t, err)
	assert.False(t, user.NotificationsEnabled)

	stored, err := env.users.FindByUsername("alice")
	require.NoError(t, err)
	assert.False(t, stored.NotificationsEnabled)

	_, err = svc.SetNotificationsEnabled("ghost", true)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_FindAndUnlinkByChat(t *testing.T) {
	env := setupNotifierTestDB(t)
	svc := NewUserService(env.users)
	env.addUser(t, "alice", "42")

	user, err := svc.FindByChat(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = svc.FindByChat("99")
	assert.ErrorIs(t, err, ErrTelegramNotLinked)

	user, err = svc.UnlinkChat("42")
	require.NoError(t, err)
	assert.False(t, user.TelegramLinked)

	_, err = svc.UnlinkChat("42")
	assert.ErrorIs(t, err, ErrTelegramNotLinked)
}
