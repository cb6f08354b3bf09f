package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
	"github.com/AnshRaj112/rockhunter-backend/internal/store"
	"github.com/AnshRaj112/rockhunter-backend/pkg/utils"
)

func TestIdentitySignUpSignsIn(t *testing.T) {
	kv := store.NewMemoryKV(0)
	ids := NewIdentityService(kv)

	user, err := ids.SignUp("kiwi", "kiwi@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Empty(t, user.PasswordHash)

	current, err := ids.CurrentUser()
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, user.ID, current.ID)

	raw, ok, err := kv.Get(store.CurrentUserKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, raw, "argon2id", "the session copy has no hash")

	raw, ok, err = kv.Get(store.UsersKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, raw, "$argon2id$")
	assert.NotContains(t, raw, "secret1")
}

func TestIdentitySignUpConflicts(t *testing.T) {
	ids := NewIdentityService(store.NewMemoryKV(0))
	_, err := ids.SignUp("kiwi", "kiwi@example.com", "secret1")
	require.NoError(t, err)

	_, err = ids.SignUp("KIWI", "other@example.com", "secret1")
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.EqualError(t, err, "Username already exists")

	_, err = ids.SignUp("tui", "Kiwi@Example.com", "secret1")
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.EqualError(t, err, "Email already registered")
}

func TestIdentitySignUpValidation(t *testing.T) {
	ids := NewIdentityService(store.NewMemoryKV(0))

	tests := []struct {
		name, username, email, password, field string
	}{
		{"short username", "ab", "a@example.com", "secret1", "username"},
		{"bad email", "kiwi", "not-an-email", "secret1", "email"},
		{"short password", "kiwi", "a@example.com", "123", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ids.SignUp(tt.username, tt.email, tt.password)
			var verr *utils.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	current, err := ids.CurrentUser()
	require.NoError(t, err)
	assert.Nil(t, current, "nothing is applied on failure")
}

func TestIdentitySignIn(t *testing.T) {
	ids := NewIdentityService(store.NewMemoryKV(0))
	user, err := ids.SignUp("kiwi", "kiwi@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, ids.SignOut())

	current, err := ids.CurrentUser()
	require.NoError(t, err)
	assert.Nil(t, current)

	for _, login := range []string{"kiwi", "kiwi@example.com", "KIWI@example.com"} {
		got, err := ids.SignIn(login, "secret1")
		require.NoError(t, err, login)
		assert.Equal(t, user.ID, got.ID)
	}

	_, err = ids.SignIn("kiwi", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = ids.SignIn("nobody", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.EqualError(t, err, "Invalid username/email or password")
}

func TestIdentityProfile(t *testing.T) {
	ids := NewIdentityService(store.NewMemoryKV(0))

	_, err := ids.Profile(nil)
	assert.ErrorIs(t, err, ErrNotSignedIn)

	user, err := ids.SignUp("kiwi", "kiwi@example.com", "secret1")
	require.NoError(t, err)

	rocks := []models.Rock{
		{ID: "1", PostedBy: user.ID},
		{ID: "2", PostedBy: "someone"},
		{ID: "3", PostedBy: "someone", FoundByUserID: user.ID, Status: models.StatusFound},
	}
	profile, err := ids.Profile(rocks)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.User.RocksPosted)
	assert.Equal(t, 1, profile.User.RocksFound)
	assert.Equal(t, "1", profile.Posted[0].ID)
	assert.Equal(t, "3", profile.Found[0].ID)
}
