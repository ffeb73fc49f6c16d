package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"bookshelf/internal/backend"
	"bookshelf/internal/backend/memory"
	"bookshelf/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func strPtr(s string) *string { return &s }

func waitReady(t *testing.T, m *Manager) {
	t.Helper()
	select {
	case <-m.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("manager never became ready")
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func startManager(t *testing.T, be *memory.Backend) *Manager {
	t.Helper()
	m := NewManager(be, nil)
	m.Start()
	t.Cleanup(m.Close)
	waitReady(t, m)
	return m
}

func TestStartWithoutSessionIsAnonymous(t *testing.T) {
	m := startManager(t, memory.New())

	st := m.State()
	assert.False(t, st.Loading)
	assert.False(t, st.Authenticated())
	assert.Nil(t, st.Profile)
	assert.Equal(t, "", st.UserID())
}

func TestNewManagerStartsLoading(t *testing.T) {
	m := NewManager(memory.New(), nil)
	defer m.Close()
	assert.True(t, m.State().Loading)
}

func TestSignUpLoadsProfile(t *testing.T) {
	be := memory.New()
	m := startManager(t, be)

	require.NoError(t, m.SignUp(context.Background(), "ada@example.com", "password1", "ada"))

	eventually(t, func() bool { return m.State().Profile != nil }, "profile never loaded")
	st := m.State()
	require.True(t, st.Authenticated())
	assert.Equal(t, "ada@example.com", st.User.Email)
	assert.Equal(t, st.User.ID, st.Profile.ID)
	assert.Equal(t, "ada", *st.Profile.Username)
}

func TestSignInWithBadCredentialsKeepsState(t *testing.T) {
	m := startManager(t, memory.New())

	err := m.SignIn(context.Background(), "nobody@example.com", "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrRemoteRead)
	assert.False(t, m.State().Authenticated())
}

func TestNullSessionClearsStateFromAnyState(t *testing.T) {
	be := memory.New()
	m := startManager(t, be)
	ctx := context.Background()

	require.NoError(t, m.SignUp(ctx, "ada@example.com", "password1", "ada"))
	eventually(t, func() bool { return m.State().Profile != nil }, "profile never loaded")

	require.NoError(t, m.SignOut(ctx))
	eventually(t, func() bool { return !m.State().Authenticated() }, "still signed in")
	assert.Nil(t, m.State().Profile)

	// signing out while already anonymous lands in the same state
	require.NoError(t, m.SignOut(ctx))
	eventually(t, func() bool { return be.Calls(memory.OpSignOut) == 2 }, "second sign out not sent")
	assert.False(t, m.State().Authenticated())
	assert.Nil(t, m.State().Profile)
}

func TestProfileFetchFailureLeavesProfileNil(t *testing.T) {
	be := memory.New()
	m := startManager(t, be)
	ctx := context.Background()

	require.NoError(t, be.SignUp(ctx, backend.SignUpRequest{Email: "ada@example.com", Password: "password1"}))
	eventually(t, func() bool { return m.State().Profile != nil }, "profile never loaded")
	require.NoError(t, be.SignOut(ctx))
	eventually(t, func() bool { return !m.State().Authenticated() }, "still signed in")

	be.FailNext(memory.OpGetProfile, backend.ReadError("get profile", 500, "boom"))
	require.NoError(t, m.SignIn(ctx, "ada@example.com", "password1"))

	eventually(t, func() bool { return m.State().Authenticated() }, "never signed in")
	assert.Nil(t, m.State().Profile)
}

func TestUpdateProfileWithoutUserDoesNotWrite(t *testing.T) {
	be := memory.New()
	m := startManager(t, be)

	err := m.UpdateProfile(context.Background(), models.ProfileUpdate{FullName: strPtr("Ada Lovelace")})
	assert.ErrorIs(t, err, backend.ErrNoActiveUser)
	assert.Equal(t, 0, be.Calls(memory.OpUpdateProfile))
}

func TestUpdateProfileMergesSuppliedFields(t *testing.T) {
	be := memory.New()
	m := startManager(t, be)
	ctx := context.Background()

	require.NoError(t, m.SignUp(ctx, "ada@example.com", "password1", "ada"))
	eventually(t, func() bool { return m.State().Profile != nil }, "profile never loaded")
	before := m.State().Profile

	updates := []models.ProfileUpdate{
		{FullName: strPtr("Ada Lovelace")},
		{AvatarURL: strPtr("https://example.com/ada.png")},
		{Username: strPtr("countess")},
	}
	for _, u := range updates {
		require.NoError(t, m.UpdateProfile(ctx, u))
	}

	after := m.State().Profile
	require.NotNil(t, after)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "countess", *after.Username)
	assert.Equal(t, "Ada Lovelace", *after.FullName)
	assert.Equal(t, "https://example.com/ada.png", *after.AvatarURL)

	stored, ok := be.Profile(before.ID)
	require.True(t, ok)
	assert.Equal(t, "Ada Lovelace", *stored.FullName)
}

func TestUpdateProfileFailureKeepsCache(t *testing.T) {
	be := memory.New()
	m := startManager(t, be)
	ctx := context.Background()

	require.NoError(t, m.SignUp(ctx, "ada@example.com", "password1", "ada"))
	eventually(t, func() bool { return m.State().Profile != nil }, "profile never loaded")

	be.FailNext(memory.OpUpdateProfile, backend.WriteError("update profile", 500, "boom"))
	err := m.UpdateProfile(ctx, models.ProfileUpdate{FullName: strPtr("Ada")})
	assert.ErrorIs(t, err, backend.ErrRemoteWrite)
	assert.Nil(t, m.State().Profile.FullName)
}

func TestUpdateProfileTrimsUsernameBeforeWrite(t *testing.T) {
	be := memory.New()
	m := startManager(t, be)
	ctx := context.Background()

	require.NoError(t, m.SignUp(ctx, "ada@example.com", "password1", "ada"))
	eventually(t, func() bool { return m.State().Profile != nil }, "profile never loaded")

	require.NoError(t, m.UpdateProfile(ctx, models.ProfileUpdate{Username: strPtr("  countess  ")}))

	cached := m.State().Profile
	stored, ok := be.Profile(cached.ID)
	require.True(t, ok)
	assert.Equal(t, "countess", *cached.Username)
	assert.Equal(t, *stored.Username, *cached.Username)
}

func TestNilClient(t *testing.T) {
	m := NewManager(nil, nil)
	m.Start()
	defer m.Close()
	waitReady(t, m)

	ctx := context.Background()
	assert.False(t, m.State().Loading)
	assert.ErrorIs(t, m.SignIn(ctx, "a@b.c", "x"), backend.ErrBackendUnavailable)
	assert.ErrorIs(t, m.SignUp(ctx, "a@b.c", "x", "a"), backend.ErrBackendUnavailable)
	assert.ErrorIs(t, m.SignOut(ctx), backend.ErrBackendUnavailable)
	assert.ErrorIs(t, m.UpdateProfile(ctx, models.ProfileUpdate{}), backend.ErrBackendUnavailable)
}

func TestCloseReleasesSubscriptionOnce(t *testing.T) {
	be := memory.New()
	m := NewManager(be, nil)
	m.Start()
	waitReady(t, m)
	require.Equal(t, 1, be.Subscribers())

	m.Close()
	m.Close()
	assert.Equal(t, 0, be.Subscribers())

	// a start after close must not resubscribe
	m.Start()
	assert.Equal(t, 0, be.Subscribers())
}

func TestCloseWithoutStart(t *testing.T) {
	m := NewManager(memory.New(), nil)
	done := make(chan struct{})
	go func() {
		m.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked without Start")
	}
}

func TestSubscribersSeeEveryTransition(t *testing.T) {
	be := memory.New()
	m := NewManager(be, nil)

	seen := make(chan State, 8)
	unsub := m.Subscribe(func(st State) { seen <- st })
	defer unsub()

	m.Start()
	defer m.Close()
	waitReady(t, m)

	first := <-seen
	assert.False(t, first.Authenticated())

	require.NoError(t, m.SignUp(context.Background(), "ada@example.com", "password1", ""))
	select {
	case st := <-seen:
		assert.True(t, st.Authenticated())
	case <-time.After(2 * time.Second):
		t.Fatal("no notification after sign up")
	}
}

func TestRemoteErrorsAreWrapped(t *testing.T) {
	be := memory.New()
	m := startManager(t, be)

	be.FailNext(memory.OpSignUp, errors.New("dial tcp: refused"))
	err := m.SignUp(context.Background(), "ada@example.com", "password1", "ada")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sign up")
}
