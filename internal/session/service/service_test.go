package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linker/internal/backend"
	"linker/internal/identity"
	"linker/internal/identity/identitytest"
	"linker/internal/notice"
	"linker/internal/session/models"
	"linker/internal/session/store"
	dErrors "linker/pkg/domain-errors"
	"linker/pkg/platform/sentinel"
)

// fakeBackend scripts the three auth exchanges. Function fields override the
// canned responses for tests that need to orchestrate timing.
type fakeBackend struct {
	mu sync.Mutex

	meUser *models.User
	meErr  error

	syncPayload *backend.AuthPayload
	syncErr     error
	syncFn      func(ctx context.Context, providerCredential string, req backend.SyncRequest) (*backend.AuthPayload, error)

	loginPayload *backend.AuthPayload
	loginErr     error

	meCalls    int
	syncCalls  int
	loginCalls int
}

func (f *fakeBackend) Me(_ context.Context) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCalls++
	if f.meErr != nil {
		return nil, f.meErr
	}
	u := *f.meUser
	return &u, nil
}

func (f *fakeBackend) ClerkSync(ctx context.Context, providerCredential string, req backend.SyncRequest) (*backend.AuthPayload, error) {
	f.mu.Lock()
	f.syncCalls++
	fn := f.syncFn
	payload, err := f.syncPayload, f.syncErr
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, providerCredential, req)
	}
	if err != nil {
		return nil, err
	}
	p := *payload
	return &p, nil
}

func (f *fakeBackend) Login(_ context.Context, _, _ string) (*backend.AuthPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	p := *f.loginPayload
	return &p, nil
}

type fixture struct {
	store       *Store
	provider    *identitytest.Fake
	backend     *fakeBackend
	credentials *store.InMemoryCredentialStore
	notices     *notice.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		provider:    &identitytest.Fake{},
		backend:     &fakeBackend{},
		credentials: store.NewMemory(),
		notices:     notice.NewBus(),
	}
	f.store = New(f.provider, f.backend, f.credentials, f.notices, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

// requireInvariant asserts user present ⇔ credential present.
func (f *fixture) requireInvariant(t *testing.T) {
	t.Helper()
	snap := f.store.Snapshot()
	_, hasCredential := f.store.Credential()
	require.Equal(t, snap.Authenticated(), hasCredential,
		"user present must imply credential present and vice versa")
}

func buyerUser() models.User {
	return models.User{
		ID: "42", Role: models.RoleBuyer, Name: "Emma Lewis",
		Email: "emma@linker.example", ApprovalStatus: models.ApprovalNone,
		IsVerifiedBuyer: true,
	}
}

func pendingManufacturer() models.User {
	return models.User{
		ID: "7", Role: models.RoleManufacturer, Name: "Masco Knits Ltd.",
		Email: "ops@masco.example", ApprovalStatus: models.ApprovalPending,
	}
}

func TestRestore(t *testing.T) {
	t.Run("no credential and no sign-in resolves empty", func(t *testing.T) {
		f := newFixture(t)

		f.store.Restore(context.Background())

		snap := f.store.Snapshot()
		assert.Nil(t, snap.User)
		assert.False(t, snap.Loading)
		f.requireInvariant(t)
		assert.Zero(t, f.backend.meCalls)
		assert.Zero(t, f.backend.syncCalls)

		select {
		case <-f.store.Ready():
		default:
			t.Fatal("Ready must be released after restore")
		}
	})

	t.Run("stored credential resolves the user", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.credentials.Save(context.Background(), "tok_stored"))
		u := buyerUser()
		f.backend.meUser = &u

		f.store.Restore(context.Background())

		snap := f.store.Snapshot()
		require.NotNil(t, snap.User)
		assert.Equal(t, models.RoleBuyer, snap.User.Role)
		assert.False(t, snap.Loading)
		f.requireInvariant(t)

		credential, ok := f.store.Credential()
		require.True(t, ok)
		assert.Equal(t, "tok_stored", credential)
	})

	t.Run("rejected credential is erased and session resolves empty", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.credentials.Save(context.Background(), "tok_stale"))
		f.backend.meErr = dErrors.Wrap(models.ErrSessionExpired, dErrors.CodeUnauthorized, "session expired")

		f.store.Restore(context.Background())

		snap := f.store.Snapshot()
		assert.Nil(t, snap.User)
		assert.False(t, snap.Loading)
		f.requireInvariant(t)

		_, err := f.credentials.Load(context.Background())
		assert.ErrorIs(t, err, sentinel.ErrNotFound, "rejected credential must be erased")
	})

	t.Run("rejected credential falls back to identity sync once", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.credentials.Save(context.Background(), "tok_stale"))
		f.backend.meErr = dErrors.Wrap(models.ErrSessionExpired, dErrors.CodeUnauthorized, "session expired")
		f.provider.SignIn(identity.Identity{Subject: "user_1"}, "idp_tok")
		f.backend.syncPayload = &backend.AuthPayload{Token: "tok_fresh", User: buyerUser()}

		f.store.Restore(context.Background())

		snap := f.store.Snapshot()
		require.NotNil(t, snap.User)
		assert.Equal(t, 1, f.backend.syncCalls)
		f.requireInvariant(t)

		credential, _ := f.store.Credential()
		assert.Equal(t, "tok_fresh", credential)
	})

	t.Run("no credential with active sign-in syncs", func(t *testing.T) {
		f := newFixture(t)
		f.provider.SignIn(identity.Identity{Subject: "user_1"}, "idp_tok")
		f.backend.syncPayload = &backend.AuthPayload{Token: "tok_fresh", User: buyerUser()}

		f.store.Restore(context.Background())

		snap := f.store.Snapshot()
		require.NotNil(t, snap.User)
		assert.Zero(t, f.backend.meCalls)
		f.requireInvariant(t)
	})

	t.Run("runs at most once per boot", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.credentials.Save(context.Background(), "tok_stored"))
		u := buyerUser()
		f.backend.meUser = &u

		f.store.Restore(context.Background())
		f.store.Restore(context.Background())

		assert.Equal(t, 1, f.backend.meCalls)
	})

	t.Run("loading transitions monotonically", func(t *testing.T) {
		f := newFixture(t)
		assert.True(t, f.store.Snapshot().Loading)

		f.store.Restore(context.Background())

		assert.False(t, f.store.Snapshot().Loading)
	})
}

func TestSyncWithIdentityProvider(t *testing.T) {
	t.Run("fails without sign-in and makes no network calls", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.store.SyncWithIdentityProvider(context.Background(), models.RoleBuyer, "")

		require.ErrorIs(t, err, models.ErrNotSignedIn)
		assert.Zero(t, f.provider.CredentialCalls)
		assert.Zero(t, f.backend.syncCalls)
		f.requireInvariant(t)
	})

	t.Run("empty minted credential is fatal and not retried", func(t *testing.T) {
		f := newFixture(t)
		f.provider.SignIn(identity.Identity{Subject: "user_1"}, "")

		_, err := f.store.SyncWithIdentityProvider(context.Background(), models.RoleBuyer, "")

		require.ErrorIs(t, err, models.ErrCredentialUnavailable)
		assert.Equal(t, 1, f.provider.CredentialCalls)
		assert.Zero(t, f.backend.syncCalls)
	})

	t.Run("pending manufacturer emits pending-approval notice", func(t *testing.T) {
		f := newFixture(t)
		f.provider.SignIn(identity.Identity{Subject: "user_7"}, "idp_tok")
		f.backend.syncPayload = &backend.AuthPayload{Token: "tok_m", User: pendingManufacturer()}

		user, err := f.store.SyncWithIdentityProvider(context.Background(), models.RoleManufacturer, "Masco Knits Ltd.")
		require.NoError(t, err)
		assert.Equal(t, models.ApprovalPending, user.ApprovalStatus)

		notices := f.notices.Drain()
		require.Len(t, notices, 1)
		assert.Equal(t, notice.LevelInfo, notices[0].Level)
		assert.Contains(t, notices[0].Message, "pending approval")
		f.requireInvariant(t)
	})

	t.Run("buyer emits welcome notice", func(t *testing.T) {
		f := newFixture(t)
		f.provider.SignIn(identity.Identity{Subject: "user_42"}, "idp_tok")
		f.backend.syncPayload = &backend.AuthPayload{Token: "tok_b", User: buyerUser()}

		_, err := f.store.SyncWithIdentityProvider(context.Background(), models.RoleBuyer, "")
		require.NoError(t, err)

		notices := f.notices.Drain()
		require.Len(t, notices, 1)
		assert.Equal(t, notice.LevelSuccess, notices[0].Level)
		assert.Contains(t, notices[0].Message, "Welcome")
	})

	t.Run("backend rejection surfaces message and leaves session empty", func(t *testing.T) {
		f := newFixture(t)
		f.provider.SignIn(identity.Identity{Subject: "user_1"}, "idp_tok")
		f.backend.syncErr = dErrors.Wrap(models.ErrSyncRejected, dErrors.CodeForbidden, "account disabled by admin")

		_, err := f.store.SyncWithIdentityProvider(context.Background(), models.RoleBuyer, "")

		require.ErrorIs(t, err, models.ErrSyncRejected)
		assert.Equal(t, "account disabled by admin", dErrors.MessageOf(err, ""))
		assert.Nil(t, f.store.Snapshot().User)
		f.requireInvariant(t)
	})

	t.Run("resolved role overrides the requested hint", func(t *testing.T) {
		f := newFixture(t)
		f.provider.SignIn(identity.Identity{Subject: "user_42"}, "idp_tok")
		// An existing buyer account syncing with a manufacturer hint stays
		// a buyer: the backend is authoritative.
		f.backend.syncPayload = &backend.AuthPayload{Token: "tok_b", User: buyerUser()}

		user, err := f.store.SyncWithIdentityProvider(context.Background(), models.RoleManufacturer, "Acme")
		require.NoError(t, err)
		assert.Equal(t, models.RoleBuyer, user.Role)
	})
}

func TestLoginLegacyAdmin(t *testing.T) {
	t.Run("success populates session", func(t *testing.T) {
		f := newFixture(t)
		f.backend.loginPayload = &backend.AuthPayload{
			Token: "tok_admin",
			User: models.User{
				ID: "1", Role: models.RoleAdmin, Name: "System Admin",
				Email: "admin@linker.example", ApprovalStatus: models.ApprovalNone,
			},
		}

		err := f.store.LoginLegacyAdmin(context.Background(), "admin@linker.example", "hunter2")
		require.NoError(t, err)

		snap := f.store.Snapshot()
		require.NotNil(t, snap.User)
		assert.Equal(t, models.RoleAdmin, snap.User.Role)
		f.requireInvariant(t)
	})

	t.Run("rejection surfaces backend message without touching session", func(t *testing.T) {
		f := newFixture(t)
		f.backend.loginErr = dErrors.Wrap(models.ErrInvalidCredentials, dErrors.CodeUnauthorized, "Bad email or password")

		err := f.store.LoginLegacyAdmin(context.Background(), "admin@linker.example", "wrong")

		require.ErrorIs(t, err, models.ErrInvalidCredentials)
		assert.Equal(t, "Bad email or password", dErrors.MessageOf(err, ""))
		assert.Nil(t, f.store.Snapshot().User)
		f.requireInvariant(t)
	})

	t.Run("missing fields rejected before any network call", func(t *testing.T) {
		f := newFixture(t)

		err := f.store.LoginLegacyAdmin(context.Background(), "", "")

		require.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
		assert.Zero(t, f.backend.loginCalls)
	})
}

func TestLogout(t *testing.T) {
	signIn := func(f *fixture) {
		f.provider.SignIn(identity.Identity{Subject: "user_42"}, "idp_tok")
		f.backend.syncPayload = &backend.AuthPayload{Token: "tok_b", User: buyerUser()}
		_, err := f.store.SyncWithIdentityProvider(context.Background(), models.RoleBuyer, "")
		require.NoError(t, err)
		f.notices.Drain()
	}

	t.Run("clears everything and emits notice", func(t *testing.T) {
		f := newFixture(t)
		signIn(f)

		f.store.Logout(context.Background())

		assert.Nil(t, f.store.Snapshot().User)
		f.requireInvariant(t)
		_, err := f.credentials.Load(context.Background())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		assert.Equal(t, 1, f.provider.SignOutCalls)

		notices := f.notices.Drain()
		require.Len(t, notices, 1)
		assert.Contains(t, notices[0].Message, "logged out")
	})

	t.Run("survives provider sign-out failure", func(t *testing.T) {
		f := newFixture(t)
		signIn(f)
		f.provider.FailSignOut(assert.AnError)

		f.store.Logout(context.Background())

		assert.Nil(t, f.store.Snapshot().User)
		f.requireInvariant(t)
	})
}

func TestLogoutWinsOverInFlightSync(t *testing.T) {
	f := newFixture(t)
	f.provider.SignIn(identity.Identity{Subject: "user_42"}, "idp_tok")

	exchangeStarted := make(chan struct{})
	releaseExchange := make(chan struct{})
	f.backend.syncFn = func(context.Context, string, backend.SyncRequest) (*backend.AuthPayload, error) {
		close(exchangeStarted)
		<-releaseExchange
		return &backend.AuthPayload{Token: "tok_late", User: buyerUser()}, nil
	}

	syncDone := make(chan error, 1)
	go func() {
		_, err := f.store.SyncWithIdentityProvider(context.Background(), models.RoleBuyer, "")
		syncDone <- err
	}()

	<-exchangeStarted
	f.store.Logout(context.Background())
	close(releaseExchange)

	err := <-syncDone
	require.Error(t, err, "a sync that lost to logout must not report success")
	assert.True(t, dErrors.Is(err, dErrors.CodeConflict))

	assert.Nil(t, f.store.Snapshot().User, "logout wins: the stale sync result must be discarded")
	f.requireInvariant(t)
	_, loadErr := f.credentials.Load(context.Background())
	assert.ErrorIs(t, loadErr, sentinel.ErrNotFound, "stale sync must not resurrect the stored credential")
}

func TestHandleSessionExpiredConverges(t *testing.T) {
	f := newFixture(t)
	f.provider.SignIn(identity.Identity{Subject: "user_42"}, "idp_tok")
	f.backend.syncPayload = &backend.AuthPayload{Token: "tok_b", User: buyerUser()}
	_, err := f.store.SyncWithIdentityProvider(context.Background(), models.RoleBuyer, "")
	require.NoError(t, err)

	// Simulate what the backend client does on 401 before invoking the hook.
	require.NoError(t, f.credentials.Clear(context.Background()))
	f.store.HandleSessionExpired(context.Background())

	assert.Nil(t, f.store.Snapshot().User)
	f.requireInvariant(t)
}

func TestDuplicateSubmitCollapses(t *testing.T) {
	f := newFixture(t)
	f.provider.SignIn(identity.Identity{Subject: "user_42"}, "idp_tok")

	started := make(chan struct{})
	release := make(chan struct{})
	f.backend.syncFn = func(context.Context, string, backend.SyncRequest) (*backend.AuthPayload, error) {
		close(started)
		<-release
		return &backend.AuthPayload{Token: "tok_b", User: buyerUser()}, nil
	}

	results := make(chan error, 2)
	go func() {
		_, err := f.store.SyncWithIdentityProvider(context.Background(), models.RoleBuyer, "")
		results <- err
	}()
	<-started
	go func() {
		_, err := f.store.SyncWithIdentityProvider(context.Background(), models.RoleBuyer, "")
		results <- err
	}()
	// Give the second submission time to join the in-flight exchange before
	// releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)

	require.NoError(t, <-results)
	require.NoError(t, <-results)
	assert.Equal(t, 1, f.backend.syncCalls, "concurrent submissions must share one exchange")
}
