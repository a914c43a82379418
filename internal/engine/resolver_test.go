package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanstork/alert-api/internal/models"
	"github.com/stanstork/alert-api/internal/registry"
)

func newResolverFixture(t *testing.T, alertType registry.AlertType) (*registry.Registry, *fakePrefRepo, *Resolver) {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.RegisterAlertType("order_shipped", alertType))
	require.NoError(t, reg.RegisterBackend("email", &stubBackend{}))
	require.NoError(t, reg.RegisterBackend("push", &stubBackend{}))

	prefs := newFakePrefRepo(newFakeAlertRepo())
	return reg, prefs, NewResolver(reg, prefs)
}

func TestResolve_DefaultsApplyWithoutExplicitRows(t *testing.T) {
	_, _, resolver := newResolverFixture(t, stubAlert{
		def: registry.PerBackendDefault(map[string]bool{"email": true, "push": false}),
	})

	recipients, err := resolver.Resolve(context.Background(), "order_shipped", []models.User{
		testUser("u1", "u1@example.com"),
		testUser("u2", "u2@example.com"),
	})
	require.NoError(t, err)

	require.Len(t, recipients, 2)
	for _, r := range recipients {
		assert.Equal(t, "email", r.BackendID)
	}
}

func TestResolve_ExplicitPreferenceOverridesDefault(t *testing.T) {
	_, prefs, resolver := newResolverFixture(t, stubAlert{
		def: registry.UniformDefault(true),
	})

	ctx := context.Background()
	_, err := prefs.Upsert(ctx, models.AlertPreference{
		UserID: "u1", AlertType: "order_shipped", Backend: "email", Preference: false,
	})
	require.NoError(t, err)
	_, err = prefs.Upsert(ctx, models.AlertPreference{
		UserID: "u2", AlertType: "order_shipped", Backend: "push", Preference: true,
	})
	require.NoError(t, err)

	recipients, err := resolver.Resolve(ctx, "order_shipped", []models.User{
		testUser("u1", "u1@example.com"),
		testUser("u2", "u2@example.com"),
	})
	require.NoError(t, err)

	got := make(map[string][]string)
	for _, r := range recipients {
		got[r.User.ID] = append(got[r.User.ID], r.BackendID)
	}
	// u1 turned email off, keeps default-on push.
	assert.Equal(t, []string{"push"}, got["u1"])
	// u2's explicit push row agrees with the default; both stay on.
	assert.ElementsMatch(t, []string{"email", "push"}, got["u2"])
}

func TestResolve_EmptyCandidateSetSkipsStore(t *testing.T) {
	_, prefs, resolver := newResolverFixture(t, stubAlert{
		def: registry.UniformDefault(true),
	})

	recipients, err := resolver.Resolve(context.Background(), "order_shipped", nil)
	require.NoError(t, err)
	assert.Empty(t, recipients)
	assert.Zero(t, prefs.listTypeCalls)
}

func TestResolve_AnonymousUsersAreDropped(t *testing.T) {
	_, prefs, resolver := newResolverFixture(t, stubAlert{
		def: registry.UniformDefault(true),
	})

	recipients, err := resolver.Resolve(context.Background(), "order_shipped", []models.User{
		{}, // anonymous
		testUser("u1", "u1@example.com"),
	})
	require.NoError(t, err)

	require.Len(t, recipients, 2)
	for _, r := range recipients {
		assert.Equal(t, "u1", r.User.ID)
	}
	assert.Equal(t, 1, prefs.listTypeCalls)
}

func TestResolve_AllAnonymousSkipsStore(t *testing.T) {
	_, prefs, resolver := newResolverFixture(t, stubAlert{
		def: registry.UniformDefault(true),
	})

	recipients, err := resolver.Resolve(context.Background(), "order_shipped", []models.User{{}, {}})
	require.NoError(t, err)
	assert.Empty(t, recipients)
	assert.Zero(t, prefs.listTypeCalls)
}

func TestResolve_UnknownAlertType(t *testing.T) {
	_, _, resolver := newResolverFixture(t, stubAlert{def: registry.UniformDefault(true)})

	_, err := resolver.Resolve(context.Background(), "no_such_type", []models.User{testUser("u1", "u1@example.com")})
	assert.ErrorIs(t, err, ErrUnknownAlertType)
}

func TestResolve_MissingPerBackendDefault(t *testing.T) {
	_, _, resolver := newResolverFixture(t, stubAlert{
		def: registry.PerBackendDefault(map[string]bool{"email": true}), // no entry for push
	})

	_, err := resolver.Resolve(context.Background(), "order_shipped", []models.User{testUser("u1", "u1@example.com")})
	assert.ErrorIs(t, err, registry.ErrNoDefault)
}
