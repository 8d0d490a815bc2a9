package workspace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-service/internal/apiclient"
	"portal-service/internal/network"
	"portal-service/internal/session"
)

func newTestRegistry(t *testing.T, handler http.Handler) (*Registry, *session.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := session.NewMemoryStore()
	return NewRegistry(Options{APIBaseURL: srv.URL, HTTPClient: srv.Client(), Store: store}), store
}

func TestGet_ReusesWorkspaceForSameToken(t *testing.T) {
	reg, _ := newTestRegistry(t, http.NotFoundHandler())

	first := reg.Get("u1", "tok")
	second := reg.Get("u1", "tok")

	assert.Same(t, first, second)
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, "u1", first.Session.ViewerID())
}

func TestGet_TwoTokensForSameViewerKeepSeparateWorkspaces(t *testing.T) {
	reg, _ := newTestRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))

	laptop := reg.Get("u1", "tok-laptop")
	phone := reg.Get("u1", "tok-phone")

	assert.NotSame(t, laptop, phone)
	assert.Equal(t, 2, reg.Len())
	assert.Same(t, laptop, reg.Get("u1", "tok-laptop"))
	require.NoError(t, laptop.Network.LoadTab(context.Background(), network.TabConnections))
	require.NoError(t, phone.Network.LoadTab(context.Background(), network.TabConnections))
}

func TestSessionExpiryDropsOnlyThatWorkspace(t *testing.T) {
	reg, store := newTestRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer forged" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Token is not valid"}`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	ctx := context.Background()
	victim := reg.Get("victim", "good")
	sid, err := victim.Session.Persist(ctx)
	require.NoError(t, err)

	forged := reg.Get("victim", "forged")
	_, err = forged.Social.ListConnections(ctx)

	require.ErrorIs(t, err, apiclient.ErrSessionExpired)
	assert.True(t, forged.Session.Expired())
	assert.Equal(t, 1, reg.Len())
	assert.Same(t, victim, reg.Get("victim", "good"))
	require.NoError(t, victim.Network.LoadTab(ctx, network.TabConnections))
	rec, err := store.Load(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "good", rec.Token)
}

func TestSessionExpiryRevokesStoredSession(t *testing.T) {
	reg, store := newTestRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Token expired"}`))
	}))
	ctx := context.Background()
	ws := reg.Get("u1", "tok")
	sid, err := ws.Session.Persist(ctx)
	require.NoError(t, err)

	_, err = ws.Social.ListConnections(ctx)

	require.ErrorIs(t, err, apiclient.ErrSessionExpired)
	assert.Zero(t, reg.Len())
	_, err = store.Load(ctx, sid)
	assert.Error(t, err)
	assert.ErrorIs(t, ws.Network.LoadTab(ctx, network.TabConnections), network.ErrClosed)
}

func TestGet_ExpiredWorkspaceIsRebuilt(t *testing.T) {
	reg, _ := newTestRegistry(t, http.NotFoundHandler())
	old := reg.Get("u1", "tok")
	old.Session.Expire(context.Background())

	fresh := reg.Get("u1", "tok")

	assert.NotSame(t, old, fresh)
	assert.Equal(t, 1, reg.Len())
}

func TestDropAndClose(t *testing.T) {
	reg, _ := newTestRegistry(t, http.NotFoundHandler())
	dropped := reg.Get("u1", "a")
	reg.Get("u2", "b")

	reg.Drop("a")
	reg.Drop("missing")
	assert.Equal(t, 1, reg.Len())
	assert.ErrorIs(t, dropped.Network.LoadTab(context.Background(), network.TabConnections), network.ErrClosed)

	reg.Close()
	assert.Zero(t, reg.Len())
}

func TestPruneClosesIdleWorkspaces(t *testing.T) {
	reg, _ := newTestRegistry(t, http.NotFoundHandler())
	idle := reg.Get("u1", "a")
	reg.Get("u2", "b")

	assert.Zero(t, reg.Prune(time.Hour))
	assert.Equal(t, 2, reg.Prune(-time.Second))
	assert.Zero(t, reg.Len())
	assert.ErrorIs(t, idle.Network.LoadTab(context.Background(), network.TabConnections), network.ErrClosed)
}

func TestAnonymousAuthSendsNoToken(t *testing.T) {
	var gotAuth string
	reg, _ := newTestRegistry(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"token":"t","user":{"_id":"u1","name":"Ada"}}`))
	}))

	res, err := reg.Anonymous().Login(context.Background(), "ada@example.com", "pw")

	require.NoError(t, err)
	assert.Equal(t, "t", res.Token)
	assert.Empty(t, gotAuth)
}
