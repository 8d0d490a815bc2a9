package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"portal-service/internal/apiclient"
	"portal-service/internal/mocks"
	"portal-service/internal/models"
)

func user(id, name, company string) models.User {
	return models.User{ID: id, Name: name, Profile: models.Profile{Company: company}}
}

func userIDs(views []View) []string {
	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.User.ID)
	}
	return ids
}

func relationIDs(views []View) []string {
	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.RelationID)
	}
	return ids
}

func newTestReconciler(src *mocks.MockSocialSource) *Reconciler {
	return NewReconciler(src, Options{ViewerID: "me", SuggestionsLimit: 10, UsersLimit: 10})
}

func view(t *testing.T, r *Reconciler, tab Tab) []View {
	t.Helper()
	views, err := r.FilteredView(tab, "")
	require.NoError(t, err)
	return views
}

func TestParseTab(t *testing.T) {
	cases := map[string]Tab{
		"0":           TabConnections,
		"1":           TabRequests,
		"suggestions": TabSuggestions,
		"Discover":    TabDiscover,
		"all":         TabDiscover,
	}
	for in, want := range cases {
		got, err := ParseTab(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTab("4")
	assert.ErrorIs(t, err, ErrUnknownTab)
	_, err = ParseTab("feed")
	assert.ErrorIs(t, err, ErrUnknownTab)
}

func TestFilter_MatchesCompanyCaseInsensitive(t *testing.T) {
	rels := FromConnections([]models.Connection{
		{ID: "c1", User: user("u1", "Ada", "Initech")},
		{ID: "c2", User: user("u2", "Grace", "Acme Corp")},
		{ID: "c3", User: user("u3", "Linus", "Globex")},
		{ID: "c4", User: user("u4", "Ken", "Umbrella")},
		{ID: "c5", User: user("u5", "Barbara", "Hooli")},
	})

	got := Filter(rels, "acme")
	require.Len(t, got, 1)
	assert.Equal(t, "u2", got[0].User.ID)
}

func TestFilter_MatchesNameAndHeadline(t *testing.T) {
	rels := []Relation{
		{RelationID: "u1", User: models.User{ID: "u1", Name: "Ada Lovelace"}},
		{RelationID: "u2", User: models.User{ID: "u2", Name: "Bob", Profile: models.Profile{Headline: "Senior ADA engineer"}}},
		{RelationID: "u3", User: models.User{ID: "u3", Name: "Carol"}},
	}

	got := Filter(rels, "ada")
	assert.Len(t, got, 2)
	assert.Len(t, Filter(rels, ""), 3)
	assert.Empty(t, Filter(rels, "zzz"))
}

func TestFilter_KeepsSurroundingWhitespace(t *testing.T) {
	rels := FromUsers([]models.User{
		user("u1", "Ada", "Acme"),
		user("u2", "Grace", "Acme Corp"),
		user("u3", "Linus", "Globex"),
	}, RoleMember, "")

	got := Filter(rels, "acme ")
	require.Len(t, got, 1)
	assert.Equal(t, "u2", got[0].User.ID)
	assert.Empty(t, Filter(rels, " globex"))
}

func TestFilter_Idempotent(t *testing.T) {
	rels := FromUsers([]models.User{
		user("u1", "Ada", "Acme"),
		user("u2", "Acme Fan", "Globex"),
		user("u3", "Bob", "Initech"),
	}, RoleMember, "")

	once := Filter(rels, "acme")
	twice := Filter(once, "acme")
	assert.Equal(t, once, twice)
}

func TestFromRequests_SkipsSettledRequests(t *testing.T) {
	rels := FromRequests([]models.ConnectionRequest{
		{ID: "r1", Requester: user("a", "A", ""), Status: models.RequestStatusPending},
		{ID: "r2", Requester: user("b", "B", ""), Status: models.RequestStatusAccepted},
		{ID: "r3", Requester: user("c", "C", "")},
	})

	require.Len(t, rels, 2)
	assert.Equal(t, Relation{RelationID: "r1", User: user("a", "A", ""), Role: RoleRequester}, rels[0])
	assert.Equal(t, "r3", rels[1].RelationID)
}

func TestLoadTab_NormalizesAndActivates(t *testing.T) {
	src := new(mocks.MockSocialSource)
	src.On("ListUsers", mock.Anything, models.Page{Number: 1, Limit: 10}).
		Return([]models.User{user("me", "Me", ""), user("u1", "Ada", "Acme")}, nil)
	src.On("ListSentRequests", mock.Anything).Return([]models.ConnectionRequest{
		{ID: "s1", Recipient: user("u1", "Ada", ""), Status: models.RequestStatusPending},
		{ID: "s2", Recipient: user("u9", "Old", ""), Status: models.RequestStatusAccepted},
	}, nil)
	r := newTestReconciler(src)

	require.NoError(t, r.LoadTab(context.Background(), TabDiscover))

	views := view(t, r, TabDiscover)
	require.Len(t, views, 1)
	assert.Equal(t, RoleMember, views[0].Role)
	assert.Equal(t, "u1", views[0].RelationID)
	assert.Equal(t, Status{Status: models.RelationPending, Direction: DirectionOutgoing}, views[0].Status)
	assert.Equal(t, TabDiscover, r.Active())
	assert.True(t, r.IsSent("u1"))
	assert.False(t, r.IsSent("u9"))
	assert.False(t, r.HasMore(TabDiscover))
	src.AssertExpectations(t)
}

func TestLoadTab_UnknownTab(t *testing.T) {
	r := newTestReconciler(new(mocks.MockSocialSource))
	assert.ErrorIs(t, r.LoadTab(context.Background(), Tab(7)), ErrUnknownTab)
	_, err := r.FilteredView(Tab(-1), "")
	assert.ErrorIs(t, err, ErrUnknownTab)
}

func TestLoadTab_FailureKeepsPreviousListAndSetsBanner(t *testing.T) {
	src := new(mocks.MockSocialSource)
	src.On("ListConnections", mock.Anything).
		Return([]models.Connection{{ID: "c1", User: user("u1", "Ada", "")}}, nil).Once()
	src.On("ListConnections", mock.Anything).
		Return(nil, &apiclient.APIError{StatusCode: http.StatusInternalServerError, Message: "database down"}).Once()
	src.On("ListConnections", mock.Anything).
		Return([]models.Connection{{ID: "c2", User: user("u2", "Grace", "")}}, nil).Once()
	src.On("ListSentRequests", mock.Anything).Return(nil, nil)
	r := newTestReconciler(src)
	ctx := context.Background()

	require.NoError(t, r.LoadTab(ctx, TabConnections))

	err := r.LoadTab(ctx, TabConnections)
	require.Error(t, err)
	assert.Equal(t, "database down", r.Banner())
	assert.Equal(t, []string{"c1"}, relationIDs(view(t, r, TabConnections)))

	require.NoError(t, r.LoadTab(ctx, TabConnections))
	assert.Empty(t, r.Banner())
	assert.Equal(t, []string{"c2"}, relationIDs(view(t, r, TabConnections)))
}

func TestSendRequest_RemovesUserFromSuggestionsAndDiscover(t *testing.T) {
	src := new(mocks.MockSocialSource)
	x := user("x", "Xavier", "Acme")
	y := user("y", "Yara", "Globex")
	src.On("ListSuggestions", mock.Anything, mock.Anything).Return([]models.User{x, y}, nil)
	src.On("ListUsers", mock.Anything, mock.Anything).Return([]models.User{x, y}, nil).Once()
	src.On("ListSentRequests", mock.Anything).Return(nil, nil).Twice()
	src.On("SendConnectionRequest", mock.Anything, "x").Return(nil)
	r := newTestReconciler(src)
	ctx := context.Background()

	require.NoError(t, r.LoadTab(ctx, TabDiscover))
	require.NoError(t, r.LoadTab(ctx, TabSuggestions))

	outcome, err := r.SendRequest(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)
	assert.Equal(t, []string{"y"}, userIDs(view(t, r, TabSuggestions)))
	assert.Equal(t, []string{"y"}, userIDs(view(t, r, TabDiscover)))
	assert.True(t, r.IsSent("x"))
	assert.Contains(t, r.Snapshot().Sent, "x")

	// The server now reports the pending request, and Discover lists X again.
	src.On("ListUsers", mock.Anything, mock.Anything).Return([]models.User{x, y}, nil).Once()
	src.On("ListSentRequests", mock.Anything).
		Return([]models.ConnectionRequest{{ID: "s1", Recipient: x, Status: models.RequestStatusPending}}, nil).Once()
	require.NoError(t, r.LoadTab(ctx, TabDiscover))

	views := view(t, r, TabDiscover)
	require.Len(t, views, 2)
	assert.Equal(t, "x", views[0].User.ID)
	assert.Equal(t, models.RelationPending, views[0].Status.Status)
	assert.Equal(t, DirectionOutgoing, views[0].Status.Direction)
	src.AssertExpectations(t)
}

func TestSendRequest_DuplicateIsReportedAsSent(t *testing.T) {
	src := new(mocks.MockSocialSource)
	src.On("ListSuggestions", mock.Anything, mock.Anything).Return([]models.User{user("x", "Xavier", "")}, nil)
	src.On("ListSentRequests", mock.Anything).Return(nil, nil)
	src.On("SendConnectionRequest", mock.Anything, "x").
		Return(&apiclient.APIError{StatusCode: http.StatusBadRequest, Message: "Connection request already exists"})
	r := newTestReconciler(src)
	ctx := context.Background()
	require.NoError(t, r.LoadTab(ctx, TabSuggestions))

	outcome, err := r.SendRequest(ctx, "x")

	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySent, outcome)
	assert.True(t, r.IsSent("x"))
	assert.Equal(t, models.RelationPending, r.StatusFor("x").Status)
	assert.Empty(t, r.Banner())
	assert.NotEmpty(t, r.Notice())
	assert.Empty(t, view(t, r, TabSuggestions))
}

func TestSendRequest_FailureLeavesStateUnchanged(t *testing.T) {
	src := new(mocks.MockSocialSource)
	src.On("ListSuggestions", mock.Anything, mock.Anything).Return([]models.User{user("x", "Xavier", "")}, nil)
	src.On("ListSentRequests", mock.Anything).Return(nil, nil)
	src.On("SendConnectionRequest", mock.Anything, "x").
		Return(&apiclient.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"})
	r := newTestReconciler(src)
	ctx := context.Background()
	require.NoError(t, r.LoadTab(ctx, TabSuggestions))

	outcome, err := r.SendRequest(ctx, "x")

	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, "boom", err.Error())
	assert.False(t, r.IsSent("x"))
	assert.Equal(t, []string{"x"}, userIDs(view(t, r, TabSuggestions)))
}

func TestSendRequest_MissingID(t *testing.T) {
	r := newTestReconciler(new(mocks.MockSocialSource))
	_, err := r.SendRequest(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestAcceptRequest_RemovesRequestAndReloadsActiveConnections(t *testing.T) {
	src := new(mocks.MockSocialSource)
	a := user("a", "Ada", "")
	src.On("ListReceivedRequests", mock.Anything).
		Return([]models.ConnectionRequest{{ID: "r1", Requester: a}, {ID: "r2", Requester: user("b", "Bob", "")}}, nil)
	src.On("ListConnections", mock.Anything).Return([]models.Connection{}, nil).Once()
	src.On("ListConnections", mock.Anything).Return([]models.Connection{{ID: "c9", User: a}}, nil).Once()
	src.On("ListSentRequests", mock.Anything).Return(nil, nil)
	src.On("AcceptRequest", mock.Anything, "r1").Return(nil)
	r := newTestReconciler(src)
	ctx := context.Background()

	require.NoError(t, r.LoadTab(ctx, TabRequests))
	require.NoError(t, r.LoadTab(ctx, TabConnections))

	require.NoError(t, r.AcceptRequest(ctx, "r1"))

	assert.Equal(t, []string{"r2"}, relationIDs(view(t, r, TabRequests)))
	assert.Equal(t, []string{"c9"}, relationIDs(view(t, r, TabConnections)))
	assert.Equal(t, models.RelationAccepted, r.StatusFor("a").Status)
	src.AssertNumberOfCalls(t, "ListConnections", 2)
}

func TestAcceptRequest_NoReloadWhenConnectionsInactive(t *testing.T) {
	src := new(mocks.MockSocialSource)
	src.On("ListReceivedRequests", mock.Anything).
		Return([]models.ConnectionRequest{{ID: "r1", Requester: user("a", "Ada", "")}}, nil)
	src.On("ListSentRequests", mock.Anything).Return(nil, nil)
	src.On("AcceptRequest", mock.Anything, "r1").Return(nil)
	r := newTestReconciler(src)
	ctx := context.Background()
	require.NoError(t, r.LoadTab(ctx, TabRequests))

	require.NoError(t, r.AcceptRequest(ctx, "r1"))

	assert.Empty(t, view(t, r, TabRequests))
	assert.Equal(t, models.RelationAccepted, r.StatusFor("a").Status)
	src.AssertNotCalled(t, "ListConnections", mock.Anything)
}

func TestAcceptRequest_FailureKeepsRequest(t *testing.T) {
	src := new(mocks.MockSocialSource)
	src.On("ListReceivedRequests", mock.Anything).
		Return([]models.ConnectionRequest{{ID: "r1", Requester: user("a", "Ada", "")}}, nil)
	src.On("ListSentRequests", mock.Anything).Return(nil, nil)
	src.On("AcceptRequest", mock.Anything, "r1").
		Return(&apiclient.APIError{StatusCode: http.StatusNotFound, Message: "Request not found"})
	r := newTestReconciler(src)
	ctx := context.Background()
	require.NoError(t, r.LoadTab(ctx, TabRequests))

	err := r.AcceptRequest(ctx, "r1")

	require.EqualError(t, err, "Request not found")
	assert.Equal(t, []string{"r1"}, relationIDs(view(t, r, TabRequests)))
	status := r.StatusFor("a")
	assert.Equal(t, DirectionIncoming, status.Direction)
	assert.Equal(t, "r1", status.RequestID)
}

func TestDeclineRequest_LeavesConnectionsUnchanged(t *testing.T) {
	src := new(mocks.MockSocialSource)
	a := user("a", "Ada", "")
	src.On("ListConnections", mock.Anything).
		Return([]models.Connection{{ID: "c1", User: user("u1", "Grace", "")}}, nil)
	src.On("ListReceivedRequests", mock.Anything).
		Return([]models.ConnectionRequest{{ID: "r1", Requester: a}}, nil).Once()
	src.On("ListSentRequests", mock.Anything).Return(nil, nil)
	src.On("DeclineRequest", mock.Anything, "r1").Return(nil)
	r := newTestReconciler(src)
	ctx := context.Background()
	require.NoError(t, r.LoadTab(ctx, TabConnections))
	require.NoError(t, r.LoadTab(ctx, TabRequests))
	before := view(t, r, TabConnections)

	require.NoError(t, r.DeclineRequest(ctx, "r1"))

	assert.Empty(t, view(t, r, TabRequests))
	assert.Equal(t, before, view(t, r, TabConnections))
	assert.Equal(t, models.RelationDeclined, r.StatusFor("a").Status)

	// A fresh Requests load is authoritative again.
	src.On("ListReceivedRequests", mock.Anything).Return([]models.ConnectionRequest{}, nil).Once()
	require.NoError(t, r.LoadTab(ctx, TabRequests))
	assert.Equal(t, models.RelationNone, r.StatusFor("a").Status)
	src.AssertNotCalled(t, "AcceptRequest", mock.Anything, mock.Anything)
}

func TestRemoveConnection(t *testing.T) {
	src := new(mocks.MockSocialSource)
	src.On("ListConnections", mock.Anything).Return([]models.Connection{
		{ID: "c1", User: user("u1", "Ada", "")},
		{ID: "c2", User: user("u2", "Grace", "")},
	}, nil)
	src.On("ListSentRequests", mock.Anything).Return(nil, nil)
	src.On("RemoveConnection", mock.Anything, "c1").Return(nil)
	src.On("RemoveConnection", mock.Anything, "c2").Return(errors.New("network unreachable"))
	r := newTestReconciler(src)
	ctx := context.Background()
	require.NoError(t, r.LoadTab(ctx, TabConnections))

	require.NoError(t, r.RemoveConnection(ctx, "c1"))
	require.Error(t, r.RemoveConnection(ctx, "c2"))

	assert.Equal(t, []string{"c2"}, relationIDs(view(t, r, TabConnections)))
	assert.Equal(t, models.RelationNone, r.StatusFor("u1").Status)
	assert.Equal(t, models.RelationAccepted, r.StatusFor("u2").Status)
}

func TestLoadTab_DiscardsStaleResponse(t *testing.T) {
	src := new(mocks.MockSocialSource)
	started := make(chan struct{})
	release := make(chan struct{})
	src.On("ListConnections", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]models.Connection{{ID: "old", User: user("u1", "Ada", "")}}, nil).Once()
	src.On("ListConnections", mock.Anything).
		Return([]models.Connection{{ID: "new", User: user("u2", "Grace", "")}}, nil).Once()
	src.On("ListSentRequests", mock.Anything).Return(nil, nil)
	r := newTestReconciler(src)
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() { errCh <- r.LoadTab(ctx, TabConnections) }()
	<-started

	require.NoError(t, r.LoadTab(ctx, TabConnections))
	close(release)
	require.NoError(t, <-errCh)

	assert.Equal(t, []string{"new"}, relationIDs(view(t, r, TabConnections)))
}

func TestLoadTab_InFlightLoadCannotResurrectSentUser(t *testing.T) {
	src := new(mocks.MockSocialSource)
	x := user("x", "Xavier", "")
	started := make(chan struct{})
	release := make(chan struct{})
	src.On("ListSuggestions", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]models.User{x, user("y", "Yara", "")}, nil).Once()
	src.On("ListSentRequests", mock.Anything).Return(nil, nil)
	src.On("SendConnectionRequest", mock.Anything, "x").Return(nil)
	r := newTestReconciler(src)
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() { errCh <- r.LoadTab(ctx, TabSuggestions) }()
	<-started

	_, err := r.SendRequest(ctx, "x")
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-errCh)

	assert.Equal(t, []string{"y"}, userIDs(view(t, r, TabSuggestions)))
	assert.True(t, r.IsSent("x"))
}

func TestLoadNextPage_AppendsUntilShortPage(t *testing.T) {
	src := new(mocks.MockSocialSource)
	src.On("ListSuggestions", mock.Anything, models.Page{Number: 1, Limit: 2}).
		Return([]models.User{user("a", "A", ""), user("b", "B", "")}, nil)
	src.On("ListSuggestions", mock.Anything, models.Page{Number: 2, Limit: 2}).
		Return([]models.User{user("b", "B", ""), user("c", "C", "")}, nil)
	src.On("ListSuggestions", mock.Anything, models.Page{Number: 3, Limit: 2}).
		Return([]models.User{user("d", "D", "")}, nil)
	src.On("ListSentRequests", mock.Anything).Return(nil, nil)
	r := NewReconciler(src, Options{SuggestionsLimit: 2})
	ctx := context.Background()

	require.NoError(t, r.LoadTab(ctx, TabSuggestions))
	assert.True(t, r.HasMore(TabSuggestions))

	added, err := r.LoadNextPage(ctx, TabSuggestions)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.True(t, r.HasMore(TabSuggestions))

	added, err = r.LoadNextPage(ctx, TabSuggestions)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.False(t, r.HasMore(TabSuggestions))

	added, err = r.LoadNextPage(ctx, TabSuggestions)
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, []string{"a", "b", "c", "d"}, userIDs(view(t, r, TabSuggestions)))
	src.AssertNumberOfCalls(t, "ListSuggestions", 3)
}

func TestLoadNextPage_RejectsUnpagedTab(t *testing.T) {
	r := newTestReconciler(new(mocks.MockSocialSource))
	_, err := r.LoadNextPage(context.Background(), TabRequests)
	assert.ErrorIs(t, err, ErrNotPaged)
	assert.False(t, r.HasMore(TabConnections))
}

func TestClose_CancelsInFlightCalls(t *testing.T) {
	src := new(mocks.MockSocialSource)
	started := make(chan struct{})
	src.On("ListConnections", mock.Anything).
		Run(func(args mock.Arguments) {
			close(started)
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.Canceled).Once()
	src.On("ListSentRequests", mock.Anything).Return(nil, nil)
	r := newTestReconciler(src)

	errCh := make(chan error, 1)
	go func() { errCh <- r.LoadTab(context.Background(), TabConnections) }()
	<-started
	r.Close()

	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.Empty(t, r.Banner())
	assert.ErrorIs(t, r.LoadTab(context.Background(), TabConnections), ErrClosed)
}

func TestSnapshot(t *testing.T) {
	src := new(mocks.MockSocialSource)
	src.On("ListReceivedRequests", mock.Anything).
		Return([]models.ConnectionRequest{{ID: "r1", Requester: user("a", "Ada", "")}}, nil)
	src.On("ListSentRequests", mock.Anything).Return([]models.ConnectionRequest{
		{ID: "s2", Recipient: user("z", "Zed", "")},
		{ID: "s1", Recipient: user("b", "Bob", "")},
	}, nil)
	r := newTestReconciler(src)
	require.NoError(t, r.LoadTab(context.Background(), TabRequests))

	snap := r.Snapshot()

	assert.Equal(t, TabRequests, snap.Active)
	assert.Equal(t, []string{"b", "z"}, snap.Sent)
	require.Len(t, snap.Tabs, 4)
	assert.True(t, snap.Tabs["requests"].Loaded)
	assert.False(t, snap.Tabs["connections"].Loaded)
	require.Len(t, snap.Tabs["requests"].Items, 1)
	assert.Equal(t, DirectionIncoming, snap.Tabs["requests"].Items[0].Status.Direction)
}

func TestIsDuplicateRequest(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"conflict", &apiclient.APIError{StatusCode: http.StatusConflict, Message: "conflict"}, true},
		{"already exists", &apiclient.APIError{StatusCode: http.StatusBadRequest, Message: "Connection request already exists"}, true},
		{"already connected", &apiclient.APIError{StatusCode: http.StatusBadRequest, Message: "You are already connected"}, true},
		{"wrapped", fmt.Errorf("send: %w", &apiclient.APIError{StatusCode: http.StatusBadRequest, Message: "Duplicate request"}), true},
		{"other client error", &apiclient.APIError{StatusCode: http.StatusBadRequest, Message: "Cannot connect to yourself"}, false},
		{"transport", errors.New("already exists"), false},
		{"session expired", fmt.Errorf("%w: %w", apiclient.ErrSessionExpired, &apiclient.APIError{StatusCode: http.StatusUnauthorized, Message: "already sent"}), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDuplicateRequest(tc.err))
		})
	}
}
