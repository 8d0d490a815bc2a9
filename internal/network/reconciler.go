package network

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"portal-service/internal/models"
)

var (
	ErrClosed    = errors.New("reconciler closed")
	ErrMissingID = errors.New("id is required")
	ErrNotPaged  = errors.New("tab is not paged")
)

const alreadySentNotice = "Connection request already sent"

// Source is the subset of the social API the reconciler reads and mutates.
type Source interface {
	ListConnections(ctx context.Context) ([]models.Connection, error)
	ListReceivedRequests(ctx context.Context) ([]models.ConnectionRequest, error)
	ListSentRequests(ctx context.Context) ([]models.ConnectionRequest, error)
	ListSuggestions(ctx context.Context, page models.Page) ([]models.User, error)
	ListUsers(ctx context.Context, page models.Page) ([]models.User, error)
	SendConnectionRequest(ctx context.Context, userID string) error
	AcceptRequest(ctx context.Context, requestID string) error
	DeclineRequest(ctx context.Context, requestID string) error
	RemoveConnection(ctx context.Context, connectionID string) error
}

type Options struct {
	ViewerID         string
	SuggestionsLimit int
	UsersLimit       int
}

type SendOutcome int

const (
	OutcomeFailed SendOutcome = iota
	OutcomeSent
	OutcomeAlreadySent
)

func (o SendOutcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeAlreadySent:
		return "already_sent"
	default:
		return "failed"
	}
}

type Direction string

const (
	DirectionNone     Direction = ""
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// Status is the relationship between the viewer and one user as the client currently sees it.
type Status struct {
	Status    models.RelationStatus `json:"status"`
	Direction Direction             `json:"direction,omitempty"`
	RequestID string                `json:"request_id,omitempty"`
}

// View is one rendered row: a relation plus its derived status.
type View struct {
	Relation
	Status Status `json:"status"`
}

type TabState struct {
	Items   []View `json:"items"`
	Loaded  bool   `json:"loaded"`
	HasMore bool   `json:"has_more"`
}

type Snapshot struct {
	Active Tab                 `json:"active"`
	Tabs   map[string]TabState `json:"tabs"`
	Sent   []string            `json:"sent"`
	Banner string              `json:"banner,omitempty"`
	Notice string              `json:"notice,omitempty"`
}

// Reconciler keeps the viewer's connection lists consistent with local actions
// while responses from the API arrive in any order.
type Reconciler struct {
	src  Source
	opts Options

	life   context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	active    Tab
	lists     [tabCount][]Relation
	loaded    [tabCount]bool
	pages     [tabCount]int
	exhausted [tabCount]bool
	gen       [tabCount]uint64

	sent     map[string]struct{}
	accepted map[string]struct{}
	declined map[string]struct{}

	sentGen     uint64
	sentApplied uint64

	// seq orders local mutations; touched records the last mutation per key.
	// Entries only matter while a load is in flight.
	seq      uint64
	touched  map[string]uint64
	inflight int

	banner string
	notice string
}

func NewReconciler(src Source, opts Options) *Reconciler {
	if opts.SuggestionsLimit < 1 {
		opts.SuggestionsLimit = 10
	}
	if opts.UsersLimit < 1 {
		opts.UsersLimit = 20
	}
	life, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		src:      src,
		opts:     opts,
		life:     life,
		cancel:   cancel,
		sent:     make(map[string]struct{}),
		accepted: make(map[string]struct{}),
		declined: make(map[string]struct{}),
		touched:  make(map[string]uint64),
	}
}

// Close cancels every call still in flight. Later operations fail with ErrClosed.
func (r *Reconciler) Close() {
	r.cancel()
}

func (r *Reconciler) bind(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if r.life.Err() != nil {
		return nil, nil, ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(r.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}, nil
}

func (r *Reconciler) limit(tab Tab) int {
	if tab == TabDiscover {
		return r.opts.UsersLimit
	}
	return r.opts.SuggestionsLimit
}

// fetch returns the normalized page and the number of records the API sent,
// which may exceed len(list) once the viewer is filtered out.
func (r *Reconciler) fetch(ctx context.Context, tab Tab, page int) ([]Relation, int, error) {
	switch tab {
	case TabConnections:
		conns, err := r.src.ListConnections(ctx)
		if err != nil {
			return nil, 0, err
		}
		return FromConnections(conns), len(conns), nil
	case TabRequests:
		reqs, err := r.src.ListReceivedRequests(ctx)
		if err != nil {
			return nil, 0, err
		}
		return FromRequests(reqs), len(reqs), nil
	case TabSuggestions:
		users, err := r.src.ListSuggestions(ctx, models.Page{Number: page, Limit: r.limit(tab)})
		if err != nil {
			return nil, 0, err
		}
		return FromUsers(users, RoleSuggestion, r.opts.ViewerID), len(users), nil
	case TabDiscover:
		users, err := r.src.ListUsers(ctx, models.Page{Number: page, Limit: r.limit(tab)})
		if err != nil {
			return nil, 0, err
		}
		return FromUsers(users, RoleMember, r.opts.ViewerID), len(users), nil
	}
	return nil, 0, ErrUnknownTab
}

func (r *Reconciler) fetchSent(ctx context.Context) ([]string, error) {
	reqs, err := r.src.ListSentRequests(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(reqs))
	for _, req := range reqs {
		if req.Status != "" && req.Status != models.RequestStatusPending {
			continue
		}
		if req.Recipient.ID != "" {
			ids = append(ids, req.Recipient.ID)
		}
	}
	return ids, nil
}

// LoadTab makes tab active and refreshes its list together with the sent requests.
// On failure the previous list stays and the error becomes the banner.
func (r *Reconciler) LoadTab(ctx context.Context, tab Tab) error {
	if !tab.Valid() {
		return ErrUnknownTab
	}
	ctx, done, err := r.bind(ctx)
	if err != nil {
		return err
	}
	defer done()

	r.mu.Lock()
	r.active = tab
	r.gen[tab]++
	gen := r.gen[tab]
	r.sentGen++
	sentGen := r.sentGen
	start := r.seq
	r.inflight++
	r.mu.Unlock()

	var (
		list             []Relation
		received         int
		sent             []string
		listErr, sentErr error
		g                errgroup.Group
	)
	g.Go(func() error {
		list, received, listErr = r.fetch(ctx, tab, 1)
		return listErr
	})
	g.Go(func() error {
		sent, sentErr = r.fetchSent(ctx)
		return sentErr
	})
	err = g.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.release()

	current := gen == r.gen[tab]
	if listErr == nil && current {
		r.applyList(tab, list, start)
		r.pages[tab] = 1
		r.exhausted[tab] = !tab.Paged() || received < r.limit(tab)
	}
	if sentErr == nil && sentGen > r.sentApplied {
		r.applySent(sent, start)
		r.sentApplied = sentGen
	}
	if current && !errors.Is(err, context.Canceled) {
		if err != nil {
			r.banner = err.Error()
		} else {
			r.banner = ""
		}
	}
	return err
}

// LoadNextPage appends the next page of a paged tab. It returns how many new users were added.
func (r *Reconciler) LoadNextPage(ctx context.Context, tab Tab) (int, error) {
	if !tab.Valid() {
		return 0, ErrUnknownTab
	}
	if !tab.Paged() {
		return 0, ErrNotPaged
	}
	ctx, done, err := r.bind(ctx)
	if err != nil {
		return 0, err
	}
	defer done()

	r.mu.Lock()
	if r.exhausted[tab] && r.loaded[tab] {
		r.mu.Unlock()
		return 0, nil
	}
	gen := r.gen[tab]
	page := r.pages[tab] + 1
	start := r.seq
	r.inflight++
	r.mu.Unlock()

	list, received, err := r.fetch(ctx, tab, page)

	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.release()

	if gen != r.gen[tab] {
		return 0, nil
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.banner = err.Error()
		}
		return 0, err
	}
	seen := make(map[string]struct{}, len(r.lists[tab]))
	for _, rel := range r.lists[tab] {
		seen[rel.User.ID] = struct{}{}
	}
	added := 0
	for _, rel := range list {
		if _, dup := seen[rel.User.ID]; dup || r.touchedSince("user:"+rel.User.ID, start) {
			continue
		}
		seen[rel.User.ID] = struct{}{}
		r.lists[tab] = append(r.lists[tab], rel)
		added++
	}
	if page > r.pages[tab] {
		r.pages[tab] = page
	}
	r.exhausted[tab] = received < r.limit(tab)
	r.loaded[tab] = true
	return added, nil
}

// SendRequest asks the API to connect with userID. A duplicate-request answer
// is reported as OutcomeAlreadySent and still counts as sent locally.
func (r *Reconciler) SendRequest(ctx context.Context, userID string) (SendOutcome, error) {
	if userID == "" {
		return OutcomeFailed, ErrMissingID
	}
	ctx, done, err := r.bind(ctx)
	if err != nil {
		return OutcomeFailed, err
	}
	defer done()

	outcome := OutcomeSent
	if err := r.src.SendConnectionRequest(ctx, userID); err != nil {
		if !IsDuplicateRequest(err) {
			return OutcomeFailed, err
		}
		outcome = OutcomeAlreadySent
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.touch("user:" + userID)
	r.sent[userID] = struct{}{}
	delete(r.declined, userID)
	r.removeUser(TabSuggestions, userID)
	r.removeUser(TabDiscover, userID)
	if outcome == OutcomeAlreadySent {
		r.notice = alreadySentNotice
	} else {
		r.notice = ""
	}
	return outcome, nil
}

// AcceptRequest accepts a received request and, when Connections is the active tab,
// reloads it so the new connection comes from the server.
func (r *Reconciler) AcceptRequest(ctx context.Context, requestID string) error {
	if requestID == "" {
		return ErrMissingID
	}
	bound, done, err := r.bind(ctx)
	if err != nil {
		return err
	}
	err = r.src.AcceptRequest(bound, requestID)
	done()
	if err != nil {
		return err
	}

	r.mu.Lock()
	rel, found := r.removeRelation(TabRequests, requestID)
	r.touch("request:" + requestID)
	if found {
		r.touch("user:" + rel.User.ID)
		r.accepted[rel.User.ID] = struct{}{}
		delete(r.declined, rel.User.ID)
	}
	reload := r.active == TabConnections
	r.mu.Unlock()

	if reload {
		// A failed reload is already reported through the banner.
		_ = r.LoadTab(ctx, TabConnections)
	}
	return nil
}

// DeclineRequest declines a received request. The requester shows as declined
// until the Requests tab is loaded again. Connections are not touched.
func (r *Reconciler) DeclineRequest(ctx context.Context, requestID string) error {
	if requestID == "" {
		return ErrMissingID
	}
	ctx, done, err := r.bind(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := r.src.DeclineRequest(ctx, requestID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rel, found := r.removeRelation(TabRequests, requestID)
	r.touch("request:" + requestID)
	if found {
		r.touch("user:" + rel.User.ID)
		r.declined[rel.User.ID] = struct{}{}
	}
	return nil
}

func (r *Reconciler) RemoveConnection(ctx context.Context, connectionID string) error {
	if connectionID == "" {
		return ErrMissingID
	}
	ctx, done, err := r.bind(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := r.src.RemoveConnection(ctx, connectionID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rel, found := r.removeRelation(TabConnections, connectionID)
	r.touch("connection:" + connectionID)
	if found {
		r.touch("user:" + rel.User.ID)
		delete(r.accepted, rel.User.ID)
	}
	return nil
}

// FilteredView returns the tab's list narrowed by query, each row with its derived status.
func (r *Reconciler) FilteredView(tab Tab, query string) ([]View, error) {
	if !tab.Valid() {
		return nil, ErrUnknownTab
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.views(Filter(r.lists[tab], query)), nil
}

func (r *Reconciler) StatusFor(userID string) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statusFor(userID)
}

func (r *Reconciler) statusFor(userID string) Status {
	if _, ok := r.accepted[userID]; ok {
		return Status{Status: models.RelationAccepted}
	}
	for _, rel := range r.lists[TabConnections] {
		if rel.User.ID == userID {
			return Status{Status: models.RelationAccepted}
		}
	}
	for _, rel := range r.lists[TabRequests] {
		if rel.User.ID == userID {
			return Status{Status: models.RelationPending, Direction: DirectionIncoming, RequestID: rel.RelationID}
		}
	}
	if _, ok := r.sent[userID]; ok {
		return Status{Status: models.RelationPending, Direction: DirectionOutgoing}
	}
	if _, ok := r.declined[userID]; ok {
		return Status{Status: models.RelationDeclined}
	}
	return Status{Status: models.RelationNone}
}

func (r *Reconciler) Active() Tab {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

func (r *Reconciler) Banner() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.banner
}

func (r *Reconciler) Notice() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notice
}

func (r *Reconciler) ClearNotice() {
	r.mu.Lock()
	r.notice = ""
	r.mu.Unlock()
}

func (r *Reconciler) HasMore(tab Tab) bool {
	if !tab.Valid() || !tab.Paged() {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.exhausted[tab]
}

func (r *Reconciler) IsSent(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sent[userID]
	return ok
}

func (r *Reconciler) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := Snapshot{
		Active: r.active,
		Tabs:   make(map[string]TabState, tabCount),
		Sent:   make([]string, 0, len(r.sent)),
		Banner: r.banner,
		Notice: r.notice,
	}
	for _, tab := range Tabs() {
		snap.Tabs[tab.String()] = TabState{
			Items:   r.views(r.lists[tab]),
			Loaded:  r.loaded[tab],
			HasMore: tab.Paged() && !r.exhausted[tab],
		}
	}
	for id := range r.sent {
		snap.Sent = append(snap.Sent, id)
	}
	sort.Strings(snap.Sent)
	return snap
}

// The helpers below expect r.mu to be held for writing unless noted.

func (r *Reconciler) views(list []Relation) []View {
	out := make([]View, 0, len(list))
	for _, rel := range list {
		out = append(out, View{Relation: rel, Status: r.statusFor(rel.User.ID)})
	}
	return out
}

func (r *Reconciler) touch(key string) {
	r.seq++
	r.touched[key] = r.seq
}

func (r *Reconciler) touchedSince(key string, start uint64) bool {
	return r.touched[key] > start
}

func (r *Reconciler) release() {
	r.inflight--
	if r.inflight == 0 {
		clear(r.touched)
	}
}

// applyList installs a fetched list, leaving out anything a local mutation
// removed after the fetch started.
func (r *Reconciler) applyList(tab Tab, list []Relation, start uint64) {
	kept := make([]Relation, 0, len(list))
	for _, rel := range list {
		switch tab {
		case TabConnections:
			if r.touchedSince("connection:"+rel.RelationID, start) {
				continue
			}
		case TabRequests:
			if r.touchedSince("request:"+rel.RelationID, start) {
				continue
			}
		default:
			if r.touchedSince("user:"+rel.User.ID, start) {
				continue
			}
		}
		kept = append(kept, rel)
	}
	r.lists[tab] = kept
	r.loaded[tab] = true

	switch tab {
	case TabConnections:
		r.accepted = r.keepTouched(r.accepted, start)
	case TabRequests:
		r.declined = r.keepTouched(r.declined, start)
	}
}

func (r *Reconciler) applySent(ids []string, start uint64) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	for id := range r.sent {
		if r.touchedSince("user:"+id, start) {
			next[id] = struct{}{}
		}
	}
	r.sent = next
}

func (r *Reconciler) keepTouched(set map[string]struct{}, start uint64) map[string]struct{} {
	next := make(map[string]struct{})
	for id := range set {
		if r.touchedSince("user:"+id, start) {
			next[id] = struct{}{}
		}
	}
	return next
}

func (r *Reconciler) removeUser(tab Tab, userID string) {
	list := make([]Relation, 0, len(r.lists[tab]))
	for _, rel := range r.lists[tab] {
		if rel.User.ID != userID {
			list = append(list, rel)
		}
	}
	r.lists[tab] = list
}

func (r *Reconciler) removeRelation(tab Tab, relationID string) (Relation, bool) {
	var removed Relation
	found := false
	list := make([]Relation, 0, len(r.lists[tab]))
	for _, rel := range r.lists[tab] {
		if rel.RelationID == relationID && !found {
			removed, found = rel, true
			continue
		}
		list = append(list, rel)
	}
	r.lists[tab] = list
	return removed, found
}
