package workspace

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"portal-service/internal/apiclient"
	"portal-service/internal/network"
	"portal-service/internal/observability"
	"portal-service/internal/services"
	"portal-service/internal/session"
)

// Workspace is everything one signed-in viewer works with.
type Workspace struct {
	Session *session.Session
	Client  *apiclient.Client
	Auth    *services.AuthService
	Social  *services.SocialService
	Jobs    *services.JobService
	Network *network.Reconciler
}

func (w *Workspace) close() {
	w.Network.Close()
}

type Options struct {
	APIBaseURL       string
	HTTPClient       *http.Client
	Store            session.TokenStore
	SuggestionsLimit int
	UsersLimit       int
}

// Registry holds one workspace per bearer token. A viewer signed in on two
// devices gets two independent workspaces.
type Registry struct {
	opts Options

	mu         sync.Mutex
	workspaces map[string]*entry
}

type entry struct {
	ws       *Workspace
	lastUsed time.Time
}

func NewRegistry(opts Options) *Registry {
	if opts.HTTPClient == nil {
		opts.HTTPClient = apiclient.NewHTTPClient(10 * time.Second)
	}
	return &Registry{opts: opts, workspaces: make(map[string]*entry)}
}

// Get returns the workspace for token, building one when none exists or the
// previous one expired.
func (r *Registry) Get(viewerID, token string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if e, ok := r.workspaces[token]; ok {
		if !e.ws.Session.Expired() && e.ws.Session.ViewerID() == viewerID {
			e.lastUsed = now
			return e.ws
		}
		e.ws.close()
		delete(r.workspaces, token)
	}

	ws := r.build(session.New(viewerID, token, r.opts.Store))
	r.workspaces[token] = &entry{ws: ws, lastUsed: now}
	observability.SetActiveWorkspaces(len(r.workspaces))
	return ws
}

// Anonymous returns an auth service for calls made before the viewer has a token.
func (r *Registry) Anonymous() *services.AuthService {
	return services.NewAuthService(apiclient.New(r.opts.APIBaseURL, r.opts.HTTPClient, session.Anonymous()))
}

func (r *Registry) build(sess *session.Session) *Workspace {
	client := apiclient.New(r.opts.APIBaseURL, r.opts.HTTPClient, sess)
	social := services.NewSocialService(client)
	ws := &Workspace{
		Session: sess,
		Client:  client,
		Auth:    services.NewAuthService(client),
		Social:  social,
		Jobs:    services.NewJobService(client),
		Network: network.NewReconciler(social, network.Options{
			ViewerID:         sess.ViewerID(),
			SuggestionsLimit: r.opts.SuggestionsLimit,
			UsersLimit:       r.opts.UsersLimit,
		}),
	}
	token := sess.Token()
	sess.OnExpired(func() { r.remove(token, ws) })
	return ws
}

func (r *Registry) remove(token string, ws *Workspace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.workspaces[token]; ok && e.ws == ws {
		delete(r.workspaces, token)
		observability.SetActiveWorkspaces(len(r.workspaces))
	}
	ws.close()
}

// Drop forgets the workspace of token and cancels its in-flight calls.
func (r *Registry) Drop(token string) {
	r.mu.Lock()
	e, ok := r.workspaces[token]
	r.mu.Unlock()
	if ok {
		r.remove(token, e.ws)
	}
}

// Prune closes workspaces unused for longer than maxIdle and returns how many it closed.
func (r *Registry) Prune(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	pruned := 0
	for token, e := range r.workspaces {
		if e.lastUsed.Before(cutoff) {
			e.ws.close()
			delete(r.workspaces, token)
			pruned++
		}
	}
	if pruned > 0 {
		observability.SetActiveWorkspaces(len(r.workspaces))
	}
	return pruned
}

// PruneEvery runs Prune on a ticker until ctx is done.
func (r *Registry) PruneEvery(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Prune(maxIdle); n > 0 {
				log.Printf("pruned %d idle workspaces", n)
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, e := range r.workspaces {
		e.ws.close()
		delete(r.workspaces, token)
	}
	observability.SetActiveWorkspaces(0)
}
