package viewstate

import (
	"context"
	"sync"

	"github.com/mmdatafocus/sellerdash_backend/models"
)

// Registry holds one returns controller and one dashboard controller per
// signed-in seller, created on first use.
type Registry struct {
	store     RecordStore
	insights  InsightService
	returns   ReturnsOptions
	dashboard DashboardOptions

	mu         sync.Mutex
	returnsBy  map[string]*ReturnsController
	dashboards map[string]*DashboardController
}

func NewRegistry(store RecordStore, insightService InsightService, returns ReturnsOptions, dashboard DashboardOptions) *Registry {
	return &Registry{
		store:      store,
		insights:   insightService,
		returns:    returns,
		dashboard:  dashboard,
		returnsBy:  make(map[string]*ReturnsController),
		dashboards: make(map[string]*DashboardController),
	}
}

// Returns gets the seller's returns controller. A new controller is primed
// from the cache and issues its first load.
func (r *Registry) Returns(ctx context.Context, userId string) *ReturnsController {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.returnsBy[userId]; ok {
		return c
	}
	c := NewReturnsController(userId, r.store, r.insights, r.returns)
	c.Prime(ctx)
	c.Load(ctx)
	r.returnsBy[userId] = c
	return c
}

// LookupReturns returns the seller's controller without creating one.
func (r *Registry) LookupReturns(userId string) (*ReturnsController, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.returnsBy[userId]
	return c, ok
}

// Dashboard gets the seller's dashboard controller, refreshing a new one.
func (r *Registry) Dashboard(ctx context.Context, user models.User) *DashboardController {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.dashboards[user.Id]; ok {
		return c
	}
	c := NewDashboardController(user, r.store, r.insights, r.dashboard)
	c.Refresh(ctx)
	r.dashboards[user.Id] = c
	return c
}

// OrdersChanged reloads whatever the seller has open after an order change.
// It reports whether any controller was reloaded.
func (r *Registry) OrdersChanged(ctx context.Context, userId string) bool {
	r.mu.Lock()
	rc, hasReturns := r.returnsBy[userId]
	dc, hasDashboard := r.dashboards[userId]
	r.mu.Unlock()

	if hasReturns {
		r.returns.Cache.Invalidate(ctx, userId)
		rc.Load(ctx)
	}
	if hasDashboard {
		dc.Refresh(ctx)
	}
	return hasReturns || hasDashboard
}

// Close waits for background work of every controller and ends their
// subscriptions.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.returnsBy {
		c.Close()
		delete(r.returnsBy, id)
	}
	for id, c := range r.dashboards {
		c.Close()
		delete(r.dashboards, id)
	}
}
