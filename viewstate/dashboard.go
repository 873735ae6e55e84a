package viewstate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/mmdatafocus/sellerdash_backend/config"
	"github.com/mmdatafocus/sellerdash_backend/insights"
	"github.com/mmdatafocus/sellerdash_backend/models"
	"github.com/mmdatafocus/sellerdash_backend/models/reports"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// WelcomePath is where a seller without a profile is sent to onboard.
const WelcomePath = "/welcome"

// Dashboard panels, used as keys of PanelErrors.
const (
	PanelProfile        = "profile"
	PanelProducts       = "products"
	PanelSalesOrders    = "salesOrders"
	PanelPurchaseOrders = "purchaseOrders"
	PanelSummary        = "summary"
)

// DashboardSnapshot is one immutable state of the seller dashboard.
type DashboardSnapshot struct {
	Version         uint64                   `json:"version"`
	GreetingName    string                   `json:"greetingName"`
	ActiveTab       models.Tab               `json:"activeTab"`
	Loading         bool                     `json:"loading"`
	NeedsOnboarding bool                     `json:"needsOnboarding"`
	Redirect        string                   `json:"redirect,omitempty"`
	Profile         *models.Profile          `json:"profile,omitempty"`
	Products        []models.Product         `json:"products"`
	ProductDetails  []reports.ProductDetail  `json:"productDetails"`
	TopSellingItems []reports.TopSellingItem `json:"topSellingItems"`
	PurchaseOrders  []reports.OrderRow       `json:"purchaseOrders"`
	SalesOrders     []reports.OrderRow       `json:"salesOrders"`
	Kpis            []reports.KpiCard        `json:"kpis"`
	Summary         *models.DashboardSummary `json:"summary"`
	SummaryLoading  bool                     `json:"summaryLoading"`
	SummaryMessage  string                   `json:"summaryMessage,omitempty"`
	PanelErrors     map[string]string        `json:"panelErrors,omitempty"`
	UpdatedAt       time.Time                `json:"updatedAt"`
}

type DashboardOptions struct {
	LoadTimeout time.Duration
	// InsightTimeout bounds summary generation, separately from the panel fetch.
	InsightTimeout time.Duration
	Summaries      *reports.SummaryCache
}

// QuickActionResult tells the client where a quick action leads: a tab of
// the dashboard or another page.
type QuickActionResult struct {
	Tab      models.Tab `json:"tab,omitempty"`
	Navigate string     `json:"navigate,omitempty"`
}

var ErrUnknownQuickAction = errors.New("unknown quick action")

// DashboardController owns one seller's dashboard. Refresh fetches every
// panel in parallel; a failing panel renders empty instead of failing the
// dashboard.
type DashboardController struct {
	user     models.User
	store    RecordStore
	insights InsightService
	opts     DashboardOptions
	logger   *logrus.Logger

	mu      sync.Mutex
	issued  uint64
	version uint64
	state   dashboardState
	current DashboardSnapshot
	subs    subscribers[DashboardSnapshot]

	wg sync.WaitGroup
}

type dashboardState struct {
	tab             models.Tab
	loading         bool
	needsOnboarding bool
	profile         *models.Profile
	products        []models.Product
	sales           []models.OrderRecord
	purchases       []models.OrderRecord
	summary         *models.DashboardSummary
	summaryLoading  bool
	summaryFailure  string
	panelErrors     map[string]string
}

func NewDashboardController(user models.User, store RecordStore, insightService InsightService, opts DashboardOptions) *DashboardController {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = defaultLoadTimeout
	}
	if opts.InsightTimeout <= 0 {
		opts.InsightTimeout = defaultInsightTimeout
	}
	c := &DashboardController{
		user:     user,
		store:    store,
		insights: insightService,
		opts:     opts,
		logger:   config.GetLogger(),
		state:    dashboardState{tab: models.TabDashboard, summaryLoading: true},
	}
	c.mu.Lock()
	c.publishLocked()
	c.mu.Unlock()
	return c
}

type dashboardFetch struct {
	profile     *models.Profile
	products    []models.Product
	sales       []models.OrderRecord
	purchases   []models.OrderRecord
	onboarding  bool
	panelErrors map[string]string
}

// Refresh reloads every panel and then the AI summary. Only the most
// recently issued refresh is applied.
func (c *DashboardController) Refresh(ctx context.Context) uint64 {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	c.state.loading = true
	c.publishLocked()
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.LoadTimeout)
		res := c.fetchPanels(fetchCtx)
		cancel()
		if !c.applyPanels(seq, res) {
			return
		}

		summaryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.InsightTimeout)
		defer cancel()
		c.refreshSummary(summaryCtx, seq, res)
	}()
	return seq
}

func (c *DashboardController) fetchPanels(ctx context.Context) dashboardFetch {
	var (
		res dashboardFetch
		mu  sync.Mutex
	)
	res.panelErrors = map[string]string{}
	fail := func(panel string, err error) {
		mu.Lock()
		res.panelErrors[panel] = err.Error()
		mu.Unlock()
		config.LogError(c.logger, moduleName, "DashboardController.Refresh", "fetch "+panel, c.user.Id, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		profile, err := c.store.FetchProfile(gctx, c.user.Id)
		switch {
		case models.IsNotFound(err):
			mu.Lock()
			res.onboarding = true
			mu.Unlock()
		case err != nil:
			fail(PanelProfile, err)
		default:
			mu.Lock()
			res.profile = profile
			mu.Unlock()
		}
		return nil
	})
	g.Go(func() error {
		products, err := c.store.FetchProducts(gctx, c.user.Id)
		if err != nil {
			fail(PanelProducts, err)
			return nil
		}
		mu.Lock()
		res.products = products
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		sales, err := c.store.FetchSalesOrders(gctx)
		if err != nil {
			fail(PanelSalesOrders, err)
			return nil
		}
		mu.Lock()
		res.sales = sales
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		purchases, err := c.store.FetchPurchaseOrders(gctx)
		if err != nil {
			fail(PanelPurchaseOrders, err)
			return nil
		}
		mu.Lock()
		res.purchases = purchases
		mu.Unlock()
		return nil
	})
	_ = g.Wait()
	return res
}

func (c *DashboardController) applyPanels(seq uint64, res dashboardFetch) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.issued {
		return false
	}
	c.state.loading = false
	c.state.needsOnboarding = res.onboarding
	c.state.profile = res.profile
	c.state.products = res.products
	c.state.sales = res.sales
	c.state.purchases = res.purchases
	c.state.panelErrors = res.panelErrors
	c.state.summaryLoading = summaryPossible(res.products, res.profile)
	c.state.summaryFailure = ""
	if !c.state.summaryLoading {
		c.state.summary = nil
	}
	c.publishLocked()
	return true
}

func summaryPossible(products []models.Product, profile *models.Profile) bool {
	return len(products) > 0 && profile != nil && strings.TrimSpace(profile.PinCode) != ""
}

func (c *DashboardController) refreshSummary(ctx context.Context, seq uint64, res dashboardFetch) {
	if !summaryPossible(res.products, res.profile) {
		return
	}
	pincode := res.profile.PinCode
	key := reports.SummaryCacheKey(c.user.Id, pincode, res.products)

	summary, cached := c.opts.Summaries.Get(ctx, key)
	var err error
	if !cached {
		release := c.opts.Summaries.Lock(ctx, c.user.Id)
		// another replica may have generated it while we waited
		if summary, cached = c.opts.Summaries.Get(ctx, key); !cached {
			summary, err = c.insights.Summarize(ctx, res.products, pincode)
			if err == nil {
				c.opts.Summaries.Set(ctx, key, summary)
			}
		}
		release()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.issued {
		return
	}
	c.state.summaryLoading = false
	if err != nil {
		c.state.summary = nil
		c.state.summaryFailure = summaryFailureText(err)
		c.state.panelErrors = withPanelError(c.state.panelErrors, PanelSummary, err.Error())
		config.LogError(c.logger, moduleName, "DashboardController.Refresh", "summarize", c.user.Id, err)
	} else {
		c.state.summary = summary
	}
	c.publishLocked()
}

// summaryFailureText is shown in place of the summary: the service's own
// detail when it sent one, else the generic failure message.
func summaryFailureText(err error) string {
	var se *models.AnalysisServiceError
	if errors.As(err, &se) && se.Detail != "" {
		return se.Detail
	}
	return insights.SummaryFailedMessage
}

func withPanelError(errs map[string]string, panel, msg string) map[string]string {
	out := make(map[string]string, len(errs)+1)
	for k, v := range errs {
		out[k] = v
	}
	out[panel] = msg
	return out
}

func (c *DashboardController) SetActiveTab(tab models.Tab) DashboardSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.tab = tab
	c.publishLocked()
	return c.current
}

// ApplyView honours the dashboard's ?view= query parameter.
func (c *DashboardController) ApplyView(view string) DashboardSnapshot {
	if models.Tab(view) == models.TabAddProduct {
		return c.SetActiveTab(models.TabAddProduct)
	}
	return c.Snapshot()
}

// QuickAction resolves a dashboard quick action by its label.
func (c *DashboardController) QuickAction(label string) (QuickActionResult, error) {
	switch label {
	case "Add Product":
		c.SetActiveTab(models.TabAddProduct)
		return QuickActionResult{Tab: models.TabAddProduct}, nil
	case "View Local Trends":
		c.SetActiveTab(models.TabTrends)
		return QuickActionResult{Tab: models.TabTrends}, nil
	case "Ask AI":
		c.SetActiveTab(models.TabAIChat)
		return QuickActionResult{Tab: models.TabAIChat}, nil
	case "View your products":
		return QuickActionResult{Navigate: "/products"}, nil
	default:
		return QuickActionResult{}, ErrUnknownQuickAction
	}
}

func (c *DashboardController) Snapshot() DashboardSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *DashboardController) Subscribe() (<-chan DashboardSnapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ch := c.subs.add(c.current)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.subs.remove(id)
		})
	}
}

func (c *DashboardController) Wait() {
	c.wg.Wait()
}

func (c *DashboardController) Close() {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs.closeAll()
}

func (c *DashboardController) publishLocked() {
	c.version++
	s := c.state
	snap := DashboardSnapshot{
		Version:         c.version,
		GreetingName:    models.DisplayName(&c.user),
		ActiveTab:       s.tab,
		Loading:         s.loading,
		NeedsOnboarding: s.needsOnboarding,
		Profile:         s.profile,
		Products:        nonNil(s.products),
		ProductDetails:  reports.GetProductDetails(s.products),
		TopSellingItems: reports.GetTopSellingItems(s.sales),
		PurchaseOrders:  reports.GetOrderRows(s.purchases),
		SalesOrders:     reports.GetOrderRows(s.sales),
		Kpis:            reports.GetKpiCards(s.products, s.sales),
		Summary:         s.summary,
		SummaryLoading:  s.summaryLoading,
		PanelErrors:     s.panelErrors,
		UpdatedAt:       time.Now().UTC(),
	}
	if s.needsOnboarding {
		snap.Redirect = WelcomePath
	}
	switch {
	case s.summaryLoading || s.summary != nil:
	case s.summaryFailure != "":
		snap.SummaryMessage = s.summaryFailure
	default:
		snap.SummaryMessage = insights.SummaryUnavailableText
	}
	c.current = snap
	c.subs.publish(snap)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
