package viewstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mmdatafocus/sellerdash_backend/config"
	"github.com/mmdatafocus/sellerdash_backend/insights"
	"github.com/mmdatafocus/sellerdash_backend/models"
	"github.com/mmdatafocus/sellerdash_backend/models/reports"
	"github.com/sirupsen/logrus"
)

// InsightPlaceholder is shown before any insight has been requested.
const InsightPlaceholder = "Click the button to get an AI-powered analysis of your recent returns."

var ErrInsightPending = errors.New("an insight request is already in progress")

// ReturnsSnapshot is one immutable state of the returns page.
type ReturnsSnapshot struct {
	Version        uint64              `json:"version"`
	Loading        bool                `json:"loading"`
	Error          string              `json:"error,omitempty"`
	View           reports.ReturnsView `json:"view"`
	Insight        string              `json:"insight"`
	InsightLoading bool                `json:"insightLoading"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

type ReturnsOptions struct {
	LoadTimeout time.Duration
	// InsightTimeout bounds one AI analysis request.
	InsightTimeout time.Duration
	// OrderLimit caps fetched orders; 0 fetches all.
	OrderLimit int
	Cache      *reports.ReturnsCache
}

// ReturnsController owns one seller's returns page state. Loads run in the
// background and only the most recently issued load is applied.
type ReturnsController struct {
	userId   string
	store    RecordStore
	insights InsightService
	opts     ReturnsOptions
	logger   *logrus.Logger

	mu             sync.Mutex
	records        []models.OrderRecord
	term           string
	loading        bool
	loadErr        error
	issued         uint64
	insight        string
	insightLoading bool
	version        uint64
	current        ReturnsSnapshot
	subs           subscribers[ReturnsSnapshot]

	wg sync.WaitGroup
}

func NewReturnsController(userId string, store RecordStore, insightService InsightService, opts ReturnsOptions) *ReturnsController {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = defaultLoadTimeout
	}
	if opts.InsightTimeout <= 0 {
		opts.InsightTimeout = defaultInsightTimeout
	}
	c := &ReturnsController{
		userId:   userId,
		store:    store,
		insights: insightService,
		opts:     opts,
		logger:   config.GetLogger(),
		insight:  InsightPlaceholder,
	}
	c.mu.Lock()
	c.publishLocked()
	c.mu.Unlock()
	return c
}

// Prime renders the seller's last cached records until the first load lands.
func (c *ReturnsController) Prime(ctx context.Context) bool {
	records, ok := c.opts.Cache.Get(ctx, c.userId)
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// a load already applied wins over the cache
	if c.issued > 0 && !c.loading {
		return false
	}
	c.records = records
	c.publishLocked()
	return true
}

// Load issues a fetch of the seller's sales orders and returns its sequence
// number. The fetch outlives ctx's cancellation but not the load timeout.
func (c *ReturnsController) Load(ctx context.Context) uint64 {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	c.loading = true
	c.publishLocked()
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.LoadTimeout)
		defer cancel()
		records, err := c.store.FetchOrders(fetchCtx, models.FilterSpec{
			Source:      models.OrderSourceSales,
			NewestFirst: true,
			Limit:       c.opts.OrderLimit,
		})
		c.applyLoad(fetchCtx, seq, records, err)
	}()
	return seq
}

func (c *ReturnsController) applyLoad(ctx context.Context, seq uint64, records []models.OrderRecord, err error) {
	c.mu.Lock()
	if seq != c.issued {
		c.mu.Unlock()
		c.logger.WithFields(logrus.Fields{"user_id": c.userId, "seq": seq}).Debug("discarding superseded load")
		return
	}
	c.loading = false
	if err != nil {
		c.loadErr = err
		c.publishLocked()
		c.mu.Unlock()
		config.LogError(c.logger, moduleName, "ReturnsController.Load", "fetch sales orders", c.userId, err)
		return
	}
	if records == nil {
		records = []models.OrderRecord{}
	}
	c.records = records
	c.loadErr = nil
	c.publishLocked()
	c.mu.Unlock()

	c.opts.Cache.Set(ctx, c.userId, records)
}

// SetSearchTerm re-derives the view synchronously and returns the new state.
func (c *ReturnsController) SetSearchTerm(term string) ReturnsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.term = term
	c.publishLocked()
	return c.current
}

// RequestInsight sends the returned subset for analysis. With nothing
// returned it sets the no-returns message without calling the service.
func (c *ReturnsController) RequestInsight(ctx context.Context) error {
	c.mu.Lock()
	if c.insightLoading {
		c.mu.Unlock()
		return ErrInsightPending
	}
	returned := reports.ClassifyReturns(c.records)
	if len(returned) == 0 {
		c.insight = insights.NoReturnsMessage
		c.publishLocked()
		c.mu.Unlock()
		return nil
	}
	c.insightLoading = true
	c.insight = ""
	c.publishLocked()
	c.mu.Unlock()

	items := insights.ReturnItemsFrom(returned)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.InsightTimeout)
		defer cancel()
		text, err := c.insights.AnalyzeReturns(reqCtx, items)

		c.mu.Lock()
		defer c.mu.Unlock()
		c.insightLoading = false
		if err != nil {
			c.insight = "Error: " + err.Error()
			config.LogError(c.logger, moduleName, "ReturnsController.RequestInsight", "analyze returns", c.userId, err)
		} else {
			c.insight = text
		}
		c.publishLocked()
	}()
	return nil
}

func (c *ReturnsController) Snapshot() ReturnsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Records returns the currently applied records.
func (c *ReturnsController) Records() []models.OrderRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.OrderRecord(nil), c.records...)
}

// Subscribe delivers the current snapshot and every later one. A slow
// subscriber skips intermediate snapshots but always sees the latest.
func (c *ReturnsController) Subscribe() (<-chan ReturnsSnapshot, func()) {
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

// Wait blocks until in-flight loads and insight requests have finished.
func (c *ReturnsController) Wait() {
	c.wg.Wait()
}

// Close waits for background work and ends all subscriptions.
func (c *ReturnsController) Close() {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs.closeAll()
}

func (c *ReturnsController) publishLocked() {
	c.version++
	snap := ReturnsSnapshot{
		Version:        c.version,
		Loading:        c.loading,
		View:           reports.BuildReturnsView(c.records, c.term),
		Insight:        c.insight,
		InsightLoading: c.insightLoading,
		UpdatedAt:      time.Now().UTC(),
	}
	if c.loadErr != nil {
		snap.Error = c.loadErr.Error()
	}
	c.current = snap
	c.subs.publish(snap)
}
