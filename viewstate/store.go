package viewstate

import (
	"context"
	"time"

	"github.com/mmdatafocus/sellerdash_backend/insights"
	"github.com/mmdatafocus/sellerdash_backend/models"
)

const (
	moduleName            = "viewstate"
	defaultLoadTimeout    = 30 * time.Second
	defaultInsightTimeout = 60 * time.Second
)

// RecordStore is the read side shared by the Appwrite client and the SQL
// mirror.
type RecordStore interface {
	FetchOrders(ctx context.Context, spec models.FilterSpec) ([]models.OrderRecord, error)
	FetchSalesOrders(ctx context.Context) ([]models.OrderRecord, error)
	FetchPurchaseOrders(ctx context.Context) ([]models.OrderRecord, error)
	FetchProducts(ctx context.Context, userId string) ([]models.Product, error)
	FetchProfile(ctx context.Context, userId string) (*models.Profile, error)
}

// InsightService is the AI side of the dashboard backend.
type InsightService interface {
	AnalyzeReturns(ctx context.Context, items []insights.ReturnItem) (string, error)
	Summarize(ctx context.Context, products []models.Product, pincode string) (*models.DashboardSummary, error)
}

// publishLatest hands snap to a subscriber channel with a buffer of one,
// replacing a snapshot the subscriber has not read yet. Callers hold the
// controller lock, so they are the only sender.
func publishLatest[T any](ch chan T, snap T) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// subscribers is a set of latest-wins snapshot channels. It is not safe for
// concurrent use; controllers guard it with their own lock.
type subscribers[T any] struct {
	next int
	m    map[int]chan T
}

func (s *subscribers[T]) add(current T) (int, chan T) {
	if s.m == nil {
		s.m = make(map[int]chan T)
	}
	s.next++
	ch := make(chan T, 1)
	ch <- current
	s.m[s.next] = ch
	return s.next, ch
}

func (s *subscribers[T]) remove(id int) {
	if ch, ok := s.m[id]; ok {
		delete(s.m, id)
		close(ch)
	}
}

func (s *subscribers[T]) publish(snap T) {
	for _, ch := range s.m {
		publishLatest(ch, snap)
	}
}

func (s *subscribers[T]) closeAll() {
	for id := range s.m {
		s.remove(id)
	}
}

func (s *subscribers[T]) len() int { return len(s.m) }
