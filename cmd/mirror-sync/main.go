package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmdatafocus/sellerdash_backend/appwrite"
	"github.com/mmdatafocus/sellerdash_backend/config"
	"github.com/mmdatafocus/sellerdash_backend/models"
	"github.com/mmdatafocus/sellerdash_backend/sqlstore"
	"github.com/mmdatafocus/sellerdash_backend/utils"
	"github.com/sirupsen/logrus"
)

const moduleName = "mirror-sync"

// source is the document store being copied.
type source interface {
	FetchOrders(ctx context.Context, spec models.FilterSpec) ([]models.OrderRecord, error)
	FetchProducts(ctx context.Context, userId string) ([]models.Product, error)
	FetchProfile(ctx context.Context, userId string) (*models.Profile, error)
}

// sink is the SQL mirror being written.
type sink interface {
	UpsertOrders(ctx context.Context, source models.OrderSource, records []models.OrderRecord) error
	UpsertProducts(ctx context.Context, products []models.Product) error
	UpsertProfile(ctx context.Context, profile *models.Profile) error
}

type syncStats struct {
	Orders   map[models.OrderSource]int
	Products int
	Profiles int
	Failed   int
}

type syncOptions struct {
	users      []string
	skipOrders bool
	dryRun     bool
}

// syncMirror copies both order collections and, per listed seller, the
// products and profile. A failing seller is logged and skipped; an order
// collection failure stops the run.
func syncMirror(ctx context.Context, src source, dst sink, opts syncOptions, logger *logrus.Logger) (syncStats, error) {
	stats := syncStats{Orders: map[models.OrderSource]int{}}

	if !opts.skipOrders {
		for _, s := range []models.OrderSource{models.OrderSourceSales, models.OrderSourcePurchase} {
			records, err := src.FetchOrders(ctx, models.FilterSpec{Source: s})
			if err != nil {
				return stats, fmt.Errorf("fetch %s orders: %w", s, err)
			}
			if !opts.dryRun {
				if err := dst.UpsertOrders(ctx, s, records); err != nil {
					return stats, fmt.Errorf("upsert %s orders: %w", s, err)
				}
			}
			stats.Orders[s] = len(records)
		}
	}

	for _, userId := range opts.users {
		if err := syncSeller(ctx, src, dst, userId, opts.dryRun, &stats); err != nil {
			stats.Failed++
			config.LogError(logger, moduleName, "syncMirror", "sync seller", userId, err)
		}
	}
	return stats, nil
}

func syncSeller(ctx context.Context, src source, dst sink, userId string, dryRun bool, stats *syncStats) error {
	products, err := src.FetchProducts(ctx, userId)
	if err != nil {
		return err
	}
	profile, err := src.FetchProfile(ctx, userId)
	if err != nil && !models.IsNotFound(err) {
		return err
	}
	if profile != nil && profile.UserId == "" {
		profile.UserId = userId
	}
	if dryRun {
		stats.Products += len(products)
		if profile != nil {
			stats.Profiles++
		}
		return nil
	}

	if err := dst.UpsertProducts(ctx, products); err != nil {
		return err
	}
	stats.Products += len(products)
	if profile != nil {
		if err := dst.UpsertProfile(ctx, profile); err != nil {
			return err
		}
		stats.Profiles++
	}
	return nil
}

func main() {
	users := flag.String("users", "", "Optional: comma-separated seller ids whose products and profile to copy")
	skipOrders := flag.Bool("skip-orders", false, "Do not copy the sales and purchase order collections")
	dryRun := flag.Bool("dry-run", false, "Fetch and count documents without writing the mirror")
	timeout := flag.Duration("timeout", 10*time.Minute, "Overall time limit for the run")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.ValidateMirror(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	config.SetLogLevel(cfg.LogLevel)
	logger := config.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	db, err := config.ConnectDatabaseWithRetry(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database: %v\n", err)
		os.Exit(1)
	}
	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	stats, err := syncMirror(ctx, appwrite.NewClient(cfg.Appwrite), sqlstore.New(db), syncOptions{
		users:      utils.SplitAndTrim(*users),
		skipOrders: *skipOrders,
		dryRun:     *dryRun,
	}, logger)
	if err != nil {
		config.LogError(logger, moduleName, "main", "syncMirror", nil, err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("sales orders: %d, purchase orders: %d, products: %d, profiles: %d, failed sellers: %d\n",
		stats.Orders[models.OrderSourceSales],
		stats.Orders[models.OrderSourcePurchase],
		stats.Products,
		stats.Profiles,
		stats.Failed,
	)
	if stats.Failed > 0 {
		os.Exit(1)
	}
}
