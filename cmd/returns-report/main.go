package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmdatafocus/sellerdash_backend/appwrite"
	"github.com/mmdatafocus/sellerdash_backend/config"
	"github.com/mmdatafocus/sellerdash_backend/models"
	"github.com/mmdatafocus/sellerdash_backend/models/reports"
	"github.com/mmdatafocus/sellerdash_backend/sqlstore"
)

type orderFetcher interface {
	FetchOrders(ctx context.Context, spec models.FilterSpec) ([]models.OrderRecord, error)
}

type options struct {
	source models.OrderSource
	search string
	xlsx   string
	limit  int
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("returns-report", flag.ContinueOnError)
	source := fs.String("source", "sales", "Order collection to read (sales/purchase)")
	search := fs.String("search", "", "Optional: search term applied to returned orders")
	xlsx := fs.String("xlsx", "", "Optional: write the filtered returns table to this .xlsx file")
	limit := fs.Int("limit", 0, "Optional: cap the number of orders fetched (0 = all)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	src, err := models.ParseOrderSource(*source)
	if err != nil {
		return options{}, err
	}
	if *limit < 0 {
		return options{}, fmt.Errorf("--limit must be >= 0")
	}
	return options{source: src, search: *search, xlsx: *xlsx, limit: *limit}, nil
}

// run fetches once, derives the returns view and prints it as JSON.
func run(ctx context.Context, store orderFetcher, opts options, out io.Writer) error {
	records, err := store.FetchOrders(ctx, models.FilterSpec{
		Source:      opts.source,
		NewestFirst: true,
		Limit:       opts.limit,
	})
	if err != nil {
		return err
	}
	view := reports.BuildReturnsView(records, opts.search)

	if opts.xlsx != "" {
		if err := reports.SaveReturnsWorkbook(opts.xlsx, view.FilteredReturns); err != nil {
			return fmt.Errorf("write %s: %w", opts.xlsx, err)
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	config.SetLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.LoadTimeout)
	defer cancel()

	var store orderFetcher = appwrite.NewClient(cfg.Appwrite)
	if cfg.RecordStoreDriver == config.RecordStoreMySQL {
		db, err := config.ConnectDatabaseWithRetry(ctx, cfg.Database)
		if err != nil {
			fmt.Fprintf(os.Stderr, "database: %v\n", err)
			os.Exit(1)
		}
		store = sqlstore.New(db)
	}

	if err := run(ctx, store, opts, os.Stdout); err != nil {
		config.LogError(config.GetLogger(), "returns-report", "main", "run", opts.source, err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
