// Command catalog-ingest bulk-loads catalog items from gzip-compressed JSONL
// export files. Exports from different source systems overlap heavily, so a
// bloom filter tracks item IDs already written during the run and duplicate
// lines are skipped. Files are scanned concurrently; writes go through a
// single writer to keep upsert order deterministic per item.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/valmera/orderdesk/internal/storage/postgres"
)

const (
	bloomCapacity = 50_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
)

type itemLine struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Kind        string          `json:"kind"`
	Active      bool            `json:"active"`
}

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	files := flag.Args()
	if len(files) == 0 {
		slog.Error("no input files: pass one or more catalog export .gz files")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Scanners fan in to one writer; the bloom filter lives in the writer
	// goroutine, so membership checks need no locking.
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	lines := make(chan itemLine, 1024)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var written, skipped uint64
		for item := range lines {
			if seen.TestString(item.ID) {
				skipped++
				continue
			}
			seen.AddString(item.ID)

			if err := upsertItem(ctx, pool, item); err != nil {
				return errors.Wrapf(err, "upsert item %s", item.ID)
			}

			written++
			if written%progressEvery == 0 {
				slog.Info("write progress",
					slog.Uint64("written", written),
					slog.Uint64("skipped", skipped),
				)
			}
		}

		slog.Info("write complete", slog.Uint64("written", written), slog.Uint64("skipped", skipped))
		return nil
	})

	var scanners errgroup.Group
	for i, f := range files {
		scanners.Go(func() error {
			count, err := scanGzFile(ctx, f, lines)
			if err != nil {
				return errors.Wrapf(err, "scan file %s", f)
			}
			slog.Info("scan complete", slog.Int("file", i+1), slog.Uint64("lines", count))
			return nil
		})
	}

	scanErr := scanners.Wait()
	close(lines)

	if err := g.Wait(); err != nil {
		return err
	}
	return scanErr
}

// scanGzFile streams a gzip-compressed JSONL file and sends each parsed line
// to out. Malformed lines abort the run rather than being skipped silently.
func scanGzFile(ctx context.Context, path string, out chan<- itemLine) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var count uint64
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		var item itemLine
		if err := json.Unmarshal(scanner.Bytes(), &item); err != nil {
			return count, errors.Wrapf(err, "parse line %d", count+1)
		}
		if item.ID == "" {
			return count, errors.Errorf("line %d: missing item id", count+1)
		}

		select {
		case out <- item:
		case <-ctx.Done():
			return count, ctx.Err()
		}
		count++
	}

	if err := scanner.Err(); err != nil {
		return count, errors.Wrapf(err, "scan %s", path)
	}

	return count, nil
}

func upsertItem(ctx context.Context, pool *pgxpool.Pool, item itemLine) error {
	_, err := pool.Exec(ctx,
		`INSERT INTO catalog_items (id, name, description, unit_price, kind, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name, description = EXCLUDED.description,
		     unit_price = EXCLUDED.unit_price, kind = EXCLUDED.kind,
		     active = EXCLUDED.active, updated_at = now(),
		     version = catalog_items.version + 1`,
		item.ID, item.Name, item.Description, item.UnitPrice, item.Kind, item.Active,
	)
	return err
}
