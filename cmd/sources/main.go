// Command sources manages the content source catalog.
//
//	sources list
//	sources import --file sources.yaml [--dry-run]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/accioai/accio/internal/config"
	"github.com/accioai/accio/internal/database"
	"github.com/accioai/accio/internal/ingestion"
	"github.com/accioai/accio/internal/logging"
)

type options struct {
	DatabaseURL string `long:"database-url" env:"DATABASE_URL" description:"Postgres connection URL (falls back to DB_* variables)"`
}

type listCommand struct {
	opts *options
}

type importCommand struct {
	opts   *options
	File   string `short:"f" long:"file" required:"true" description:"YAML catalog to import"`
	DryRun bool   `long:"dry-run" description:"Validate the catalog without writing"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)

	if _, err := parser.AddCommand("list", "List sources", "List every configured source with its last fetch time.", &listCommand{opts: &opts}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if _, err := parser.AddCommand("import", "Import a catalog", "Insert or update sources from a YAML catalog, keyed by URL.", &importCommand{opts: &opts}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}

func (c *listCommand) Execute([]string) error {
	ctx := context.Background()
	repo, closeDB, err := openSources(ctx, c.opts)
	if err != nil {
		return err
	}
	defer closeDB()

	sources, err := repo.ListAll(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tNAME\tTYPE\tACTIVE\tLAST FETCHED\tURL")
	for _, s := range sources {
		last := "never"
		if s.LastFetchedAt != nil {
			last = time.Since(*s.LastFetchedAt).Round(time.Minute).String() + " ago"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n", s.Category, s.Name, s.SourceType, s.IsActive, last, s.SourceURL)
	}
	return w.Flush()
}

func (c *importCommand) Execute([]string) error {
	sources, err := ingestion.LoadCatalogFile(c.File)
	if err != nil {
		return err
	}
	if c.DryRun {
		fmt.Printf("%s: %d sources valid\n", c.File, len(sources))
		return nil
	}

	ctx := context.Background()
	repo, closeDB, err := openSources(ctx, c.opts)
	if err != nil {
		return err
	}
	defer closeDB()

	for _, src := range sources {
		id, err := repo.Upsert(ctx, src)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\t%s\n", id, src.Category, src.Name)
	}
	fmt.Printf("imported %d sources\n", len(sources))
	return nil
}

func openSources(ctx context.Context, opts *options) (*database.SourceRepository, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if opts.DatabaseURL != "" {
		cfg.Database.URL = opts.DatabaseURL
	}

	logger, err := logging.NewWithWriter(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)

	db, err := database.Connect(ctx, database.ConfigFrom(cfg.Database))
	if err != nil {
		return nil, nil, err
	}
	return database.NewSourceRepository(db), func() { _ = db.Close() }, nil
}
