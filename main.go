package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/studytracker/internal/clock"
	"github.com/example/studytracker/internal/config"
	"github.com/example/studytracker/internal/database"
	"github.com/example/studytracker/internal/excel"
	"github.com/example/studytracker/internal/host/anki"
	"github.com/example/studytracker/internal/logger"
	"github.com/example/studytracker/internal/notify"
	"github.com/example/studytracker/internal/report"
	"github.com/example/studytracker/internal/scheduler"
	"github.com/example/studytracker/internal/tracker"
	"github.com/example/studytracker/pkg/models"
)

type options struct {
	report        string
	deck          int64
	from          string
	to            string
	exportBackup  string
	importBackup  string
	importRollups string
	backfill      bool
	status        bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.report, "report", "", "write a report to this .html or .xlsx file and exit")
	flag.Int64Var(&o.deck, "deck", -1, "deck for -report (default: the selected deck, 0 for all decks)")
	flag.StringVar(&o.from, "from", "", "first day of -report or -backfill (YYYY-MM-DD, default 30 days ago)")
	flag.StringVar(&o.to, "to", "", "last day of -report or -backfill (YYYY-MM-DD, default today)")
	flag.StringVar(&o.exportBackup, "export", "", "export a backup to this file and exit")
	flag.StringVar(&o.importBackup, "import", "", "replace the store with this backup and exit")
	flag.StringVar(&o.importRollups, "import-rollups", "", "merge daily rollups from a .csv or .xlsx file and exit")
	flag.BoolVar(&o.backfill, "backfill", false, "rebuild rollups over -from/-to from the review log and exit")
	flag.BoolVar(&o.status, "status", false, "print the store status and exit")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Cancel the context on the first interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := run(ctx, cfg, opts, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("study tracker failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, log *logger.Logger) error {
	clk := clock.Real{}

	store, err := database.Open(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	collection, err := anki.Open(ctx, cfg.Host, clk)
	if err != nil {
		return fmt.Errorf("open collection: %w", err)
	}
	defer collection.Close()

	var notifier notify.Notifier = notify.NewLog(log)
	if cfg.Notify.TelegramEnabled() {
		tg, err := notify.NewTelegram(cfg.Notify, log)
		if err != nil {
			log.Warn("telegram notifications disabled", "error", err)
		} else {
			notifier = notify.Multi{notifier, tg}
		}
	}

	tr := tracker.New(cfg.Tracking, store, collection, clk, notifier, log)
	passphrase := os.Getenv("STUDYTRACKER_BACKUP_PASSPHRASE")

	switch {
	case opts.exportBackup != "":
		if err := tr.ExportBackup(ctx, opts.exportBackup, passphrase); err != nil {
			return err
		}
		log.Info("backup exported", "path", opts.exportBackup)
		return nil
	case opts.importBackup != "":
		if err := tr.ImportBackup(ctx, opts.importBackup, passphrase); err != nil {
			return err
		}
		log.Info("backup imported", "path", opts.importBackup)
		return nil
	case opts.importRollups != "":
		ic := excel.DefaultImportConfig()
		ic.FilePath = opts.importRollups
		res, err := tr.ImportRollups(ctx, ic)
		if res != nil {
			log.Info("rollup import finished", "processed", res.TotalProcessed, "merged", res.Merged, "skipped", res.Skipped)
			for _, e := range res.Errors {
				log.Warn("row skipped", "detail", e)
			}
		}
		return err
	case opts.status:
		return printStatus(ctx, tr)
	case opts.report != "":
		return writeReport(ctx, tr, clk, opts, log)
	case opts.backfill:
		from, to, err := dateRange(opts, clk)
		if err != nil {
			return err
		}
		res, err := tr.Backfill(ctx, from, to, nil)
		if res != nil {
			log.Info("backfill finished", "days_committed", res.Committed(), "ok", res.OK())
		}
		return err
	}

	return serve(ctx, cfg, tr, log)
}

// serve runs the tracker and its scheduler until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, tr *tracker.Tracker, log *logger.Logger) error {
	sched := scheduler.New(cfg.Scheduler, time.Local, log)
	if err := sched.Start(scheduler.Jobs{
		Tick:        func() { tr.Post(tracker.Command{Kind: tracker.Tick}) },
		Maintenance: func() { tr.Post(tracker.Command{Kind: tracker.Maintenance}) },
	}); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tr.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		sched.Stop()
		return nil
	})

	// the collection may have changed while the tracker was not running
	tr.Post(tracker.Command{Kind: tracker.SyncFinished})

	log.Info("study tracker started. Press Ctrl+C to stop.")
	err := g.Wait()
	log.Info("study tracker stopped")
	return err
}

func dateRange(opts options, clk clock.Clock) (models.Date, models.Date, error) {
	to := clock.Today(clk)
	if opts.to != "" {
		d, err := models.ParseDate(opts.to)
		if err != nil {
			return models.Date{}, models.Date{}, err
		}
		to = d
	}
	from := to.AddDays(-29)
	if opts.from != "" {
		d, err := models.ParseDate(opts.from)
		if err != nil {
			return models.Date{}, models.Date{}, err
		}
		from = d
	}
	return from, to, nil
}

func writeReport(ctx context.Context, tr *tracker.Tracker, clk clock.Clock, opts options, log *logger.Logger) error {
	from, to, err := dateRange(opts, clk)
	if err != nil {
		return err
	}
	deck := opts.deck
	if deck < 0 {
		if deck, err = tr.SelectedDeck(ctx); err != nil {
			return err
		}
	}

	r, err := tr.Report(ctx, deck, from, to, nil)
	if err != nil {
		return err
	}

	f, err := os.Create(opts.report)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(opts.report), ".xlsx") {
		err = excel.WriteWorkbook(f, r)
	} else {
		err = report.RenderHTML(f, r)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	log.Info("report written", "path", opts.report, "deck", r.DeckName, "from", from, "to", to)
	return nil
}

func printStatus(ctx context.Context, tr *tracker.Tracker) error {
	st, err := tr.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("store: %s (schema version %d)\n", st.Path, st.SchemaVersion)
	for table, n := range st.Counts {
		fmt.Printf("  %-18s %d rows\n", table, n)
	}
	for _, l := range st.Levels {
		fmt.Printf("  deck %d: level %d since %s\n", l.DeckID, l.Level, l.PeriodStart)
	}
	for _, r := range st.LatestRollups {
		fmt.Printf("  %s deck %d: %d/%d cards, %d min\n", r.Date, r.DeckID, r.CardsStudied, r.CardsDue, r.StudyMinutes)
	}
	return nil
}
