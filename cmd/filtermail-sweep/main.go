package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/filtermail/filtermail/internal/filter"
	"github.com/filtermail/filtermail/internal/mailtext"
	"github.com/filtermail/filtermail/internal/rate"
	"github.com/filtermail/filtermail/internal/runtime"
	"github.com/filtermail/filtermail/internal/sweep"
)

type sweepConfig struct {
	settings     string
	addr         string
	email        string
	password     string
	terms        string
	from         bool
	cc           bool
	bcc          bool
	subject      bool
	body         bool
	label        string
	noAllMatch   bool
	noExactMatch bool
	rps          int
	dryRun       bool
}

func main() {
	cfg := parseSweepFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("filtermail-sweep failed", "error", err)
		os.Exit(1)
	}
}

func parseSweepFlags() sweepConfig {
	settings := flag.String("settings", "", "load filters from this settings.json file")
	addr := flag.String("addr", "imap.gmail.com:993", "IMAP server host:port")
	email := flag.String("email", "", "your email address")
	password := flag.String("password", "", "your password")
	terms := flag.String("filter", "", "the string to filter out (separate multiple values with commas)")
	from := flag.Bool("from", false, "filter by sender")
	cc := flag.Bool("cc", false, "filter by CC")
	bcc := flag.Bool("bcc", false, "filter by BCC")
	subject := flag.Bool("subject", false, "filter by subject")
	body := flag.Bool("body", false, "filter by contents of body")
	label := flag.String("label", "Inbox", "the label to search")
	noAllMatch := flag.Bool("no-all-match", false, "match when the term appears in any selected field, not all of them")
	noExactMatch := flag.Bool("no-exact-match", false, "match when the field merely contains the term")
	rps := flag.Int("rps", 4, "max server commands per second")
	dryRun := flag.Bool("dry-run", false, "report matches; skip deletion")
	flag.Parse()

	return sweepConfig{
		settings:     *settings,
		addr:         *addr,
		email:        *email,
		password:     *password,
		terms:        *terms,
		from:         *from,
		cc:           *cc,
		bcc:          *bcc,
		subject:      *subject,
		body:         *body,
		label:        *label,
		noAllMatch:   *noAllMatch,
		noExactMatch: *noExactMatch,
		rps:          *rps,
		dryRun:       *dryRun,
	}
}

func run(cfg sweepConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.DefaultLogger()

	conf, err := loadConfig(cfg)
	if err != nil {
		return err
	}

	logger.Info("logging in", "addr", cfg.addr, "user", conf.UserEmail)
	client, err := runtime.NewClient(ctx, cfg.addr, conf.UserEmail, conf.UserPassword)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	// Logout must be attempted however the batch terminates.
	defer func() {
		if logoutErr := client.Logout(); logoutErr != nil {
			logger.Warn("logout failed", "error", logoutErr)
		}
	}()

	var (
		limiter rate.Limiter
		bucket  *rate.TokenBucket
	)
	if cfg.rps > 0 {
		bucket = rate.NewTokenBucket(cfg.rps)
		limiter = bucket
		defer bucket.Stop()
	}

	svc := sweep.NewService(client, limiter, logger)
	res, err := svc.Run(ctx, conf, sweep.Spec{DryRun: cfg.dryRun})
	if err != nil {
		return fmt.Errorf("run sweep: %w", err)
	}

	logger.Info("done",
		"matched", len(res.IDs),
		"deleted", res.Deleted,
		"failed_deletes", res.FailedDeletes,
		"skipped_filters", res.SkippedRules,
	)
	return nil
}

// loadConfig resolves the filter configuration either from a settings file
// or from the ad hoc command line flags.
func loadConfig(cfg sweepConfig) (filter.Config, error) {
	if cfg.settings != "" {
		return filter.Load(cfg.settings)
	}

	if cfg.email == "" || cfg.password == "" || cfg.terms == "" {
		return filter.Config{}, fmt.Errorf("-email, -password and -filter are required without -settings")
	}
	if !mailtext.ValidEmail(cfg.email) {
		return filter.Config{}, fmt.Errorf("invalid user email %q", cfg.email)
	}
	fields := filter.FieldSet{
		From:    cfg.from,
		CC:      cfg.cc,
		BCC:     cfg.bcc,
		Subject: cfg.subject,
		Body:    cfg.body,
	}
	if fields.None() {
		return filter.Config{}, fmt.Errorf("at least one category to filter by is required")
	}

	conf := filter.Config{UserEmail: cfg.email, UserPassword: cfg.password}
	for _, term := range strings.Split(cfg.terms, ",") {
		conf.Filters = append(conf.Filters, filter.Rule{
			Search:     term,
			Fields:     fields,
			Label:      cfg.label,
			AllMatch:   !cfg.noAllMatch,
			ExactMatch: !cfg.noExactMatch,
			SubFilters: []filter.SubRule{},
		})
	}
	return conf, nil
}
