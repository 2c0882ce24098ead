// Package sweep runs the configured filters against a mailbox session and
// deletes every matched message.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/filtermail/filtermail/internal/filter"
	"github.com/filtermail/filtermail/internal/mailbox"
	"github.com/filtermail/filtermail/internal/rate"
	"github.com/filtermail/filtermail/internal/search"
)

// Spec controls one batch run.
type Spec struct {
	DryRun bool // log the matched count, skip deletion
}

// Result reports what a batch run did.
type Result struct {
	Deleted       int
	IDs           []mailbox.MessageID // every message that matched
	SkippedRules  int                 // filters skipped for bad labels or empty field sets
	FailedDeletes int
}

// Service iterates configured filters across labels, aggregates matched IDs,
// and issues delete operations against the session. Per-filter failures are
// reported and skipped; session-level failures abort the batch.
type Service struct {
	Client  mailbox.Client
	Engine  *search.Engine
	Limiter rate.Limiter
	Logger  *slog.Logger

	// Confirm, when set, is consulted with the combined candidate list
	// before anything is deleted. Returning false leaves the mailbox
	// untouched.
	Confirm func(ids []mailbox.MessageID) bool
}

// NewService constructs a Service with sane defaults, sharing the client and
// limiter with its search engine.
func NewService(client mailbox.Client, limiter rate.Limiter, logger *slog.Logger) *Service {
	if limiter == nil {
		limiter = rate.NoLimit{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Client:  client,
		Engine:  search.NewEngine(client, limiter, logger),
		Limiter: limiter,
		Logger:  logger,
	}
}

// Run processes every top-level filter in order and deletes the combined
// match set. The caller owns the session lifecycle and must guarantee
// logout on every exit path.
func (s *Service) Run(ctx context.Context, cfg filter.Config, spec Spec) (Result, error) {
	var res Result
	matched := make(search.Set)

	for i, rule := range cfg.Filters {
		log := s.Logger.With(
			slog.Int("filter", i),
			slog.String("search", rule.Search),
			slog.String("label", rule.Label),
		)
		log.InfoContext(ctx, "searching for matching emails")

		if err := s.Limiter.Wait(ctx); err != nil {
			return res, err
		}
		if err := s.Client.SelectLabel(ctx, rule.Label); err != nil {
			var notFound *mailbox.LabelNotFoundError
			if errors.As(err, &notFound) {
				log.WarnContext(ctx, "label not found, skipping filter", "error", err)
				res.SkippedRules++
				continue
			}
			return res, fmt.Errorf("select label %q: %w", rule.Label, err)
		}

		set, err := s.Engine.Run(ctx, rule)
		if err != nil {
			if errors.Is(err, search.ErrInvalidQuery) {
				log.WarnContext(ctx, "filter selects no fields, skipping")
				res.SkippedRules++
				continue
			}
			return res, fmt.Errorf("filter %d: %w", i, err)
		}
		log.InfoContext(ctx, "filter matched", slog.Int("count", len(set)))
		for id := range set {
			matched[id] = struct{}{}
		}
	}

	if len(cfg.Filters) > 0 && res.SkippedRules == len(cfg.Filters) {
		return res, fmt.Errorf("no filter could run: all %d were skipped", res.SkippedRules)
	}

	res.IDs = search.SortedIDs(matched)
	s.Logger.InfoContext(ctx, "search complete", slog.Int("matched", len(res.IDs)))
	if len(res.IDs) == 0 {
		return res, nil
	}

	if spec.DryRun {
		s.Logger.InfoContext(ctx, "dry-run, leaving mailbox untouched", slog.Int("count", len(res.IDs)))
		return res, nil
	}
	if s.Confirm != nil && !s.Confirm(res.IDs) {
		s.Logger.InfoContext(ctx, "deletion declined, leaving mailbox untouched")
		return res, nil
	}

	for i, id := range res.IDs {
		s.Logger.InfoContext(ctx, "sending email to the bin",
			slog.Int("n", i+1), slog.Int("of", len(res.IDs)))
		if err := s.Limiter.Wait(ctx); err != nil {
			return res, err
		}
		if err := s.Client.Delete(ctx, id); err != nil {
			s.Logger.ErrorContext(ctx, "delete failed", slog.String("id", string(id)), "error", err)
			res.FailedDeletes++
			continue
		}
		res.Deleted++
	}
	return res, nil
}
