package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/abdidvp/lintfix/internal/domain"
	"github.com/abdidvp/lintfix/internal/domain/fixer"
)

// Reanalyzer re-lints one file's updated source restricted to rules and
// returns the fresh violations. It feeds cascade passes.
type Reanalyzer func(ctx context.Context, key, source string, rules []string) ([]*domain.Violation, error)

// FixReport describes what a fix run did beyond the flags it set on the
// violations.
type FixReport struct {
	// Passes is the number of fix passes run per file.
	Passes map[string]int
	// Written lists the files whose updated source was persisted.
	Written []string
}

// FixService orchestrates fixing across files:
// select → apply per file (files in parallel) → cascade passes → write back.
type FixService struct {
	fixer  *fixer.Fixer
	logger *slog.Logger
}

func NewFixService(catalog domain.RuleCatalog, logger *slog.Logger) *FixService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FixService{fixer: fixer.New(catalog, logger), logger: logger}
}

// fixTask is one entry of a file's work queue: a pass over the current
// lines restricted to a rule subset.
type fixTask struct {
	pass       int
	rules      []string
	violations []*domain.Violation
}

// Fix applies fixes to every file of res in place, setting Fixed flags and
// UpdatedSource. A nil again disables re-analysis in cascade passes; they
// then run the requested rules file-wide.
func (s *FixService) Fix(ctx context.Context, res *domain.LintResult, src *Sources, opts domain.FixOptions, again Reanalyzer) (*FixReport, error) {
	report := &FixReport{Passes: make(map[string]int)}
	filter := domain.NewRuleFilter(opts.Rules)

	var (
		mu       sync.Mutex
		writeErr error
	)

	g, gCtx := errgroup.WithContext(ctx)
	for _, key := range res.Keys() {
		fe := res.Files[key]
		if !s.needsPass(fe, filter, opts) {
			continue
		}
		g.Go(func() error {
			passes, changed, err := s.fixFile(gCtx, key, fe, src, filter, opts, again)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			report.Passes[key] = passes
			if !opts.Persist || !changed {
				return nil
			}
			if err := src.Write(key, *fe.UpdatedSource); err != nil {
				writeErr = multierr.Append(writeErr, err)
				return nil
			}
			report.Written = append(report.Written, key)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	report.Written = sortStrings(report.Written)
	return report, writeErr
}

// needsPass reports whether a file can be touched at all, so files with
// nothing to do are never read.
func (s *FixService) needsPass(fe *domain.FileErrors, filter domain.RuleFilter, opts domain.FixOptions) bool {
	if opts.Format || !filter.Active() || opts.TriggerTest {
		return true
	}
	for _, v := range fe.Errors {
		if v.Fixable && filter.Allows(v.Rule) {
			return true
		}
	}
	return false
}

// fixFile runs the file's work queue to a fixed point. The first pass uses
// the reported violations; each later pass is restricted to the rules the
// previous one asked to re-run and only carries the source forward.
func (s *FixService) fixFile(ctx context.Context, key string, fe *domain.FileErrors, src *Sources, filter domain.RuleFilter, opts domain.FixOptions, again Reanalyzer) (int, bool, error) {
	source, err := src.Read(key)
	if err != nil {
		return 0, false, err
	}
	lines, eol := fixer.SplitLines(source)
	changed := false
	maxPasses := opts.EffectiveMaxPasses()

	queue := []fixTask{{pass: 1, violations: fe.Errors}}
	passes := 0
	for len(queue) > 0 {
		task := queue[0]
		queue = queue[1:]
		passes = task.pass

		ft := fixer.FileTask{
			Key:         key,
			Lines:       lines,
			Violations:  task.violations,
			Filter:      filter,
			Format:      opts.Format,
			TriggerTest: opts.TriggerTest,
		}
		if task.pass > 1 {
			ft.Filter = domain.NewRuleFilter(task.rules)
			ft.Format = false
			ft.TriggerTest = false
			if task.violations == nil {
				ft.FileRules = task.rules
			}
		}

		out := s.fixer.FixFile(ft)
		if out.Changed() {
			lines = out.Lines
			changed = true
		}
		s.logger.Debug("fix pass done",
			"file", key,
			"pass", task.pass,
			"fixed", out.FixedCount,
			"again", out.AgainRules)

		if len(out.AgainRules) == 0 {
			continue
		}
		if task.pass >= maxPasses {
			s.logger.Warn("fix cascade stopped at pass limit",
				"file", key,
				"limit", maxPasses,
				"rules", out.AgainRules)
			continue
		}

		next := fixTask{pass: task.pass + 1, rules: out.AgainRules}
		if again != nil {
			vs, err := again(ctx, key, fixer.JoinLines(lines, eol), out.AgainRules)
			if err != nil {
				return passes, changed, fmt.Errorf("re-analyzing %s: %w", key, err)
			}
			if vs == nil {
				vs = []*domain.Violation{}
			}
			next.violations = vs
		}
		queue = append(queue, next)
	}

	updated := fixer.JoinLines(lines, eol)
	fe.UpdatedSource = &updated
	return passes, changed && updated != source, nil
}
