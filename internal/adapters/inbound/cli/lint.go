package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abdidvp/lintfix/internal/adapters/outbound/scanner"
	"github.com/abdidvp/lintfix/internal/adapters/outbound/tui"
	"github.com/abdidvp/lintfix/internal/adapters/outbound/watcher"
	"github.com/abdidvp/lintfix/internal/application"
	"github.com/abdidvp/lintfix/internal/domain"
	"github.com/abdidvp/lintfix/internal/domain/rules"
)

type lintOptions struct {
	path       string
	fix        bool
	format     bool
	fixRules   []string
	relint     bool
	jsonOutput bool
	changed    bool
	watch      bool
	requestKey string
	source     bool
	sourceName string
}

func newLintCmd(a *app) *cobra.Command {
	return lintCommand(a, &cobra.Command{
		Use:   "lint [paths...]",
		Short: "Lint Groovy files",
		Long:  "Analyze files under the project (or the given paths) and report violations. Exits 1 when violations at or above fail_on remain.",
	}, lintOptions{})
}

func newFixCmd(a *app) *cobra.Command {
	return lintCommand(a, &cobra.Command{
		Use:   "fix [paths...]",
		Short: "Lint Groovy files and apply fixes",
		Long:  "Same as lint --fix: fixable violations are corrected and the files written back.",
	}, lintOptions{fix: true})
}

func newFormatCmd(a *app) *cobra.Command {
	return lintCommand(a, &cobra.Command{
		Use:   "format [paths...]",
		Short: "Fix and apply formatting rules to every file",
		Long:  "Same as lint --format: fixes reported violations and also runs the formatting rules on every file.",
	}, lintOptions{fix: true, format: true})
}

func lintCommand(a *app, cmd *cobra.Command, preset lintOptions) *cobra.Command {
	opts := preset
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return a.runLint(cmd, args, &opts)
	}

	f := cmd.Flags()
	if !preset.fix {
		f.BoolVar(&opts.fix, "fix", false, "Apply fixes and write the files back")
	}
	if !preset.format {
		f.BoolVar(&opts.format, "format", false, "Also run the formatting rules on every file (implies --fix)")
	}
	f.StringSliceVar(&opts.fixRules, "fix-rules", nil, "Only fix these rules (comma-separated)")
	f.BoolVar(&opts.relint, "relint", false, "Analyze the fixed sources again before reporting")
	f.BoolVar(&opts.jsonOutput, "json", false, "Output the result as JSON")
	f.BoolVar(&opts.changed, "changed", false, "Only lint files with uncommitted git changes")
	f.BoolVar(&opts.watch, "watch", false, "Lint again whenever matching files change")
	f.StringVar(&opts.requestKey, "request-key", "", "Key shared by runs that supersede each other")
	f.BoolVar(&opts.source, "source", false, "Read the source to lint from stdin; fixed source goes to stdout")
	f.StringVar(&opts.sourceName, "source-name", application.DefaultSourceName, "File name of the stdin source")
	f.StringVar(&opts.path, "path", "", "Project path (defaults to current working directory)")
	return cmd
}

func (a *app) runLint(cmd *cobra.Command, args []string, opts *lintOptions) error {
	// 1. Resolve the project and its config
	baseDir, err := absPath(opts.path)
	if err != nil {
		return err
	}
	cfg, err := a.loadConfig(baseDir)
	if err != nil {
		return err
	}
	if err := checkRuleNames(opts.fixRules); err != nil {
		return err
	}

	// 2. Build the request
	req := application.LintRequest{
		BaseDir:     baseDir,
		ChangedOnly: opts.changed,
		RequestKey:  opts.requestKey,
		Fix:         opts.fix || opts.format,
		FixOptions: domain.FixOptions{
			Rules:   opts.fixRules,
			Format:  opts.format,
			Persist: !opts.source,
			ReLint:  opts.relint,
		},
	}
	for _, p := range args {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", p, err)
		}
		req.Paths = append(req.Paths, abs)
	}
	if opts.source {
		if opts.watch || len(args) > 0 {
			return errors.New("--source cannot be combined with paths or --watch")
		}
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		src := string(data)
		req.Source = &src
		req.SourceName = opts.sourceName
	}

	svc := a.lintService(cfg, baseDir)
	if opts.watch {
		return a.watch(cmd, svc, cfg, req, opts)
	}

	// 3. Run and report
	res, err := svc.Lint(cmd.Context(), req)
	if res != nil {
		if rerr := a.report(cmd, res, baseDir, opts); rerr != nil {
			return rerr
		}
	}
	return err
}

var outMu sync.Mutex

// report writes a result in the selected format. With --source and a fix,
// stdout carries the fixed text and the report goes to stderr.
func (a *app) report(cmd *cobra.Command, res *domain.LintResult, baseDir string, opts *lintOptions) error {
	outMu.Lock()
	defer outMu.Unlock()

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if opts.source && (opts.fix || opts.format) {
		if fe, ok := res.Files[domain.SourceKey]; ok && fe.UpdatedSource != nil {
			fmt.Fprint(out, *fe.UpdatedSource)
			out = cmd.ErrOrStderr()
		}
	}
	fmt.Fprint(out, tui.RenderLintResult(res, baseDir))
	return nil
}

// watch lints once, then again for every batch of changed files. All runs
// share one request key so a run still in flight is superseded by the next.
func (a *app) watch(cmd *cobra.Command, svc *application.LintService, cfg domain.ProjectConfig, req application.LintRequest, opts *lintOptions) error {
	if req.RequestKey == "" {
		req.RequestKey = uuid.NewString()
	}
	match := func(rel string) bool {
		return scanner.MatchAny(cfg.Includes, rel) && !scanner.MatchAny(cfg.Excludes, rel)
	}
	w, err := watcher.New(req.BaseDir, match, 0, a.logger)
	if err != nil {
		return err
	}

	runs := &watchRuns{lint: svc.Lint}
	run := func(ctx context.Context, r application.LintRequest) {
		res, err := runs.run(ctx, r)
		var failOn *domain.FailOnError
		switch {
		case errors.Is(err, domain.ErrCancelled):
			a.logger.Info("run superseded", "request_key", r.RequestKey)
			return
		case err != nil && !errors.As(err, &failOn):
			fmt.Fprintln(cmd.ErrOrStderr(), "lintfix: "+describe(err))
		}
		if res != nil {
			if err := a.report(cmd, res, req.BaseDir, opts); err != nil {
				a.logger.Warn("writing report", "error", err)
			}
		}
	}

	go run(cmd.Context(), req)
	fmt.Fprintln(cmd.ErrOrStderr(), "watching for changes, press Ctrl+C to stop")
	return w.Run(cmd.Context(), func(ctx context.Context, paths []string) {
		r := req
		r.Paths = paths
		run(ctx, r)
	})
}

// watchRuns serializes watch-mode runs that write files back, so two
// fixes of the same file never interleave. Report-only runs overlap freely.
type watchRuns struct {
	lint func(context.Context, application.LintRequest) (*domain.LintResult, error)
	mu   sync.Mutex
}

func (w *watchRuns) run(ctx context.Context, r application.LintRequest) (*domain.LintResult, error) {
	if r.Fix && r.FixOptions.Persist {
		w.mu.Lock()
		defer w.mu.Unlock()
	}
	return w.lint(ctx, r)
}

// checkRuleNames rejects unknown --fix-rules with suggestions.
func checkRuleNames(names []string) error {
	reg := rules.Default()
	for _, n := range names {
		if _, ok := reg.Get(n); ok {
			continue
		}
		if s := reg.Suggest(n); len(s) > 0 {
			return fmt.Errorf("%w: %s (did you mean %s?)", domain.ErrRuleNotFound, n, strings.Join(s, ", "))
		}
		return fmt.Errorf("%w: %s", domain.ErrRuleNotFound, n)
	}
	return nil
}
