package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/abdidvp/lintfix/internal/domain"
	"github.com/abdidvp/lintfix/internal/domain/fixer"
	"github.com/abdidvp/lintfix/internal/domain/normalize"
	"github.com/abdidvp/lintfix/internal/domain/suppress"
)

// DefaultSourceName names the staged file of an in-memory source when the
// caller gives no path hint.
const DefaultSourceName = "source.groovy"

// LintRequest describes one lint run.
type LintRequest struct {
	// BaseDir is the project root. Defaults to the working directory.
	BaseDir string
	// Paths restricts the run to files or directories. Empty lints BaseDir.
	Paths []string
	// Source lints in-memory content instead of files. Its result key is
	// domain.SourceKey.
	Source *string
	// SourceName is the file name used when staging Source.
	SourceName string
	// ChangedOnly keeps only files with uncommitted git changes.
	ChangedOnly bool
	// RequestKey identifies superseding requests. Generated when empty.
	RequestKey string
	// Fix enables fixing with FixOptions.
	Fix        bool
	FixOptions domain.FixOptions
}

// LintService orchestrates the lint pipeline:
// resolve files → analyze → normalize → suppress → fix → re-lint → summarize.
type LintService struct {
	engine  domain.EngineClient
	scanner domain.FileScanner
	changes domain.ChangeDetector
	catalog domain.RuleCatalog
	fixes   *FixService
	filter  *suppress.Filter
	config  domain.ProjectConfig
	logger  *slog.Logger
}

func NewLintService(
	engine domain.EngineClient,
	scanner domain.FileScanner,
	changes domain.ChangeDetector,
	catalog domain.RuleCatalog,
	cfg domain.ProjectConfig,
	logger *slog.Logger,
) *LintService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LintService{
		engine:  engine,
		scanner: scanner,
		changes: changes,
		catalog: catalog,
		fixes:   NewFixService(catalog, logger),
		filter:  suppress.New(logger),
		config:  cfg.WithDefaults(),
		logger:  logger,
	}
}

// run carries the state of one Lint call.
type run struct {
	req     LintRequest
	baseDir string
	key     string
	src     *Sources
	norm    *normalize.Normalizer
	staged  *staging
}

// Lint runs the pipeline. A superseded request returns domain.ErrCancelled.
// When violations at or above the fail_on threshold remain, the result is
// returned together with a *domain.FailOnError.
func (s *LintService) Lint(ctx context.Context, req LintRequest) (*domain.LintResult, error) {
	r := &run{
		req:  req,
		key:  req.RequestKey,
		src:  NewSources(),
		norm: normalize.New(s.catalog),
	}
	if r.key == "" {
		r.key = uuid.NewString()
	}

	baseDir, err := absDir(req.BaseDir)
	if err != nil {
		return nil, err
	}
	r.baseDir = baseDir

	// 1. Resolve the file set
	files, err := s.resolveFiles(r)
	if err != nil {
		return nil, err
	}
	if r.staged != nil {
		defer r.staged.cleanup()
	}
	if len(files) == 0 {
		s.logger.Info("no files to lint", "base_dir", r.baseDir)
		res := domain.NewLintResult()
		res.Summarize()
		return res, nil
	}

	// 2. Analyze
	res, err := s.analyze(ctx, r, files, r.key, r.keyOf)
	if err != nil {
		return nil, err
	}

	// 3. Fix, cascading through re-analysis of single files
	if req.Fix {
		opts := s.fixOptions(req.FixOptions)
		if _, err := s.fixes.Fix(ctx, res, r.src, opts, s.reanalyzer(r)); err != nil {
			return nil, fmt.Errorf("fixing: %w", err)
		}

		// 4. Re-lint the fixed sources and merge
		if opts.ReLint {
			if err := s.relint(ctx, r, res); err != nil {
				return nil, err
			}
		}
	}

	res.Summarize()
	return res, s.failOn(res)
}

func (s *LintService) fixOptions(o domain.FixOptions) domain.FixOptions {
	if len(o.Rules) == 0 {
		o.Rules = s.config.Fix.Rules
	}
	if o.MaxPasses == 0 {
		o.MaxPasses = s.config.Fix.MaxPasses
	}
	return o
}

func (s *LintService) resolveFiles(r *run) ([]string, error) {
	if r.req.Source != nil {
		name := r.req.SourceName
		if name == "" {
			name = DefaultSourceName
		}
		r.src.SetMemory(domain.SourceKey, *r.req.Source)
		st, err := stage(map[string]string{domain.SourceKey: *r.req.Source}, map[string]string{domain.SourceKey: filepath.Base(name)})
		if err != nil {
			return nil, err
		}
		r.staged = st
		return st.files(), nil
	}

	var files []string
	roots := r.req.Paths
	if len(roots) == 0 {
		roots = []string{r.baseDir}
	}
	for _, p := range roots {
		if !filepath.IsAbs(p) {
			p = filepath.Join(r.baseDir, p)
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		found, err := s.scanner.Scan(p, s.config.Includes, s.config.Excludes)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", p, err)
		}
		files = append(files, found...)
	}

	if r.req.ChangedOnly && s.changes != nil {
		changed, err := s.changes.ChangedFiles(r.baseDir)
		if err != nil {
			return nil, fmt.Errorf("listing changed files: %w", err)
		}
		keep := make(map[string]bool, len(changed))
		for _, c := range changed {
			keep[c] = true
		}
		filtered := files[:0]
		for _, f := range files {
			if keep[f] {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}
	return dedupe(files), nil
}

// keyOf maps an engine path to a result key.
func (r *run) keyOf(p string) string {
	if r.staged != nil {
		return r.staged.key(p)
	}
	if !filepath.IsAbs(p) {
		return filepath.Join(r.baseDir, p)
	}
	return filepath.Clean(p)
}

// analyze sends one request and turns the response into a suppressed,
// normalized result.
func (s *LintService) analyze(ctx context.Context, r *run, files []string, requestKey string, keyOf func(string) string) (*domain.LintResult, error) {
	req := &domain.EngineRequest{
		Args:       s.config.RuleSet,
		BaseDir:    r.baseDir,
		Includes:   s.config.Includes,
		Excludes:   s.config.Excludes,
		Parse:      true,
		Files:      files,
		RequestKey: requestKey,
	}
	s.logger.Debug("engine request", "files", len(files), "request_key", requestKey)

	resp, err := s.engine.Analyze(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("analyzing: %w", err)
	}
	switch {
	case resp.Cancelled():
		return nil, domain.ErrCancelled
	case resp.Status == domain.ResponseEngineFailure:
		if resp.Error == nil {
			return nil, &domain.EngineError{Message: "engine failed without details"}
		}
		return nil, resp.Error
	}

	linesCache := make(map[string][]string)
	lines := func(key string) []string {
		if l, ok := linesCache[key]; ok {
			return l
		}
		content, err := r.src.Read(key)
		if err != nil {
			s.logger.Debug("source unavailable for ranges", "file", key, "error", err)
			linesCache[key] = nil
			return nil
		}
		l, _ := fixer.SplitLines(content)
		linesCache[key] = l
		return l
	}

	res := r.norm.Normalize(resp, normalize.Options{Key: keyOf, Lines: lines})
	for _, key := range res.Keys() {
		fe := res.Files[key]
		if len(fe.Errors) == 0 {
			continue
		}
		fe.Errors = s.filter.Apply(key, lines(key), fe.Errors)
	}
	return res, nil
}

// reanalyzer lints one updated source restricted to rules for a cascade
// pass. Requests carry no key: cascades of different files run in parallel
// and must not supersede each other.
func (s *LintService) reanalyzer(r *run) Reanalyzer {
	return func(ctx context.Context, key, source string, rules []string) ([]*domain.Violation, error) {
		st, err := stage(map[string]string{key: source}, map[string]string{key: r.stagedName(key)})
		if err != nil {
			return nil, err
		}
		defer st.cleanup()

		sub := &run{req: r.req, baseDir: r.baseDir, src: NewSources(), norm: r.norm}
		sub.src.SetMemory(key, source)
		res, err := s.analyze(ctx, sub, st.files(), "", st.key)
		if err != nil {
			return nil, err
		}
		want := domain.NewRuleFilter(rules)
		var out []*domain.Violation
		if fe, ok := res.Files[key]; ok {
			for _, v := range fe.Errors {
				if want.Allows(v.Rule) {
					out = append(out, v)
				}
			}
		}
		return out, nil
	}
}

func (r *run) stagedName(key string) string {
	if key == domain.SourceKey {
		if r.req.SourceName != "" {
			return filepath.Base(r.req.SourceName)
		}
		return DefaultSourceName
	}
	return filepath.Base(key)
}

// relint analyzes the fixed sources again with fixing disabled. Each file's
// list becomes the fresh violations plus the ones fixed earlier; the
// updated source is kept.
func (s *LintService) relint(ctx context.Context, r *run, res *domain.LintResult) error {
	contents := make(map[string]string)
	names := make(map[string]string)
	for _, key := range res.Keys() {
		fe := res.Files[key]
		if fe.UpdatedSource == nil {
			continue
		}
		contents[key] = *fe.UpdatedSource
		names[key] = r.stagedName(key)
	}
	if len(contents) == 0 {
		return nil
	}

	st, err := stage(contents, names)
	if err != nil {
		return err
	}
	defer st.cleanup()

	sub := &run{req: r.req, baseDir: r.baseDir, src: NewSources(), norm: r.norm}
	for k, c := range contents {
		sub.src.SetMemory(k, c)
	}
	fresh, err := s.analyze(ctx, sub, st.files(), r.key, st.key)
	if err != nil {
		if errors.Is(err, domain.ErrCancelled) {
			return err
		}
		return fmt.Errorf("re-linting: %w", err)
	}

	for key := range contents {
		fe := res.Files[key]
		var fixed []*domain.Violation
		for _, v := range fe.Errors {
			if v.Fixed {
				fixed = append(fixed, v)
			}
		}
		var remaining []*domain.Violation
		if ffe, ok := fresh.Files[key]; ok {
			remaining = ffe.Errors
		}
		fe.Errors = append(remaining, fixed...)
	}
	for key, pe := range fresh.ParseErrors {
		if res.ParseErrors == nil {
			res.ParseErrors = make(map[string][]string)
		}
		res.ParseErrors[key] = pe
	}
	return nil
}

func (s *LintService) failOn(res *domain.LintResult) error {
	threshold, ok := s.config.FailOnSeverity()
	if !ok || !res.HasRemainingAtLeast(threshold) {
		return nil
	}
	count := 0
	for _, v := range res.Violations() {
		if !v.Fixed && v.Severity.AtLeast(threshold) {
			count++
		}
	}
	return &domain.FailOnError{Threshold: threshold, Count: count}
}

func absDir(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving base dir: %w", err)
	}
	return abs, nil
}

func dedupe(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		f = filepath.Clean(f)
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return sortStrings(out)
}

func sortStrings(s []string) []string {
	sort.Strings(s)
	return s
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return sortStrings(keys)
}
