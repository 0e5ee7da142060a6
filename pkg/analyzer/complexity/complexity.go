package complexity

import (
	"context"
	"fmt"
	"sync"

	"github.com/panbanda/pycc/internal/fileproc"
	"github.com/panbanda/pycc/pkg/analyzer"
	"github.com/panbanda/pycc/pkg/parser"
	"github.com/panbanda/pycc/pkg/scanner"
	"github.com/panbanda/pycc/pkg/source"
	"go.uber.org/zap"
)

// Ensure Analyzer implements analyzer.TreeAnalyzer.
var _ analyzer.TreeAnalyzer[*AggregateReport] = (*Analyzer)(nil)

// decisionNodeTypes are the node kinds that add one path through a function.
// Nested function definitions count as well.
var decisionNodeTypes = makeSet([]string{
	"for_statement",
	"while_statement",
	"if_statement",
	"elif_clause",
	"try_statement",
	"except_clause",
	"finally_clause",
	"function_definition",
})

// CountDecisionPoints returns 1 plus the number of decision nodes among all
// descendants of node. The node itself is not counted.
func CountDecisionPoints(node parser.Node) int {
	count := 1
	if node == nil {
		return count
	}
	for i := 0; i < node.ChildCount(); i++ {
		parser.Walk(node.Child(i), func(n parser.Node) bool {
			if decisionNodeTypes[n.Kind()] {
				count++
			}
			return true
		})
	}
	return count
}

// TreeOption configures AnalyzeTree.
type TreeOption func(*treeOptions)

type treeOptions struct {
	decorated bool
}

// UnwrapDecorated makes AnalyzeTree look through decorated_definition nodes
// at module level and in class bodies. Without it they are skipped.
func UnwrapDecorated(enabled bool) TreeOption {
	return func(o *treeOptions) {
		o.decorated = enabled
	}
}

func (o treeOptions) unwrap(node parser.Node) parser.Node {
	if node == nil || !o.decorated || node.Kind() != "decorated_definition" {
		return node
	}
	for i := node.ChildCount() - 1; i >= 0; i-- {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "function_definition", "class_definition":
			return child
		}
	}
	return nil
}

// AnalyzeTree scores the module-level functions and the methods declared
// directly in module-level class bodies, in source order.
func AnalyzeTree(tree parser.Tree, opts ...TreeOption) (FileReport, error) {
	var o treeOptions
	for _, opt := range opts {
		opt(&o)
	}

	report := FileReport{}
	root := tree.Root()
	if root == nil {
		return report, nil
	}

	for i := 0; i < root.ChildCount(); i++ {
		node := o.unwrap(root.Child(i))
		if node == nil {
			continue
		}

		switch node.Kind() {
		case "class_definition":
			className, err := definitionName(tree, node)
			if err != nil {
				return nil, err
			}
			for j := 0; j < node.ChildCount(); j++ {
				body := node.Child(j)
				if body == nil || body.Kind() != "block" {
					continue
				}
				for k := 0; k < body.ChildCount(); k++ {
					member := o.unwrap(body.Child(k))
					if member == nil || member.Kind() != "function_definition" {
						continue
					}
					rec, err := functionRecord(tree, member, className+".")
					if err != nil {
						return nil, err
					}
					report = append(report, rec)
				}
			}

		case "function_definition":
			rec, err := functionRecord(tree, node, "")
			if err != nil {
				return nil, err
			}
			report = append(report, rec)
		}
	}

	return report, nil
}

func functionRecord(tree parser.Tree, fn parser.Node, prefix string) (FunctionRecord, error) {
	name, err := definitionName(tree, fn)
	if err != nil {
		return FunctionRecord{}, err
	}
	return FunctionRecord{
		Name:       prefix + name,
		Complexity: CountDecisionPoints(fn),
		StartLine:  fn.StartLine(),
		EndLine:    fn.EndLine(),
	}, nil
}

// definitionName returns the text of the identifier expected at child index 1.
func definitionName(tree parser.Tree, node parser.Node) (string, error) {
	child := node.Child(1)
	if child == nil || child.Kind() != "identifier" {
		got := ""
		if child != nil {
			got = child.Kind()
		}
		return "", &StructuralError{Kind: node.Kind(), Got: got, Line: node.StartLine()}
	}
	return tree.Text(child), nil
}

// ReportCache stores file reports validated against the file content.
type ReportCache interface {
	Lookup(key string, content []byte) (FileReport, bool)
	Store(key string, content []byte, report FileReport) error
}

// Analyzer computes per-function cyclomatic complexity for Python sources.
type Analyzer struct {
	// mu guards parser, which serves AnalyzeSource and AnalyzeFile.
	mu     sync.Mutex
	parser *parser.Parser

	workers            int
	policy             ErrorPolicy
	decorated          bool
	rejectSyntaxErrors bool

	scanner *scanner.Scanner
	source  source.ContentSource
	cache   ReportCache
	logger  *zap.Logger
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithWorkers bounds the number of files analyzed at once.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// WithErrorPolicy selects how a failing file affects the run.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(a *Analyzer) {
		a.policy = p
	}
}

// WithDecorated records decorated functions and methods.
func WithDecorated(enabled bool) Option {
	return func(a *Analyzer) {
		a.decorated = enabled
	}
}

// WithRejectSyntaxErrors fails files whose tree contains syntax errors.
func WithRejectSyntaxErrors(reject bool) Option {
	return func(a *Analyzer) {
		a.rejectSyntaxErrors = reject
	}
}

// WithScanner sets the discovery used by Analyze.
func WithScanner(s *scanner.Scanner) Option {
	return func(a *Analyzer) {
		a.scanner = s
	}
}

// WithSource sets where file content is read from.
func WithSource(src source.ContentSource) Option {
	return func(a *Analyzer) {
		a.source = src
	}
}

// WithCache enables result caching.
func WithCache(c ReportCache) Option {
	return func(a *Analyzer) {
		a.cache = c
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// New creates a new complexity analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		workers: fileproc.DefaultWorkers,
		policy:  PolicyAbort,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.scanner == nil {
		a.scanner = scanner.NewScanner(nil)
	}
	if a.source == nil {
		a.source = source.NewFilesystem()
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	a.parser = parser.New(a.parserOptions()...)
	return a
}

func (a *Analyzer) parserOptions() []parser.Option {
	return []parser.Option{parser.WithRejectSyntaxErrors(a.rejectSyntaxErrors)}
}

func (a *Analyzer) treeOptions() []TreeOption {
	return []TreeOption{UnwrapDecorated(a.decorated)}
}

// AnalyzeSource analyzes one in-memory source unit.
func (a *Analyzer) AnalyzeSource(ctx context.Context, src []byte) (FileReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analyzeContent(ctx, a.parser, src, "")
}

// AnalyzeFile analyzes a single file without discovery or the worker pool.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (FileReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analyzeFile(ctx, a.parser, path)
}

// Analyze discovers the source files under root and analyzes them concurrently.
// Progress is tracked via context using analyzer.WithTracker.
func (a *Analyzer) Analyze(ctx context.Context, root string) (*AggregateReport, error) {
	files, err := a.scanner.ScanDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	a.logger.Debug("discovered source files", zap.String("root", root), zap.Int("files", len(files)))

	if tracker := analyzer.TrackerFromContext(ctx); tracker != nil {
		tracker.Add(len(files))
	}
	return a.AnalyzeFiles(ctx, files)
}

// AnalyzeFiles analyzes an explicit list of files on the worker pool.
//
// Under PolicyAbort the first failure cancels the remaining files and is
// returned without a report. Under PolicyIsolate failures are recorded in
// AggregateReport.Failures and the other files are kept.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, files []string) (*AggregateReport, error) {
	opts := fileproc.Options{
		Workers:       a.workers,
		FailFast:      a.policy != PolicyIsolate,
		ParserOptions: a.parserOptions(),
	}

	results, errs, err := fileproc.Collect[FileReport](ctx, files, opts, a.analyzeFile)
	if err != nil {
		a.logger.Debug("analysis aborted", zap.Error(err))
		return nil, err
	}

	report := NewAggregateReport()
	for path, fr := range results {
		report.Files[path] = fr
	}
	if errs.HasErrors() {
		for _, pe := range errs.Errors {
			report.Failures[pe.Path] = pe.Err.Error()
			a.logger.Warn("file skipped", zap.String("path", pe.Path), zap.Error(pe.Err))
		}
	}

	a.logger.Debug("analysis finished",
		zap.Int("files", len(report.Files)),
		zap.Int("failures", len(report.Failures)),
	)
	return report, nil
}

// analyzeFile reads path and analyzes it with psr, consulting the cache first.
func (a *Analyzer) analyzeFile(ctx context.Context, psr *parser.Parser, path string) (FileReport, error) {
	content, err := a.source.Read(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	key := a.cacheKey(path)
	if a.cache != nil {
		if fr, ok := a.cache.Lookup(key, content); ok {
			return fr, nil
		}
	}

	fr, err := a.analyzeContent(ctx, psr, content, path)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		if err := a.cache.Store(key, content, fr); err != nil {
			a.logger.Debug("cache store failed", zap.String("path", path), zap.Error(err))
		}
	}
	return fr, nil
}

func (a *Analyzer) analyzeContent(ctx context.Context, psr *parser.Parser, content []byte, path string) (FileReport, error) {
	result, err := psr.Parse(ctx, content, path)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	return AnalyzeTree(result, a.treeOptions()...)
}

// cacheKey folds the options that change results into the key.
func (a *Analyzer) cacheKey(path string) string {
	return fmt.Sprintf("%s|decorated=%t|strict=%t", path, a.decorated, a.rejectSyntaxErrors)
}

// Close releases analyzer resources.
func (a *Analyzer) Close() {
	a.parser.Close()
}

func makeSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
