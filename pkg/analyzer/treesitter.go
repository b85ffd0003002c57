package analyzer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/treestat/pkg/textutil"
)

var (
	errUnsupportedLanguage = errors.New("unsupported language")
	errNoRootNode          = errors.New("no root node")
	errSyntax              = errors.New("syntax error")
	errBinary              = errors.New("binary content")
	errPoolType            = errors.New("unexpected parser pool type")
)

// TreeSitter analyzes Python and Go sources with tree-sitter grammars.
type TreeSitter struct {
	timeout time.Duration

	mu      sync.Mutex
	parsers map[*grammar]*sync.Pool
}

// Option configures a TreeSitter analyzer.
type Option func(*TreeSitter)

// WithTimeout bounds the analysis of one file. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(t *TreeSitter) {
		t.timeout = d
	}
}

// NewTreeSitter creates the tree-sitter analyzer.
func NewTreeSitter(opts ...Option) *TreeSitter {
	t := &TreeSitter{parsers: make(map[*grammar]*sync.Pool)}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Supports reports whether a grammar is known for path.
func (t *TreeSitter) Supports(path string, content []byte) bool {
	return selectGrammar(path, content) != nil
}

// Analyze parses content and computes its metrics.
func (t *TreeSitter) Analyze(ctx context.Context, path string, content []byte) (Result, error) {
	g := selectGrammar(path, content)
	if g == nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrAnalysisFailed, path, errUnsupportedLanguage)
	}

	if textutil.LooksBinary(content) {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrAnalysisFailed, path, errBinary)
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	res, err := t.analyze(ctx, g, content)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrAnalysisFailed, path, err)
	}

	return res, nil
}

func (t *TreeSitter) analyze(ctx context.Context, g *grammar, content []byte) (Result, error) {
	pool := t.pool(g)

	parser, ok := pool.Get().(*sitter.Parser)
	if !ok {
		return Result{}, errPoolType
	}

	defer pool.Put(parser)

	tree, err := parser.ParseString(ctx, nil, content)
	if err != nil {
		return Result{}, fmt.Errorf("parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsNull() {
		return Result{}, errNoRootNode
	}

	w := newWalker(ctx, g, content)
	w.visit(root, nil, nil)

	if w.ctxErr != nil {
		return Result{}, w.ctxErr
	}

	if w.syntaxErrorRow >= 0 {
		return Result{}, fmt.Errorf("%w at line %d", errSyntax, w.syntaxErrorRow+1)
	}

	return w.result(), nil
}

func (t *TreeSitter) pool(g *grammar) *sync.Pool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.parsers[g]; ok {
		return p
	}

	lang := sitter.NewLanguage(g.language())
	p := &sync.Pool{
		New: func() any {
			parser := sitter.NewParser()
			parser.SetLanguage(lang)

			return parser
		},
	}
	t.parsers[g] = p

	return p
}

// selectGrammar picks a grammar by extension, falling back to enry detection.
func selectGrammar(path string, content []byte) *grammar {
	if g, ok := grammarsByExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return g
	}

	return grammarsByLanguage[enry.GetLanguage(filepath.Base(path), content)]
}
