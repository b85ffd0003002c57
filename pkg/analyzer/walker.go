package analyzer

import (
	"context"
	"slices"
	"strings"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/Sumatoshi-tech/treestat/pkg/safeconv"
	"github.com/Sumatoshi-tech/treestat/pkg/statvalue"
)

// ctxCheckInterval is the number of visited nodes between context checks.
const ctxCheckInterval = 1024

// block is one function or method.
type block struct {
	name       string
	method     bool
	complexity int
	startRow   int
	endRow     int
}

type walker struct {
	ctx context.Context
	g   *grammar
	src []byte

	blocks          []*block
	moduleDecisions int
	classes         int
	comments        []span
	halstead        halsteadCounts

	visited        int
	ctxErr         error
	syntaxErrorRow int
}

func newWalker(ctx context.Context, g *grammar, src []byte) *walker {
	return &walker{
		ctx:            ctx,
		g:              g,
		src:            src,
		halstead:       newHalsteadCounts(),
		syntaxErrorRow: -1,
	}
}

func row(p sitter.Point) int {
	return safeconv.MustUintToInt(p.Row)
}

func column(p sitter.Point) int {
	return safeconv.MustUintToInt(p.Column)
}

// visit walks n. scope holds the enclosing class names, fn the enclosing block.
func (w *walker) visit(n sitter.Node, scope []string, fn *block) {
	if w.ctxErr != nil || w.syntaxErrorRow >= 0 {
		return
	}

	w.visited++
	if w.visited%ctxCheckInterval == 0 {
		if err := w.ctx.Err(); err != nil {
			w.ctxErr = err

			return
		}
	}

	typ := n.Type()

	switch {
	case typ == "ERROR" || n.IsMissing():
		w.syntaxErrorRow = row(n.StartPoint())

		return
	case w.g.comments[typ]:
		start, end := n.StartPoint(), n.EndPoint()
		w.comments = append(w.comments, span{
			startRow: row(start), startCol: column(start),
			endRow: row(end), endCol: column(end),
		})

		return
	case w.g.operands[typ]:
		w.halstead.operand(nodeText(n, w.src))

		return
	}

	if w.g.countsAsClass(n) {
		w.classes++
	}

	if w.g.isClass(n) {
		name := nodeText(n.ChildByFieldName("name"), w.src)
		w.children(n, append(slices.Clip(scope), name), nil)

		return
	}

	if w.g.functions[typ] && fn == nil {
		w.children(n, scope, w.openBlock(n, scope))

		return
	}

	if w.g.decisions[typ] || w.g.isBoolean(n) {
		if fn != nil {
			fn.complexity++
		} else {
			w.moduleDecisions++
		}
	}

	if n.ChildCount() == 0 {
		if n.IsNamed() {
			w.halstead.operand(nodeText(n, w.src))
		} else if !isPunctuation(typ) {
			w.halstead.operator(typ)
		}

		return
	}

	w.children(n, scope, fn)
}

func (w *walker) children(n sitter.Node, scope []string, fn *block) {
	for idx := range n.ChildCount() {
		w.visit(n.Child(idx), scope, fn)
	}
}

func (w *walker) openBlock(n sitter.Node, scope []string) *block {
	name := nodeText(n.ChildByFieldName("name"), w.src)
	method := false

	if recv := w.g.receiver(n, w.src); recv != "" {
		name = recv + "." + name
		method = true
	} else if len(scope) > 0 {
		name = strings.Join(scope, ".") + "." + name
		method = true
	}

	b := &block{
		name:       name,
		method:     method,
		complexity: 1,
		startRow:   row(n.StartPoint()),
		endRow:     row(n.EndPoint()),
	}
	w.blocks = append(w.blocks, b)

	return b
}

func (w *walker) result() Result {
	lines := analyzeLines(w.src, w.comments)

	grades := make(map[string]float64, len(Grades))
	for _, g := range Grades {
		grades[g] = 0
	}

	var funcCC, classCC int

	methods := make([]statvalue.Method, 0, len(w.blocks))

	for _, b := range w.blocks {
		grade := Grade(b.complexity)
		blockLines := lines.sourceLinesBetween(b.startRow, b.endRow)

		methods = append(methods, statvalue.Method{Name: b.name, Grade: grade, Lines: blockLines})
		grades[grade] += float64(blockLines)

		if b.method {
			classCC += b.complexity
		} else {
			funcCC += b.complexity
		}
	}

	statvalue.SortMethods(methods)

	nested := map[string]map[string]float64{
		CategoryComplexity: {
			"class": float64(classCC),
			"func":  float64(funcCC),
			"total": float64(classCC + funcCC + w.moduleDecisions),
		},
		CategoryGrades:   grades,
		CategoryHalstead: w.halstead.metrics(),
		CategoryStats: {
			"loc":       float64(lines.loc),
			"sloc":      float64(lines.sloc),
			"blank":     float64(lines.blank),
			"comments":  float64(lines.comments),
			"functions": float64(len(w.blocks)),
			"classes":   float64(w.classes),
		},
	}

	return Result{Value: statvalue.FromNested(nested), Methods: methods}
}
