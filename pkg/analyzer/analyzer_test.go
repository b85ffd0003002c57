package analyzer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treestat/pkg/analyzer"
	"github.com/Sumatoshi-tech/treestat/pkg/analyzer/analyzertest"
	"github.com/Sumatoshi-tech/treestat/pkg/statvalue"
)

func TestGrade(t *testing.T) {
	t.Parallel()

	cases := map[int]string{1: "A", 5: "A", 6: "B", 10: "B", 11: "C", 20: "C", 21: "D", 30: "D", 31: "E", 40: "E", 41: "F", 100: "F"}

	for cc, want := range cases {
		assert.Equal(t, want, analyzer.Grade(cc), "complexity %d", cc)
	}
}

func TestTreeSitterPython(t *testing.T) {
	t.Parallel()

	src := "def f(x):\n" +
		"    if x:\n" +
		"        return 1\n" +
		"    return 2\n"

	res, err := analyzer.NewTreeSitter().Analyze(context.Background(), "pkg/a.py", []byte(src))
	require.NoError(t, err)

	v := res.Value
	assert.InDelta(t, 2, v.Get(analyzer.CategoryComplexity, "func"), 0)
	assert.InDelta(t, 0, v.Get(analyzer.CategoryComplexity, "class"), 0)
	assert.InDelta(t, 2, v.Get(analyzer.CategoryComplexity, "total"), 0)
	assert.InDelta(t, 4, v.Get(analyzer.CategoryGrades, "A"), 0)
	assert.InDelta(t, 0, v.Get(analyzer.CategoryGrades, "F"), 0)
	assert.InDelta(t, 4, v.Get(analyzer.CategoryStats, "loc"), 0)
	assert.InDelta(t, 4, v.Get(analyzer.CategoryStats, "sloc"), 0)
	assert.InDelta(t, 1, v.Get(analyzer.CategoryStats, "functions"), 0)
	assert.Positive(t, v.Get(analyzer.CategoryHalstead, "length"))

	assert.Equal(t, []statvalue.Method{{Name: "f", Grade: "A", Lines: 4}}, res.Methods)
}

func TestTreeSitterPythonClassAndComments(t *testing.T) {
	t.Parallel()

	src := "# module\n" +
		"\n" +
		"class A:\n" +
		"    def m(self, a, b):\n" +
		"        return a and b  # both\n"

	res, err := analyzer.NewTreeSitter().Analyze(context.Background(), "a.py", []byte(src))
	require.NoError(t, err)

	v := res.Value
	assert.InDelta(t, 2, v.Get(analyzer.CategoryComplexity, "class"), 0)
	assert.InDelta(t, 0, v.Get(analyzer.CategoryComplexity, "func"), 0)
	assert.InDelta(t, 1, v.Get(analyzer.CategoryStats, "classes"), 0)
	assert.InDelta(t, 5, v.Get(analyzer.CategoryStats, "loc"), 0)
	assert.InDelta(t, 1, v.Get(analyzer.CategoryStats, "blank"), 0)
	assert.InDelta(t, 2, v.Get(analyzer.CategoryStats, "comments"), 0)
	assert.InDelta(t, 3, v.Get(analyzer.CategoryStats, "sloc"), 0)

	assert.Equal(t, []statvalue.Method{{Name: "A.m", Grade: "A", Lines: 2}}, res.Methods)
}

func TestTreeSitterGo(t *testing.T) {
	t.Parallel()

	src := "package p\n" +
		"\n" +
		"func F(a int) int {\n" +
		"\tif a > 0 && a < 10 {\n" +
		"\t\treturn 1\n" +
		"\t}\n" +
		"\treturn 0\n" +
		"}\n" +
		"\n" +
		"type T struct{}\n" +
		"\n" +
		"func (t *T) M() {}\n"

	res, err := analyzer.NewTreeSitter().Analyze(context.Background(), "p/p.go", []byte(src))
	require.NoError(t, err)

	v := res.Value
	assert.InDelta(t, 3, v.Get(analyzer.CategoryComplexity, "func"), 0)
	assert.InDelta(t, 1, v.Get(analyzer.CategoryComplexity, "class"), 0)
	assert.InDelta(t, 4, v.Get(analyzer.CategoryComplexity, "total"), 0)
	assert.InDelta(t, 2, v.Get(analyzer.CategoryStats, "functions"), 0)
	assert.InDelta(t, 1, v.Get(analyzer.CategoryStats, "classes"), 0)

	assert.Equal(t, []statvalue.Method{
		{Name: "F", Grade: "A", Lines: 6},
		{Name: "T.M", Grade: "A", Lines: 1},
	}, res.Methods)
}

func TestTreeSitterSyntaxError(t *testing.T) {
	t.Parallel()

	_, err := analyzer.NewTreeSitter().Analyze(context.Background(), "bad.py", []byte("def f(:\n"))
	require.ErrorIs(t, err, analyzer.ErrAnalysisFailed)
}

func TestTreeSitterBinary(t *testing.T) {
	t.Parallel()

	_, err := analyzer.NewTreeSitter().Analyze(context.Background(), "blob.py", []byte("x = 1\x00\x01\n"))
	require.ErrorIs(t, err, analyzer.ErrAnalysisFailed)
	assert.Contains(t, err.Error(), "binary")
}

func TestTreeSitterUnsupported(t *testing.T) {
	t.Parallel()

	ts := analyzer.NewTreeSitter()
	assert.False(t, ts.Supports("README.md", []byte("# title\n")))
	assert.True(t, ts.Supports("x.py", nil))

	_, err := ts.Analyze(context.Background(), "README.md", []byte("# title\n"))
	require.ErrorIs(t, err, analyzer.ErrAnalysisFailed)
}

func TestTreeSitterDeterministic(t *testing.T) {
	t.Parallel()

	src := []byte("def f(a):\n    return [x for x in a if x]\n")
	ts := analyzer.NewTreeSitter(analyzer.WithTimeout(time.Minute))

	first, err := ts.Analyze(context.Background(), "a.py", src)
	require.NoError(t, err)

	second, err := ts.Analyze(context.Background(), "a.py", src)
	require.NoError(t, err)

	assert.True(t, first.Value.Equal(second.Value))
	assert.Equal(t, first.Methods, second.Methods)
	assert.InDelta(t, 3, first.Value.Get(analyzer.CategoryComplexity, "func"), 0)
}

func TestFake(t *testing.T) {
	t.Parallel()

	fake := analyzertest.New()

	res, err := fake.Analyze(context.Background(), "x/a.py", []byte("a\nb\nc"))
	require.NoError(t, err)
	assert.True(t, res.Value.Equal(analyzertest.Value(3)))
	assert.Equal(t, []statvalue.Method{{Name: "a", Grade: "A", Lines: 3}}, res.Methods)

	_, err = fake.Analyze(context.Background(), "b.py", []byte(analyzertest.FailMarker+"\n"))
	require.ErrorIs(t, err, analyzer.ErrAnalysisFailed)

	assert.Equal(t, []string{"b.py", "x/a.py"}, fake.Calls())
}
