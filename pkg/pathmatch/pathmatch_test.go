package pathmatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treestat/pkg/pathmatch"
)

func TestDefaultTestPatterns(t *testing.T) {
	t.Parallel()

	m := pathmatch.MustCompile(pathmatch.DefaultTestPatterns...)

	assert.True(t, m.MatchBase("tests/test_a.py"))
	assert.True(t, m.MatchBase("pkg/a_test.py"))
	assert.True(t, m.MatchBase("pkg/a_tests.py"))
	assert.True(t, m.MatchBase("pkg/a_test.go"))
	assert.False(t, m.MatchBase("tests/helpers.py"))
	assert.False(t, m.MatchBase("test_dir/a.py"))
	assert.False(t, m.MatchBase("a.py"))
}

func TestCompileInvalid(t *testing.T) {
	t.Parallel()

	_, err := pathmatch.Compile([]string{"("})
	require.Error(t, err)

	assert.True(t, pathmatch.Matcher{}.Empty())
	assert.False(t, pathmatch.Matcher{}.Match("anything"))
}

func TestUnderAny(t *testing.T) {
	t.Parallel()

	assert.True(t, pathmatch.UnderAny("a/b.py", nil))
	assert.True(t, pathmatch.UnderAny("a/b.py", []string{"a"}))
	assert.True(t, pathmatch.UnderAny("a/b.py", []string{"./a/"}))
	assert.True(t, pathmatch.UnderAny("a/b.py", []string{"."}))
	assert.True(t, pathmatch.UnderAny("a/b.py", []string{"a/b.py"}))
	assert.False(t, pathmatch.UnderAny("ab/c.py", []string{"a"}))
	assert.False(t, pathmatch.UnderAny("c.py", []string{"a", "b"}))
}

func TestClean(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".", pathmatch.Clean(""))
	assert.Equal(t, ".", pathmatch.Clean("./"))
	assert.Equal(t, "a/b", pathmatch.Clean("./a//b/"))
}
