package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/treestat/pkg/version"
)

func TestString(t *testing.T) {
	version.InitBinaryVersion()

	assert.Contains(t, version.String(), "treestat "+version.Version)
	assert.Contains(t, version.String(), "commit: "+version.Commit)
}
