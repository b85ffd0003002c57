package gitlib_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
)

func TestParseHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "lowercase", input: "0123456789abcdef0123456789abcdef01234567"},
		{name: "uppercase", input: "0123456789ABCDEF0123456789ABCDEF01234567"},
		{name: "short", input: "0123", wantErr: true},
		{name: "not hex", input: "zz23456789abcdef0123456789abcdef01234567", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			hash, err := gitlib.ParseHash(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, gitlib.ErrInvalidHash)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, gitlib.NewHash(tt.input), hash)
		})
	}
}

func TestHashStringAndShort(t *testing.T) {
	t.Parallel()

	hash := gitlib.NewHash("0123456789abcdef0123456789abcdef01234567")

	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", hash.String())
	assert.Equal(t, "0123456", hash.Short())
	assert.False(t, hash.IsZero())
	assert.True(t, gitlib.ZeroHash().IsZero())
}

func TestHashOidRoundTrip(t *testing.T) {
	t.Parallel()

	hash := gitlib.NewHash("ffffffffffffffffffffffffffffffffffffffff")

	assert.Equal(t, hash, gitlib.HashFromOid(hash.ToOid()))
}
