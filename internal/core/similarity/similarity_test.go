package similarity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRatio(t *testing.T) {
	require.Equal(t, 100, Ratio("jane doe", "jane doe"))
	require.Equal(t, 100, Ratio("", ""))
	require.Equal(t, 0, Ratio("jane", ""))
	require.Equal(t, 0, Ratio("", "jane"))

	// partially overlapping strings land strictly between
	v := Ratio("jane doe", "jane roe")
	require.Greater(t, v, 50)
	require.Less(t, v, 100)
}

func TestTokenSetRatioOrderInsensitive(t *testing.T) {
	require.Equal(t, 100, TokenSetRatio("doe jane", "jane doe"))
	require.Equal(t, 100, TokenSetRatio("Jane DOE", "doe jane"))
}

func TestTokenSetRatioSubset(t *testing.T) {
	// one name extending the other still scores as a full subset match
	require.Equal(t, 100, TokenSetRatio("jane doe", "jane elizabeth doe"))
}

func TestTokenSetRatioDuplicateTokens(t *testing.T) {
	require.Equal(t, 100, TokenSetRatio("jane jane doe", "jane doe"))
}

func TestTokenSetRatioDisjoint(t *testing.T) {
	v := TokenSetRatio("jane doe", "boris volkov")
	require.Less(t, v, 40)
}

func TestTokenSetRatioEmpty(t *testing.T) {
	require.Equal(t, 100, TokenSetRatio("", ""))
	require.Equal(t, 0, TokenSetRatio("jane", ""))
}
