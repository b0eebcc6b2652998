package watchlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sanctionsCSV = `id,schema,name,aliases,birth_date,countries,program_ids,dataset,sanctions,position,topics
uk1,Person,Boris Volkov,B. Volkov|Volkov Boris,1962-03-04,ru,GB-HMT,gb_hmt_sanctions,Asset freeze,,sanction
us1,Organization,Shadow Trading LLC,,,pa,US-OFAC,us_ofac_sdn,SDN listing,,sanction
,Person,,,,,,,,,
`

const pepsCSV = `id,schema,name,aliases,birth_date,position,dataset
p1,Person,Maria Diaz,M. Diaz,1975,Minister of Finance,peps
`

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadTwoFiles(t *testing.T) {
	snap, err := Load(
		File{Path: writeTemp(t, "sanctions.csv", sanctionsCSV), SourceType: SourceSanctions},
		File{Path: writeTemp(t, "peps.csv", pepsCSV), SourceType: SourcePEP},
	)
	require.NoError(t, err)

	require.Len(t, snap.Sanctions(), 2)
	require.Len(t, snap.PEPs(), 1)

	boris := snap.Sanctions()[0]
	require.Equal(t, "uk1", boris.ID)
	require.Equal(t, []string{"B. Volkov", "Volkov Boris"}, boris.Aliases)
	require.Equal(t, "1962-03-04", boris.BirthDate)

	// year-only birth dates survive normalization
	require.Equal(t, "1975", snap.PEPs()[0].BirthDate)

	// only the GB-HMT row is UK-scoped
	require.Equal(t, 1, snap.UKRowCount())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(File{Path: filepath.Join(t.TempDir(), "absent.csv"), SourceType: SourceSanctions})
	require.Error(t, err)
}

func TestLoadSourceTypeColumnOverride(t *testing.T) {
	combined := `id,schema,name,source_type
a1,Person,Alpha One,sanctions
a2,Person,Alpha Two,peps
`
	snap, err := Load(File{Path: writeTemp(t, "combined.csv", combined), SourceType: SourceSanctions})
	require.NoError(t, err)
	require.Len(t, snap.Sanctions(), 1)
	require.Len(t, snap.PEPs(), 1)
}
