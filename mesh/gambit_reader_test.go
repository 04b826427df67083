package mesh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gambitSquare = `        CONTROL INFO 2.4.6
** GAMBIT NEUTRAL FILE
square
PROGRAM:                Gambit     VERSION:  2.4.6
Jan 2020
     NUMNP     NELEM     NGRPS    NBSETS     NDFCD     NDFVL
         4         2         1         0         2         2
ENDOFSECTION
   NODAL COORDINATES 2.4.6
         1   0.0000000000e+00   0.0000000000e+00
         2   1.0000000000e+00   0.0000000000e+00
         3   1.0000000000e+00   1.0000000000e+00
         4   0.0000000000e+00   1.0000000000e+00
ENDOFSECTION
      ELEMENTS/CELLS 2.4.6
         1  3  3        1       2       3
         2  3  3        1       3       4
ENDOFSECTION
       ELEMENT GROUP 2.4.6
GROUP:           7 ELEMENTS:          2 MATERIAL:          2 NFLAGS:          1
                           fluid
       0
       1       2
ENDOFSECTION
`

func TestParseGambit(t *testing.T) {
	m, err := ParseGambit(strings.NewReader(gambitSquare))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Dim)
	assert.Equal(t, 4, m.NumVertices)
	assert.Equal(t, [][]int{{0, 1, 2}, {0, 2, 3}}, m.Elements)
	assert.Equal(t, []int{7, 7}, m.ElementTags)
	assert.Equal(t, []float64{1, 1}, m.Vertices[2])
	assert.Equal(t, 1, m.EToE[0][2])

	bl, err := NewBinLocator(m)
	require.NoError(t, err)
	el, found := bl.Find([]float64{0.2, 0.7})
	require.True(t, found)
	assert.Equal(t, 1, el.Index)
}

func TestParseGambitErrors(t *testing.T) {
	replace := func(old, new string) string { return strings.Replace(gambitSquare, old, new, 1) }
	for name, text := range map[string]string{
		"truncated":    gambitSquare[:strings.Index(gambitSquare, "         2  3  3")],
		"dimension":    replace("0         2         2", "0         4         4"),
		"node id":      replace("         4   0.0", "         9   0.0"),
		"element type": replace("1  3  3        1", "1  2  4        1"),
		"node ref":     replace("1       3       4", "1       3       5"),
		"group ref":    replace("       1       2\nEND", "       1       3\nEND"),
		"empty":        "",
	} {
		_, err := ParseGambit(strings.NewReader(text))
		assert.Error(t, err, name)
	}
	_, err := ParseGambit(strings.NewReader(strings.Replace(gambitSquare,
		"1  3  3        1", "1  4  8        1", 1)))
	assert.ErrorIs(t, err, ErrUnsupportedElement)
}

func TestReadMeshFileGambit(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "square.neu")
	require.NoError(t, os.WriteFile(fname, []byte(gambitSquare), 0o644))
	m, err := ReadMeshFile(fname)
	require.NoError(t, err)
	assert.Equal(t, 2, m.NumElements)
}
