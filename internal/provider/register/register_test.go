package register

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const people = `key_mlbam,key_bbref,key_fangraphs,name_last,name_first,mlb_played_first,mlb_played_last
665742,sotoju01,20123,Soto,Juan,2018,2025
,smithwi01,100,Smith,Will,1990.0,1995.0
669257,smithwi05,19197,Smith,Will,2019,2025
,,,Smith,Will,,
592518,martijd02,6184,Martinez,J. D.,2011,2024
660670,acunaro01,18401,Acuña,Ronald,2018,2025
,,,,,,
`

func load(t *testing.T) *Register {
	t.Helper()
	entries, err := Parse(strings.NewReader(people))
	require.NoError(t, err)
	return New(entries)
}

func TestParse(t *testing.T) {
	entries, err := Parse(strings.NewReader(people))
	require.NoError(t, err)
	require.Len(t, entries, 6, "row without a last name is skipped")

	assert.Equal(t, Entry{FangraphsID: 20123, BbrefID: "sotoju01", FirstName: "Juan", LastName: "Soto", FirstSeason: 2018, LastSeason: 2025}, entries[0])
	assert.Equal(t, 1990, entries[1].FirstSeason)
	assert.Equal(t, -1, entries[3].FangraphsID)
	assert.Zero(t, entries[3].FirstSeason)
}

func TestParse_MissingColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("name_last,name_first\nSoto,Juan\n"))
	assert.Error(t, err)
}

func TestLookupName_Exact(t *testing.T) {
	r := load(t)

	got, err := r.LookupName(context.Background(), "Smith", "Will", false)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = r.LookupName(context.Background(), "acuna", "RONALD", false)
	require.NoError(t, err)
	require.Len(t, got, 1, "diacritics and case are ignored")
	assert.Equal(t, 18401, got[0].FangraphsID)

	got, err = r.LookupName(context.Background(), "Martinez", "J. D.", false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "martijd02", got[0].BbrefID)
}

func TestLookupName_Fuzzy(t *testing.T) {
	r := load(t)

	got, err := r.LookupName(context.Background(), "Sotto", "Juan", false)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.LookupName(context.Background(), "Sotto", "Juan", true)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, 20123, got[0].FangraphsID)

	got, err = r.LookupName(context.Background(), "Zzyzx", "Qwerty", true)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestByFangraphsID(t *testing.T) {
	r := load(t)
	e, ok := r.ByFangraphsID(19197)
	require.True(t, ok)
	assert.Equal(t, "smithwi05", e.BbrefID)

	_, ok = r.ByFangraphsID(-1)
	assert.False(t, ok)
}

func TestLoad_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "people-1.csv"), []byte(people), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	r, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 6, r.Len())

	_, err = Load(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("abc", "abc"))
	assert.InDelta(t, 0.9, similarity("juan soto", "juan sotto"), 1e-9)
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}

func TestCareer(t *testing.T) {
	r := load(t)
	first, last, ok := r.Career(20123)
	require.True(t, ok)
	assert.Equal(t, [2]int{2018, 2025}, [2]int{first, last})

	_, _, ok = r.Career(404)
	assert.False(t, ok)
}
