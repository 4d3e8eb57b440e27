package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"dhis2dupes/internal/users"
)

func sampleRoster() []users.Classified {
	return users.Classify([]users.Record{
		{
			ID: "u1", Username: "adoe", Name: users.StringPtr("Ann Doe"), Email: "ann@example.org",
			OrganisationUnits: []users.OrgUnitRef{{ID: "OU1", Name: "Clinic A"}},
			Roles:             []string{"Data entry", "Viewer"},
		},
		{ID: "u2", Username: "bsmith", Name: users.StringPtr("Bob Smith"), OrganisationUnits: []users.OrgUnitRef{{ID: "OU2"}}},
		{ID: "u3", Username: "adoe2", Name: users.StringPtr("Ann Doe")},
		{ID: "u4", Username: "ghost"},
	})
}

func TestHeaderOptionalColumns(t *testing.T) {
	assert.Equal(t, []string{"ID", "Username", "Name", "Duplicate"}, Header(Options{}))
	assert.Equal(t,
		[]string{"ID", "Username", "Name", "Email", "Organisation units", "Roles", "Duplicate"},
		Header(Options{IncludeEmail: true, IncludeOrgUnits: true, IncludeRoles: true}),
	)
}

func TestLabelsFor(t *testing.T) {
	assert.Equal(t, "Yes", LabelsFor("en").Yes)
	assert.Equal(t, "Oui", LabelsFor("fr").Yes)
	assert.Equal(t, "Non", LabelsFor("fr-CA").No)
	assert.Equal(t, "Yes", LabelsFor("").Yes)
	assert.Equal(t, "Yes", LabelsFor("not a tag!!").Yes)
}

func TestRowRendering(t *testing.T) {
	roster := sampleRoster()
	opts := Options{IncludeEmail: true, IncludeOrgUnits: true, IncludeRoles: true}

	assert.Equal(t, []string{"u1", "adoe", "Ann Doe", "ann@example.org", "Clinic A", "Data entry, Viewer", "Yes"}, Row(roster[0], opts))
	// Unnamed embedded unit renders as its id.
	assert.Equal(t, []string{"u2", "bsmith", "Bob Smith", "", "OU2", "", "No"}, Row(roster[1], opts))
	// Missing name is an empty cell.
	assert.Equal(t, "", Row(roster[3], opts)[2])

	roster[0].OrgUnitLabel = "Clinic A (OU1)"
	assert.Equal(t, "Clinic A (OU1)", Row(roster[0], opts)[4])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRoster(), Options{Language: "fr"}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, []string{"Identifiant", "Nom d'utilisateur", "Nom", "Doublon"}, records[0])
	assert.Equal(t, []string{"u1", "adoe", "Ann Doe", "Oui"}, records[1])
	assert.Equal(t, []string{"u4", "ghost", "", "Non"}, records[4])
}

func TestWriteCSVNeutralizesFormulaCells(t *testing.T) {
	roster := users.Classify([]users.Record{
		{ID: "u1", Username: "eve", Name: users.StringPtr("=HYPERLINK(\"http://x\")"), Email: "@evil"},
		{ID: "u2", Username: "-dash", Name: users.StringPtr("+1 Ann")},
		{ID: "u3", Username: "plain", Name: users.StringPtr("Ann - Doe")},
	})
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, roster, Options{IncludeEmail: true}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"u1", "eve", "'=HYPERLINK(\"http://x\")", "'@evil", "No"}, records[1])
	assert.Equal(t, []string{"u2", "'-dash", "'+1 Ann", "", "No"}, records[2])
	assert.Equal(t, []string{"u3", "plain", "Ann - Doe", "", "No"}, records[3])
}

func TestWriteCSVByteOrderMark(t *testing.T) {
	var plain, marked bytes.Buffer
	require.NoError(t, WriteCSV(&plain, sampleRoster(), Options{}))
	require.NoError(t, WriteCSV(&marked, sampleRoster(), Options{ByteOrderMark: true}))

	assert.False(t, bytes.HasPrefix(plain.Bytes(), []byte("\xef\xbb\xbf")))
	require.True(t, bytes.HasPrefix(marked.Bytes(), []byte("\xef\xbb\xbf")))
	assert.Equal(t, plain.Bytes(), marked.Bytes()[3:])
}

func TestWriteCSVEmptyRosterWritesHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, Options{}))
	assert.Equal(t, "ID,Username,Name,Duplicate\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	opts := Options{IncludeOrgUnits: true}
	require.NoError(t, WriteXLSX(&buf, Sheets(sampleRoster(), opts), opts))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Users", "Duplicates"}, f.GetSheetList())

	rows, err := f.GetRows("Users")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"ID", "Username", "Name", "Organisation units", "Duplicate"}, rows[0])

	dups, err := f.GetRows("Duplicates")
	require.NoError(t, err)
	require.Len(t, dups, 3)
	assert.Equal(t, "u1", dups[1][0])
	assert.Equal(t, "u3", dups[2][0])

	panes, err := f.GetPanes("Users")
	require.NoError(t, err)
	assert.True(t, panes.Freeze)
	assert.Equal(t, 1, panes.YSplit)
}

func TestWriteXLSXRequiresSheets(t *testing.T) {
	require.Error(t, WriteXLSX(&bytes.Buffer{}, nil, Options{}))
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	written, err := WriteFiles(context.Background(), dir, "roster", []string{"csv", "xlsx"}, sampleRoster(), Options{})
	require.NoError(t, err)
	assert.Equal(t, Paths(dir, "roster", []string{"csv", "xlsx"}), written)

	for _, path := range written {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}

	data, err := os.ReadFile(filepath.Join(dir, "roster_duplicates.csv"))
	require.NoError(t, err)
	assert.Equal(t, "ID,Username,Name,Duplicate\nu1,adoe,Ann Doe,Yes\nu3,adoe2,Ann Doe,Yes\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".roster", "temp file left behind")
	}
}

func TestWriteFilesRejectsUnknownFormat(t *testing.T) {
	_, err := WriteFiles(context.Background(), t.TempDir(), "roster", []string{"pdf"}, sampleRoster(), Options{})
	require.Error(t, err)
}
