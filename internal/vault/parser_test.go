package vault

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleExport = `{
  "encrypted": false,
  "folders": [{"id": "f1", "name": "Work"}],
  "items": [
    {"id": "a1b2c3d4e5f6", "name": "GitHub", "type": 1, "folderId": "f1", "favorite": true,
     "login": {"uris": [{"uri": "https://github.com/login", "match": null}], "username": "octo", "password": "Sup3r$ecretPass", "totp": "JBSWY3DPEHPK3PXP"},
     "revisionDate": "2024-01-02T03:04:05.000Z", "creationDate": "2023-01-02T03:04:05.000Z"},
    {"id": "nullname01", "name": null, "login": {"password": null}},
    {"id": "noname0001"},
    {"name": "missing id"},
    42,
    "string item",
    null
  ]
}`

func TestParse(t *testing.T) {
	export, err := Parse([]byte(sampleExport))
	require.NoError(t, err)

	require.Len(t, export.Folders, 1)
	assert.Equal(t, "Work", export.Folders[0].Name)

	// non-objects are dropped while decoding, objects are kept for the analyzer to filter
	assert.Equal(t, 3, export.InvalidItems)
	require.Len(t, export.Items, 4)

	gh := export.Items[0]
	assert.True(t, gh.Valid())
	assert.Equal(t, "GitHub", gh.DisplayName())
	assert.Equal(t, "Sup3r$ecretPass", gh.Password())
	assert.Equal(t, "octo", gh.Username())
	assert.Equal(t, "https://github.com/login", gh.PrimaryURI())
	assert.True(t, gh.Favorite)
	require.NotNil(t, gh.FolderID)
	assert.Equal(t, "f1", *gh.FolderID)

	assert.True(t, export.Items[1].Valid(), "null name is still a defined name")
	assert.Nil(t, export.Items[1].Name)
	assert.False(t, export.Items[2].Valid(), "absent name")
	assert.False(t, export.Items[3].Valid(), "absent id")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "   \n", ErrEmptyContent},
		{"array", `[{"id":"x","name":"y"}]`, ErrNotObject},
		{"scalar", `"hello"`, ErrNotObject},
		{"broken json", `{"items": [`, ErrMalformedJSON},
		{"encrypted", `{"encrypted": true, "items": [{"id":"x","name":"y"}]}`, ErrEncryptedExport},
		{"password protected", `{"encrypted": true, "passwordProtected": true, "data": "..."}`, ErrEncryptedExport},
		{"items missing", `{"encrypted": false}`, ErrItemsNotArray},
		{"items object", `{"items": {"id": "x"}}`, ErrItemsNotArray},
		{"items null", `{"items": null}`, ErrItemsNotArray},
		{"no valid items", `{"items": [{"id": "x"}, {"name": "y"}, 5]}`, ErrNoValidItems},
		{"empty items", `{"items": []}`, ErrNoValidItems},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseRejectsInvalidUTF8(t *testing.T) {
	_, err := Parse([]byte{0xff, 0xfe, '{', '}'})
	assert.ErrorIs(t, err, ErrNotUTF8)
}

func TestParseDefaultsFolders(t *testing.T) {
	for _, in := range []string{
		`{"items": [{"id": "x", "name": "y"}]}`,
		`{"folders": null, "items": [{"id": "x", "name": "y"}]}`,
		`{"folders": "nope", "items": [{"id": "x", "name": "y"}]}`,
	} {
		export, err := Parse([]byte(in))
		require.NoError(t, err)
		assert.NotNil(t, export.Folders)
		assert.Empty(t, export.Folders)
	}
}

func TestParseStripsBOM(t *testing.T) {
	export, err := Parse([]byte("\ufeff" + `{"items": [{"id": "x", "name": "y"}]}`))
	require.NoError(t, err)
	assert.Len(t, export.Items, 1)
}

func TestRepairTruncatedExport(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"placeholder then bracket", `{"encrypted": false, "items": [{"id": "x", "name": "y"}, {...}]`},
		{"placeholder only", `{"encrypted": false, "items": [{"id": "x", "name": "y"}, {...}`},
		{"placeholder with spaces", "{\"items\": [{\"id\": \"x\", \"name\": \"y\"},\n  {...}\n]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repaired := Repair(tt.in)
			assert.True(t, json.Valid([]byte(repaired)), repaired)

			export, err := Parse([]byte(tt.in))
			require.NoError(t, err)
			require.Len(t, export.Items, 1)
			assert.Equal(t, "x", export.Items[0].ID)
		})
	}
}

func TestRepairLeavesBracesInStrings(t *testing.T) {
	in := `{"items": [{"id": "x", "name": "a { b"}]}`
	assert.Equal(t, in, closeOpenContainers(in))
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "export.JSON")
	require.NoError(t, os.WriteFile(good, []byte(sampleExport), 0o600))
	export, err := ParseFile(good)
	require.NoError(t, err)
	assert.Len(t, export.Items, 4)

	bad := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(bad, []byte(sampleExport), 0o600))
	_, err = ParseFile(bad)
	assert.ErrorIs(t, err, ErrInvalidExtension)

	_, err = ParseFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestParseNamed(t *testing.T) {
	_, err := ParseNamed("vault.txt", []byte(sampleExport))
	assert.ErrorIs(t, err, ErrInvalidExtension)

	export, err := ParseNamed("", []byte(sampleExport))
	require.NoError(t, err)
	assert.Len(t, export.Items, 4)
}
