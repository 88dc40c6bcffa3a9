package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"absolute", "/data/out/./dim_date.csv", "/data/out/dim_date.csv", false},
		{"relative", "data/cleaned", filepath.Join(wd, "data/cleaned"), false},
		{"dots inside a name", "data/v1..v2.csv", filepath.Join(wd, "data/v1..v2.csv"), false},
		{"inner traversal collapses", "data/../out", filepath.Join(wd, "out"), false},
		{"leading traversal", "../secrets", "", true},
		{"only traversal", "..", "", true},
		{"empty", " ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanPath(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidatePath(t *testing.T) {
	base := t.TempDir()

	got, err := ValidatePath(filepath.Join(base, "out", "fact_ticket_sales.csv"), base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "out", "fact_ticket_sales.csv"), got)

	_, err = ValidatePath(base, base)
	assert.NoError(t, err)

	_, err = ValidatePath(base+"-sibling/file.csv", base)
	assert.Error(t, err, "a sibling sharing the prefix is outside")

	_, err = ValidatePath(filepath.Dir(base), base)
	assert.Error(t, err)
}

func TestJoinPath(t *testing.T) {
	base := t.TempDir()

	got, err := JoinPath(base, "credentials", "warehouse.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "credentials", "warehouse.json"), got)

	_, err = JoinPath(base, "..", "elsewhere")
	assert.Error(t, err)
}
