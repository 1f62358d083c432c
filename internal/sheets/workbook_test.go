package sheets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/digest/internal/models"
)

func TestWorkbook_missingFileHasNoIDs(t *testing.T) {
	w := NewWorkbook(filepath.Join(t.TempDir(), "digest.xlsx"), "")
	ids, err := w.KnownIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestWorkbook_WriteEntriesAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "digest.xlsx")
	w := NewWorkbook(path, "Digest")
	ctx := context.Background()

	n, err := w.WriteEntries(ctx, []models.Entry{testEntry("a")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = w.WriteEntries(ctx, []models.Entry{testEntry("b"), testEntry("c")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids, err := w.KnownIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Digest")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, models.Headers, rows[0])
	assert.Equal(t, "The dragon awoke.", rows[1][3])
}

func TestWorkbook_WriteEntriesSkipsPresentIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "digest.xlsx")
	w := NewWorkbook(path, "")
	ctx := context.Background()

	n, err := w.WriteEntries(ctx, []models.Entry{testEntry("a"), testEntry("b")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = w.WriteEntries(ctx, []models.Entry{testEntry("b"), testEntry("c"), testEntry("c")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = w.WriteEntries(ctx, []models.Entry{testEntry("a")})
	require.NoError(t, err)
	assert.Zero(t, n)

	ids, err := w.KnownIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestWorkbook_addsSheetToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "keep me"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	w := NewWorkbook(path, "Digest")
	_, err := w.WriteEntries(context.Background(), []models.Entry{testEntry("a")})
	require.NoError(t, err)

	f, err = excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Sheet1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "keep me", v)
	id, err := f.GetCellValue("Digest", "H2")
	require.NoError(t, err)
	assert.Equal(t, "a", id)
}
