package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openReader(t *testing.T) *DuckDB {
	t.Helper()
	db, err := Open(context.Background(), "")
	require.NoError(t, err, "failed to open in-memory DuckDB")
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFormatForExt(t *testing.T) {
	tests := []struct {
		ext  string
		want Format
		ok   bool
	}{
		{".parquet", FormatParquet, true},
		{".CSV", FormatCSV, true},
		{".jsonl", FormatJSON, true},
		{".txt", "", false},
	}
	for _, tt := range tests {
		got, ok := FormatForExt(tt.ext)
		assert.Equal(t, tt.ok, ok, tt.ext)
		assert.Equal(t, tt.want, got, tt.ext)
	}
}

func TestDuckDB_ReadCSV(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(a, []byte("id,text\n1,hello\n2,world\n"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("id,text,lang\n3,hola,es\n"), 0o600))

	tbl, err := openReader(t).Read(context.Background(), FormatCSV, []string{a, b})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "text", "lang"}, tbl.Columns())
	assert.Equal(t, 3, tbl.NumRows())

	v, _ := tbl.Value(0, "id")
	assert.Equal(t, int64(1), v)
	v, _ = tbl.Value(2, "lang")
	assert.Equal(t, "es", v)
	v, _ = tbl.Value(0, "lang")
	assert.Nil(t, v)
}

func TestDuckDB_ReadParquet(t *testing.T) {
	ctx := context.Background()
	db := openReader(t)
	path := filepath.Join(t.TempDir(), "data.parquet")

	require.NoError(t, db.Exec(ctx, "COPY (SELECT 1::BIGINT AS id, 'a' AS text, 0.5::DOUBLE AS score) TO '"+path+"' (FORMAT PARQUET)"))

	tbl, err := db.Read(ctx, FormatParquet, []string{path})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "text", "score"}, tbl.Columns())
	assert.Equal(t, []any{int64(1), "a", 0.5}, tbl.Row(0))
}

func TestDuckDB_ReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"text":"a","n":1}`+"\n"+`{"text":"b","n":2}`+"\n"), 0o600))

	tbl, err := openReader(t).Read(context.Background(), FormatJSON, []string{path})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.NumRows())
	v, _ := tbl.Value(1, "text")
	assert.Equal(t, "b", v)
}

func TestDuckDB_ReadErrors(t *testing.T) {
	db := openReader(t)
	_, err := db.Read(context.Background(), FormatCSV, nil)
	assert.Error(t, err)

	_, err = db.Read(context.Background(), Format("xml"), []string{"x.xml"})
	assert.Error(t, err)

	_, err = db.Read(context.Background(), FormatParquet, []string{filepath.Join(t.TempDir(), "missing.parquet")})
	assert.Error(t, err)
}
