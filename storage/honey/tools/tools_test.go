package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/navijation/honeytable/storage/honey"
	"github.com/navijation/honeytable/storage/keyvaluepair"
	testing_util "github.com/navijation/honeytable/util/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, honey.DefaultCompressMin, cfg.Table.CompressMin)
	assert.Equal(t, "array", cfg.Table.IndexType)
	assert.Equal(t, honey.DefaultIndexBlockSize, cfg.Table.IndexBlockSize)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.True(t, cfg.Log.Console)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := testing_util.MkdirTemp(t, "TestLoadConfig")
	path := filepath.Join(dir, "honey.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"table:\n"+
			"  index_type: skiplist\n"+
			"  index_block_size: 512\n"+
			"log:\n"+
			"  level: debug\n",
	), 0o644))

	t.Setenv("HONEY_TABLE_COMPRESS_MIN", "64")
	t.Setenv("HONEY_TABLE_INDEX_BLOCK_SIZE", "2048")

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(64), cfg.Table.CompressMin)
	assert.Equal(t, "skiplist", cfg.Table.IndexType)
	assert.Equal(t, int64(2048), cfg.Table.IndexBlockSize, "environment wins over the file")
	assert.Equal(t, "debug", cfg.Log.Level)

	_, err = loadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestReadEntries(t *testing.T) {
	t.Parallel()

	input := "a: apple\n" +
		"\n" +
		"not an entry\n" +
		"b:   banana split  \n" +
		"c:\n" +
		"d: key: value\n"

	var readErr error
	var got []keyvaluepair.KeyValuePair
	for kvp := range readEntries(strings.NewReader(input), &readErr) {
		got = append(got, kvp)
	}
	require.NoError(t, readErr)

	assert.Equal(t, []keyvaluepair.KeyValuePair{
		{Key: []byte("a"), Value: []byte("apple")},
		{Key: []byte("b"), Value: []byte("banana split")},
		{Key: []byte("c"), Value: []byte("")},
		{Key: []byte("d"), Value: []byte("key: value")},
	}, got)
}

func TestCommitTable_RootFile(t *testing.T) {
	t.Parallel()

	path := testing_util.TempPath(t, "table.hny")
	table, err := honey.Create(honey.CreateArgs{Path: path})
	require.NoError(t, err)
	defer table.Close(false)

	require.NoError(t, table.Add([]byte("a"), []byte("apple"), false))
	root, err := commitTable(table)
	require.NoError(t, err)

	stored, err := readRoot(path)
	require.NoError(t, err)
	assert.Equal(t, root, stored)

	reopened, err := openTable(path)
	require.NoError(t, err)
	defer reopened.Close(false)

	value, exists, err := reopened.GetExactEntry([]byte("a"))
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "apple", string(value))

	_, err = openTable(path + ".missing")
	assert.Error(t, err)
}
