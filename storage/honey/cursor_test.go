package honey

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/navijation/honeytable/storage/honeyerrors"
	"github.com/navijation/honeytable/storage/keyvaluepair"
	"github.com/navijation/honeytable/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_FindEntry(t *testing.T) {
	t.Parallel()

	for _, indexType := range allIndexTypes {
		t.Run(indexType.String(), func(t *testing.T) {
			t.Parallel()

			rng := rand.New(rand.NewSource(11))
			keys := randomKeys(rng, "bdfhjl", 1500)
			kvps := make([]keyvaluepair.KeyValuePair, len(keys))
			for i, key := range keys {
				kvps[i] = kv(key, fmt.Sprintf("value-%d", i))
			}
			table, _ := createTable(t, CreateArgs{
				IndexType:      util.Some(indexType),
				IndexBlockSize: util.Some(int64(64)),
			}, kvps...)

			cursor, err := table.Cursor()
			require.NoError(t, err)

			probes := append(randomKeys(rng, "abcdefghijklm", 1000), keys[:100]...)
			probes = append(probes, "a", "zz", keys[len(keys)-1])
			for _, probe := range probes {
				exact, err := cursor.FindEntry([]byte(probe))
				require.NoError(t, err)

				i, want := slices.BinarySearch(keys, probe)
				require.Equal(t, want, exact, "probe %q", probe)
				if i == len(keys) {
					require.True(t, cursor.AfterEnd(), "probe %q", probe)
					require.Nil(t, cursor.CurrentKey())
					continue
				}
				require.False(t, cursor.AfterEnd(), "probe %q", probe)
				require.Equal(t, keys[i], string(cursor.CurrentKey()), "probe %q", probe)

				require.NoError(t, cursor.ReadTag())
				require.Equal(t, fmt.Sprintf("value-%d", i), string(cursor.CurrentTag()))

				// iteration carries on from the found entry
				hasNext, err := cursor.Next()
				require.NoError(t, err)
				if i+1 < len(keys) {
					require.True(t, hasNext)
					require.Equal(t, keys[i+1], string(cursor.CurrentKey()))
				} else {
					require.False(t, hasNext)
				}
			}
		})
	}
}

func TestCursor_Iteration(t *testing.T) {
	t.Parallel()

	table, _ := createTable(t, CreateArgs{}, kv("a", "1"), kv("b", "2"), kv("c", "3"))

	cursor, err := table.Cursor()
	require.NoError(t, err)
	assert.Nil(t, cursor.CurrentKey())
	assert.False(t, cursor.AfterEnd())

	err = cursor.ReadTag()
	assert.ErrorIs(t, err, honeyerrors.ErrInvalidArgument, "not on an entry yet")

	collect := func() (out []string) {
		for {
			hasNext, err := cursor.Next()
			require.NoError(t, err)
			if !hasNext {
				return out
			}
			out = append(out, string(cursor.CurrentKey()))
		}
	}
	assert.Equal(t, []string{"a", "b", "c"}, collect())
	assert.True(t, cursor.AfterEnd())

	hasNext, err := cursor.Next()
	require.NoError(t, err)
	assert.False(t, hasNext, "stays after the end")

	cursor.Rewind()
	assert.False(t, cursor.AfterEnd())
	assert.Equal(t, []string{"a", "b", "c"}, collect())

	exact, err := cursor.FindEntry(nil)
	require.NoError(t, err)
	assert.False(t, exact)
	assert.Equal(t, "a", string(cursor.CurrentKey()))
}

func TestCursor_ReadTag(t *testing.T) {
	t.Parallel()

	table, _ := createTable(t, CreateArgs{}, kv("a", "1"), kv("b", "2"))

	cursor, err := table.Cursor()
	require.NoError(t, err)

	_, err = cursor.Next()
	require.NoError(t, err)
	require.NoError(t, cursor.ReadTag())
	require.NoError(t, cursor.ReadTag(), "reading twice is a no-op")
	assert.Equal(t, "1", string(cursor.CurrentTag()))

	_, _, err = cursor.ReadRawTag()
	assert.ErrorIs(t, err, honeyerrors.ErrInvalidArgument, "value already consumed")

	_, err = cursor.Next()
	require.NoError(t, err)
	assert.Nil(t, cursor.CurrentTag())
	raw, isCompressed, err := cursor.ReadRawTag()
	require.NoError(t, err)
	assert.False(t, isCompressed)
	assert.Equal(t, "2", string(raw))

	err = cursor.ReadTag()
	assert.ErrorIs(t, err, honeyerrors.ErrInvalidArgument, "value already read raw")
	assert.Nil(t, cursor.CurrentTag())

	// moving on clears the state
	cursor.Rewind()
	_, err = cursor.Next()
	require.NoError(t, err)
	require.NoError(t, cursor.ReadTag())
	assert.Equal(t, "1", string(cursor.CurrentTag()))
}

func TestCursor_Independent(t *testing.T) {
	t.Parallel()

	table, _ := createTable(t, CreateArgs{}, kv("a", "1"), kv("b", "2"), kv("c", "3"))

	first, err := table.Cursor()
	require.NoError(t, err)
	second, err := table.Cursor()
	require.NoError(t, err)

	_, err = first.FindEntry([]byte("c"))
	require.NoError(t, err)
	_, err = second.Next()
	require.NoError(t, err)

	// table lookups do not move the cursors either
	value, exists, err := table.GetExactEntry([]byte("b"))
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "2", string(value))

	assert.Equal(t, "c", string(first.CurrentKey()))
	assert.Equal(t, "a", string(second.CurrentKey()))

	_, err = second.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", string(second.CurrentKey()))
}
