package chandb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herlein/godvb/pkg/frontend"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "channels.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func astra() Channel {
	return Channel{
		Name: "astra-11954",
		Properties: frontend.Properties{
			DeliverySystem: frontend.SysDVBS2,
			FrequencyHz:    1_204_000_000,
			SymbolRate:     27_500_000,
			StreamID:       frontend.NoStreamID,
		},
		SNR:        112,
		Strength:   0x9000,
		LastLocked: time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestPutGet(t *testing.T) {
	db := openTemp(t)
	ch := astra()
	require.NoError(t, db.Put(ch))

	got, err := db.Get(ch.Name)
	require.NoError(t, err)
	assert.Equal(t, ch.Properties, got.Properties)
	assert.Equal(t, ch.SNR, got.SNR)
	assert.Equal(t, ch.Strength, got.Strength)
	assert.True(t, ch.LastLocked.Equal(got.LastLocked))
}

func TestPutReplaces(t *testing.T) {
	db := openTemp(t)
	ch := astra()
	require.NoError(t, db.Put(ch))
	ch.SNR = 90
	require.NoError(t, db.Put(ch))

	list, err := db.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int32(90), list[0].SNR)
}

func TestListOrderedByName(t *testing.T) {
	db := openTemp(t)
	for _, name := range []string{"c", "a", "b"} {
		ch := astra()
		ch.Name = name
		require.NoError(t, db.Put(ch))
	}
	list, err := db.List()
	require.NoError(t, err)
	var names []string
	for _, ch := range list {
		names = append(names, ch.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}

func TestGetMissing(t *testing.T) {
	db := openTemp(t)
	_, err := db.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.Delete("nope"), ErrNotFound)
}

func TestDelete(t *testing.T) {
	db := openTemp(t)
	require.NoError(t, db.Put(astra()))
	require.NoError(t, db.Delete("astra-11954"))
	_, err := db.Get("astra-11954")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutRejectsInvalid(t *testing.T) {
	db := openTemp(t)
	ch := astra()
	ch.Name = ""
	assert.ErrorIs(t, db.Put(ch), ErrInvalidChannel)

	ch = astra()
	ch.Properties.SymbolRate = 0
	err := db.Put(ch)
	assert.ErrorIs(t, err, ErrInvalidChannel)
	assert.ErrorIs(t, err, frontend.ErrInvalidParameter)
}

func TestReopenKeepsChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channels.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Put(astra()))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	list, err := db.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDefaultName(t *testing.T) {
	p := astra().Properties
	assert.Equal(t, "DVB-S2-1204", DefaultName(p))

	p = frontend.Properties{DeliverySystem: frontend.SysDVBT2, FrequencyHz: 474_000_000, StreamID: 2}
	assert.Equal(t, "DVB-T2-474-2", DefaultName(p))
}
