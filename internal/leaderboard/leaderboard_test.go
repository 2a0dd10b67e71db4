package leaderboard

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMirror(t *testing.T) (*Mirror, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	m, err := New(Config{URL: "redis://" + mr.Addr(), Prefix: "sr"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	return m, mr
}

func TestKey(t *testing.T) {
	assert.Equal(t, "speedrun:leaderboard:random", Key("speedrun:leaderboard", false))
	assert.Equal(t, "sr:set_seed", Key("sr", true))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Config{URL: "http://localhost:6379", Prefix: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}

func TestTopOrdersFastestFirst(t *testing.T) {
	m, _ := newTestMirror(t)
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, "slow", false, 900_000))
	require.NoError(t, m.Record(ctx, "fast", false, 300_000))
	require.NoError(t, m.Record(ctx, "mid", false, 600_000))
	require.NoError(t, m.Record(ctx, "other-board", true, 1))

	entries, err := m.Top(ctx, false, 10)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{RunID: "fast", DurationMS: 300_000, Rank: 1},
		{RunID: "mid", DurationMS: 600_000, Rank: 2},
		{RunID: "slow", DurationMS: 900_000, Rank: 3},
	}, entries)
}

func TestTopHonorsLimit(t *testing.T) {
	m, _ := newTestMirror(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, m.Record(ctx, id, true, int64(i+1)*1000))
	}

	entries, err := m.Top(ctx, true, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].RunID)
	assert.Equal(t, "b", entries[1].RunID)
	assert.Equal(t, int64(2), entries[1].Rank)
}

func TestRecordReplacesScore(t *testing.T) {
	m, mr := newTestMirror(t)
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, "r1", false, 5000))
	require.NoError(t, m.Record(ctx, "r2", false, 4000))
	require.NoError(t, m.Record(ctx, "r1", false, 3000))

	members, err := mr.ZMembers("sr:random")
	require.NoError(t, err)
	assert.Len(t, members, 2)

	entries, err := m.Top(ctx, false, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{RunID: "r1", DurationMS: 3000, Rank: 1}, entries[0])
}

func TestResetClearsBothBoards(t *testing.T) {
	m, mr := newTestMirror(t)
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, "r1", false, 1000))
	require.NoError(t, m.Record(ctx, "r2", true, 2000))
	require.NoError(t, m.Reset(ctx))

	assert.False(t, mr.Exists("sr:random"))
	assert.False(t, mr.Exists("sr:set_seed"))

	for _, setSeed := range []bool{false, true} {
		entries, err := m.Top(ctx, setSeed, 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestUnavailableRedis(t *testing.T) {
	m, mr := newTestMirror(t)
	mr.Close()

	_, err := m.Top(context.Background(), false, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read leaderboard")
}
