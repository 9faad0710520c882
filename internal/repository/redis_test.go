package repository

import (
	"testing"

	"evade-competitive/internal/realtime"

	"github.com/bmizerany/assert"
)

func TestPositionScorePreservesOrder(t *testing.T) {
	n := 4
	prev := PositionScore(0, n)
	assert.Equal(t, float64(4), prev)
	for i := 1; i < n; i++ {
		score := PositionScore(i, n)
		assert.Tf(t, score < prev, "position %d should score below position %d", i, i-1)
		prev = score
	}
	assert.Equal(t, float64(1), PositionScore(n-1, n))
}

func TestFeedChannelPerTable(t *testing.T) {
	assert.Equal(t, "realtime:messages", FeedChannel(realtime.TableMessages))
	assert.NotEqual(t, FeedChannel(realtime.TablePlayers), FeedChannel(realtime.TableSettings))
}

func TestPageEntriesKeepPositions(t *testing.T) {
	ids := []string{"p1", "p2", "p3"}
	results := []interface{}{
		`{"player_id":"p1","display_name":"alpha","score":90}`,
		nil,
		`{"player_id":"p3","display_name":"charlie","score":40}`,
	}

	entries := pageEntries(ids, results)
	assert.Equal(t, 3, len(entries))
	assert.Equal(t, CachedEntry{PlayerID: "p1", DisplayName: "alpha", Score: 90}, entries[0])
	assert.Equal(t, CachedEntry{PlayerID: "p2"}, entries[1])
	assert.Equal(t, "charlie", entries[2].DisplayName)

	// a short or garbled HMGET reply never shifts later ids
	entries = pageEntries(ids, []interface{}{"not json"})
	assert.Equal(t, []CachedEntry{{PlayerID: "p1"}, {PlayerID: "p2"}, {PlayerID: "p3"}}, entries)

	assert.Equal(t, 0, len(pageEntries(nil, nil)))
}
