package docstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akinalp/runeshop/pkg"
)

func TestApplyFields_Sentinels(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 8, time.UTC)
	target := map[string]any{"count": json.Number("2")}

	err := applyFields(target, Fields{
		"count":   Increment(3),
		"fresh":   Increment(1),
		"stamp":   ServerTimestamp,
		"when":    now.Add(time.Hour),
		"missing": (*time.Time)(nil),
		"text":    "hi",
	}, now)
	require.NoError(t, err)

	assert.Equal(t, int64(5), target["count"])
	assert.Equal(t, int64(1), target["fresh"])
	assert.Equal(t, "2026-03-04T05:06:07.000000008Z", target["stamp"])
	assert.Equal(t, "2026-03-04T06:06:07.000000008Z", target["when"])
	assert.Nil(t, target["missing"])
	assert.Equal(t, "hi", target["text"])
}

func TestApplyFields_IncrementNonNumber(t *testing.T) {
	target := map[string]any{"name": "x"}
	err := applyFields(target, Fields{"name": Increment(1)}, time.Now())
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}

func TestSplitDocPath(t *testing.T) {
	col, id, err := splitDocPath("chats/a/messages/b")
	require.NoError(t, err)
	assert.Equal(t, "chats/a/messages", col)
	assert.Equal(t, "b", id)

	_, _, err = splitDocPath("chats/a/messages")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, _, err = splitDocPath("")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestSelectQuery_Dialects(t *testing.T) {
	q := Query{
		Collection: "chats",
		Filters:    []Filter{Where("userId", "u1"), Where("isGuest", true)},
		OrderBy:    "updatedAt",
		Direction:  Desc,
		Limit:      10,
	}

	sqlText, args, err := dialect{driver: "sqlite"}.selectQuery(q)
	require.NoError(t, err)
	assert.Contains(t, sqlText, "json_extract(data, '$.userId') = ?")
	assert.Contains(t, sqlText, "ORDER BY (json_extract(data, '$.updatedAt') IS NULL) ASC, json_extract(data, '$.updatedAt') DESC, seq ASC LIMIT ?")
	assert.Equal(t, []any{"chats", "u1", 1, 10}, args)

	sqlText, args, err = dialect{driver: "pgx"}.selectQuery(q)
	require.NoError(t, err)
	assert.Contains(t, sqlText, "(data::jsonb ->> 'isGuest') = ?")
	assert.Contains(t, sqlText, "ORDER BY ((data::jsonb ->> 'updatedAt') IS NULL) ASC, (data::jsonb -> 'updatedAt') DESC, seq ASC")
	assert.Equal(t, []any{"chats", "u1", "true", 10}, args)
}

func TestSelectQuery_MissingFieldRanksLowest(t *testing.T) {
	for _, driver := range []string{"sqlite", "pgx"} {
		d := dialect{driver: driver}
		missing := "(" + d.field("timestamp") + " IS NULL)"

		asc, _, err := d.selectQuery(Query{Collection: "messages", OrderBy: "timestamp"})
		require.NoError(t, err)
		assert.Contains(t, asc, "ORDER BY "+missing+" DESC, "+d.orderField("timestamp")+" ASC, seq ASC", driver)

		desc, _, err := d.selectQuery(Query{Collection: "messages", OrderBy: "timestamp", Direction: Desc})
		require.NoError(t, err)
		assert.Contains(t, desc, "ORDER BY "+missing+" ASC, "+d.orderField("timestamp")+" DESC, seq ASC", driver)
	}
}

func TestSelectQuery_UnsupportedValue(t *testing.T) {
	_, _, err := dialect{driver: "sqlite"}.selectQuery(Query{
		Collection: "chats",
		Filters:    []Filter{Where("x", []int{1})},
	})
	assert.ErrorIs(t, err, pkg.ErrBadRequest)
}
