package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type row struct {
	id string
}

func TestPaginationSize(t *testing.T) {
	require.Equal(t, 100, Pagination{}.Size(100, 250))
	require.Equal(t, 250, Pagination{PageSize: 900}.Size(100, 250))
	require.Equal(t, 7, Pagination{PageSize: 7}.Size(100, 250))
}

func TestCursorTokenDecodes(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	token, err := EncodeCursor(NewCursor("42", at))
	require.NoError(t, err)

	cursor, err := Pagination{PageToken: token}.Decode()
	require.NoError(t, err)
	require.Equal(t, "42", cursor.ID)

	decoded, err := cursor.Time()
	require.NoError(t, err)
	require.True(t, decoded.Equal(at))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Pagination{PageToken: "%%%"}.Decode()
	require.ErrorIs(t, err, ErrInvalidPageToken)

	cursor, err := Pagination{}.Decode()
	require.NoError(t, err)
	require.Nil(t, cursor)
}

func TestBuildCursorPageInfo(t *testing.T) {
	rows := []*row{{id: "a"}, {id: "b"}, {id: "c"}}

	info := BuildCursorPageInfo(rows, 2, func(r *row) string { return r.id })
	require.True(t, info.HasMore)
	require.Equal(t, "b", info.NextPageToken)

	info = BuildCursorPageInfo(rows, 3, func(r *row) string { return r.id })
	require.False(t, info.HasMore)
	require.Empty(t, info.NextPageToken)
}
