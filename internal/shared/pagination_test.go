package shared

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePageDefaultsAndClamping(t *testing.T) {
	p := ParsePage(url.Values{})
	require.Equal(t, Page{Page: 1, Limit: 20}, p)

	p = ParsePage(url.Values{"page": {"3"}, "limit": {"50"}})
	require.Equal(t, Page{Page: 3, Limit: 50}, p)
	require.Equal(t, 100, p.Offset())

	p = ParsePage(url.Values{"page": {"-1"}, "limit": {"9999"}})
	require.Equal(t, Page{Page: 1, Limit: 100}, p)
}

func TestHasMoreUsesTotalCount(t *testing.T) {
	// 45 rows, 20 per page: pages 1 and 2 have more, page 3 does not.
	require.True(t, NewListResponse(nil, Page{Page: 1, Limit: 20}, 45).HasMore)
	require.True(t, NewListResponse(nil, Page{Page: 2, Limit: 20}, 45).HasMore)
	require.False(t, NewListResponse(nil, Page{Page: 3, Limit: 20}, 45).HasMore)

	// A short last page must not report more even when it is full.
	require.False(t, NewListResponse(nil, Page{Page: 2, Limit: 20}, 40).HasMore)
}
