package listing_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/nimbusfs/pkg/listing"
	"github.com/3leaps/nimbusfs/pkg/provider"
	"github.com/3leaps/nimbusfs/test/memstore"
)

func seed(t *testing.T, keys ...string) *memstore.Store {
	t.Helper()
	s := memstore.New()
	for _, k := range keys {
		_, err := s.Put(memstore.Object{Key: k, Data: []byte("x")})
		require.NoError(t, err)
	}
	return s
}

func paths(recs []provider.ObjectRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, string(r.Type)+":"+r.Path)
	}
	return out
}

var tree = []string{
	"docs/",
	"docs/a.txt",
	"docs/b.txt",
	"docs/img/",
	"docs/img/1.png",
	"docs/img/2.png",
	"docs/img/raw/3.cr2",
	"docs/notes/todo.md",
	"other.txt",
}

func TestList_NonRecursive(t *testing.T) {
	for _, strategy := range []listing.Strategy{listing.Flat, listing.Descend} {
		t.Run(strategy.String(), func(t *testing.T) {
			e := listing.New(seed(t, tree...).Lister(), listing.Options{Strategy: strategy, PageSize: 2})

			recs, err := e.List(context.Background(), "docs/", false)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{
				"file:docs/a.txt",
				"file:docs/b.txt",
				"dir:docs/img",
				"dir:docs/notes",
			}, paths(recs))
		})
	}
}

func TestList_RecursiveStrategiesAgree(t *testing.T) {
	want := []string{
		"file:docs/a.txt",
		"file:docs/b.txt",
		"dir:docs/img",
		"file:docs/img/1.png",
		"file:docs/img/2.png",
		"dir:docs/img/raw",
		"file:docs/img/raw/3.cr2",
		"dir:docs/notes",
		"file:docs/notes/todo.md",
	}

	for _, strategy := range []listing.Strategy{listing.Flat, listing.Descend} {
		for _, pageSize := range []int{1, 2, 1000} {
			t.Run(fmt.Sprintf("%s/page=%d", strategy, pageSize), func(t *testing.T) {
				e := listing.New(seed(t, tree...).Lister(), listing.Options{Strategy: strategy, PageSize: pageSize})

				recs, err := e.List(context.Background(), "docs/", true)
				require.NoError(t, err)
				assert.ElementsMatch(t, want, paths(recs))
				assert.Len(t, recs, len(want), "each entry exactly once")
			})
		}
	}
}

func TestList_Root(t *testing.T) {
	e := listing.New(seed(t, tree...).Lister(), listing.Options{})

	recs, err := e.List(context.Background(), "", false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dir:docs", "file:other.txt"}, paths(recs))
}

func TestList_ProviderOrder(t *testing.T) {
	e := listing.New(seed(t, "b", "a", "c").Lister(), listing.Options{PageSize: 1})

	recs, err := e.List(context.Background(), "", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"file:a", "file:b", "file:c"}, paths(recs))
}

func TestList_Strip(t *testing.T) {
	s := seed(t, "tenant/", "tenant/a.txt", "tenant/d/b.txt")
	e := listing.New(s.Lister(), listing.Options{
		Strip: func(key string) string { return key[len("tenant/"):] },
	})

	recs, err := e.List(context.Background(), "tenant/", true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"file:a.txt", "dir:d", "file:d/b.txt"}, paths(recs))
}

func TestList_PropagatesErrors(t *testing.T) {
	s := seed(t, tree...)
	boom := errors.New("boom")
	s.FailNext(memstore.OpList, boom)

	_, err := listing.New(s.Lister(), listing.Options{}).List(context.Background(), "docs/", false)
	assert.ErrorIs(t, err, boom)
}

func TestList_MaxDepth(t *testing.T) {
	s := seed(t, "a/b/c/d/e.txt")
	e := listing.New(s.Lister(), listing.Options{Strategy: listing.Descend, MaxDepth: 2})

	_, err := e.List(context.Background(), "", true)
	assert.ErrorIs(t, err, listing.ErrMaxDepth)

	e = listing.New(s.Lister(), listing.Options{Strategy: listing.Descend, MaxDepth: 4})
	recs, err := e.List(context.Background(), "", true)
	require.NoError(t, err)
	assert.Len(t, recs, 5)
}

func TestList_StalledMarker(t *testing.T) {
	l := listing.PageListerFunc(func(_ context.Context, req listing.Request) (*listing.Page, error) {
		return &listing.Page{
			Entries:    []provider.RawEntry{{Key: "a"}},
			NextMarker: "a",
			Truncated:  true,
		}, nil
	})

	_, err := listing.New(l, listing.Options{}).List(context.Background(), "", false)
	assert.ErrorIs(t, err, listing.ErrStalled)
}

func TestList_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := listing.New(seed(t, "a").Lister(), listing.Options{}).List(ctx, "", false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestList_RateLimit(t *testing.T) {
	s := seed(t, "a", "b", "c")
	e := listing.New(s.Lister(), listing.Options{PageSize: 1, RateLimit: 20})

	start := time.Now()
	_, err := e.List(context.Background(), "", true)
	require.NoError(t, err)

	// Burst of one, then two waits of 50ms.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, 3, s.Calls(memstore.OpList))
}

func TestKeys(t *testing.T) {
	for _, strategy := range []listing.Strategy{listing.Flat, listing.Descend} {
		t.Run(strategy.String(), func(t *testing.T) {
			e := listing.New(seed(t, tree...).Lister(), listing.Options{Strategy: strategy, PageSize: 3})

			keys, err := e.Keys(context.Background(), "docs/img/")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{
				"docs/img/",
				"docs/img/1.png",
				"docs/img/2.png",
				"docs/img/raw/3.cr2",
			}, keys)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	assert.Equal(t, listing.DefaultPageSize, listing.New(nil, listing.Options{}).PageSize())
	assert.Equal(t, listing.MaxPageSize, listing.New(nil, listing.Options{PageSize: 5000}).PageSize())
	assert.Equal(t, 7, listing.New(nil, listing.Options{PageSize: 7}).PageSize())
}
