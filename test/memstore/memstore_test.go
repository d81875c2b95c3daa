package memstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/nimbusfs/pkg/provider"
)

func seed(t *testing.T, s *Store, keys ...string) {
	t.Helper()
	for _, k := range keys {
		_, err := s.Put(Object{Key: k, Data: []byte(k)})
		require.NoError(t, err)
	}
}

func TestList_Delimiter(t *testing.T) {
	s := New()
	seed(t, s, "a.txt", "dir/", "dir/b.txt", "dir/sub/c.txt", "z.txt")

	res, err := s.List("", "/", "", 0)
	require.NoError(t, err)
	assert.False(t, res.Truncated)
	assert.Equal(t, []string{"dir/"}, res.CommonPrefixes)

	var keys []string
	for _, o := range res.Objects {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{"a.txt", "z.txt"}, keys)
}

func TestList_Pagination(t *testing.T) {
	s := New()
	seed(t, s, "p/1", "p/2", "p/3", "p/d/x", "p/d/y", "p/e/z")

	var (
		objects  []string
		prefixes []string
		marker   string
	)
	for {
		res, err := s.List("p/", "/", marker, 2)
		require.NoError(t, err)
		for _, o := range res.Objects {
			objects = append(objects, o.Key)
		}
		prefixes = append(prefixes, res.CommonPrefixes...)
		if !res.Truncated {
			break
		}
		marker = res.NextMarker
	}

	assert.Equal(t, []string{"p/1", "p/2", "p/3"}, objects)
	assert.Equal(t, []string{"p/d/", "p/e/"}, prefixes)
}

func TestFailNext(t *testing.T) {
	s := New()
	seed(t, s, "a")

	boom := errors.New("boom")
	s.FailNext(OpDelete, boom)

	assert.ErrorIs(t, s.Delete("a"), boom)
	require.NoError(t, s.Delete("a"))
	assert.Equal(t, 2, s.Calls(OpDelete))

	_, err := s.Get("a")
	assert.True(t, provider.IsNotFound(err))
}

func TestPut_ETagAndIsolation(t *testing.T) {
	s := New()
	data := []byte("hello")
	obj, err := s.Put(Object{Key: "k", Data: data})
	require.NoError(t, err)
	assert.Equal(t, `"5d41402abc4b2a76b9719d911017c592"`, obj.ETag)

	data[0] = 'j'
	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got.Data))
}
