// Package memstore provides an in-memory object store with S3-style listing
// semantics. Provider SDK fakes in unit tests are built on top of it.
//
// Failures can be injected per operation with FailNext, which makes
// partial-failure behavior (for example a rename whose delete fails)
// testable without a live provider.
package memstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/3leaps/nimbusfs/pkg/listing"
	"github.com/3leaps/nimbusfs/pkg/provider"
)

// Operation names accepted by FailNext and Calls.
const (
	OpPut    = "put"
	OpGet    = "get"
	OpHead   = "head"
	OpCopy   = "copy"
	OpDelete = "delete"
	OpList   = "list"
	OpGetACL = "get-acl"
	OpSetACL = "set-acl"
)

// Object is a stored object.
type Object struct {
	Key         string
	Data        []byte
	ContentType string
	Metadata    map[string]string
	Modified    time.Time
	ETag        string
	Public      bool
	Encrypted   bool
}

// Size returns the content length.
func (o Object) Size() int64 {
	return int64(len(o.Data))
}

// ListResult is one page of a listing.
type ListResult struct {
	Objects        []Object
	CommonPrefixes []string
	NextMarker     string
	Truncated      bool
}

// Store is a concurrency-safe in-memory bucket.
type Store struct {
	mu       sync.Mutex
	objects  map[string]*Object
	failures map[string][]error
	calls    map[string]int
	now      func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		objects:  make(map[string]*Object),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
		now:      time.Now,
	}
}

// SetClock overrides the time source used for Modified.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailNext makes the next call of op return err.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// Calls returns how many times op was invoked.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// begin records a call and pops an injected failure. Callers hold s.mu.
func (s *Store) begin(op string) error {
	s.calls[op]++
	queue := s.failures[op]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	s.failures[op] = queue[1:]
	return err
}

// Put stores obj, filling Modified and ETag.
func (s *Store) Put(obj Object) (Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpPut); err != nil {
		return Object{}, err
	}

	sum := md5.Sum(obj.Data)
	obj.Data = append([]byte(nil), obj.Data...)
	obj.Modified = s.now().UTC().Truncate(time.Second)
	obj.ETag = `"` + hex.EncodeToString(sum[:]) + `"`
	s.objects[obj.Key] = &obj
	return clone(&obj), nil
}

// Get returns the object at key.
func (s *Store) Get(key string) (Object, error) {
	return s.lookup(OpGet, key)
}

// Head returns the object at key. It counts separately from Get.
func (s *Store) Head(key string) (Object, error) {
	return s.lookup(OpHead, key)
}

func (s *Store) lookup(op, key string) (Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(op); err != nil {
		return Object{}, err
	}
	obj, ok := s.objects[key]
	if !ok {
		return Object{}, provider.ErrNotFound
	}
	return clone(obj), nil
}

// Copy duplicates src to dst server-side.
func (s *Store) Copy(src, dst string) (Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpCopy); err != nil {
		return Object{}, err
	}
	obj, ok := s.objects[src]
	if !ok {
		return Object{}, provider.ErrNotFound
	}
	cp := clone(obj)
	cp.Key = dst
	cp.Modified = s.now().UTC().Truncate(time.Second)
	s.objects[dst] = &cp
	return clone(&cp), nil
}

// Delete removes key. Deleting a missing key succeeds, as in S3.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpDelete); err != nil {
		return err
	}
	delete(s.objects, key)
	return nil
}

// ACL reports whether key is publicly readable.
func (s *Store) ACL(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpGetACL); err != nil {
		return false, err
	}
	obj, ok := s.objects[key]
	if !ok {
		return false, provider.ErrNotFound
	}
	return obj.Public, nil
}

// SetACL sets the public flag of key.
func (s *Store) SetACL(key string, public bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpSetACL); err != nil {
		return err
	}
	obj, ok := s.objects[key]
	if !ok {
		return provider.ErrNotFound
	}
	obj.Public = public
	return nil
}

// Keys returns every key in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedKeys()
}

func (s *Store) sortedKeys() []string {
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// List returns one page of keys after marker under prefix. With a delimiter,
// keys containing it past the prefix roll up into common prefixes, each
// counted once toward maxKeys.
func (s *Store) List(prefix, delimiter, marker string, maxKeys int) (ListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(OpList); err != nil {
		return ListResult{}, err
	}
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	var (
		res  ListResult
		last string
		seen = make(map[string]struct{})
	)
	for _, key := range s.sortedKeys() {
		if !strings.HasPrefix(key, prefix) || key <= marker {
			continue
		}

		cp := ""
		if delimiter != "" {
			if i := strings.Index(key[len(prefix):], delimiter); i >= 0 {
				cp = key[:len(prefix)+i+len(delimiter)]
			}
		}
		if cp != "" {
			if _, dup := seen[cp]; dup || cp <= marker {
				continue
			}
		}

		if len(res.Objects)+len(res.CommonPrefixes) == maxKeys {
			res.Truncated = true
			res.NextMarker = last
			return res, nil
		}

		if cp != "" {
			seen[cp] = struct{}{}
			res.CommonPrefixes = append(res.CommonPrefixes, cp)
			last = cp
			continue
		}
		res.Objects = append(res.Objects, clone(s.objects[key]))
		last = key
	}
	return res, nil
}

// Lister exposes the store as a listing.PageLister.
func (s *Store) Lister() listing.PageLister {
	return listing.PageListerFunc(func(_ context.Context, req listing.Request) (*listing.Page, error) {
		res, err := s.List(req.Prefix, req.Delimiter, req.Marker, req.MaxKeys)
		if err != nil {
			return nil, err
		}
		page := &listing.Page{
			CommonPrefixes: res.CommonPrefixes,
			NextMarker:     res.NextMarker,
			Truncated:      res.Truncated,
		}
		for _, obj := range res.Objects {
			page.Entries = append(page.Entries, obj.RawEntry())
		}
		return page, nil
	})
}

// RawEntry converts the object to the normalizer staging shape.
func (o Object) RawEntry() provider.RawEntry {
	return provider.RawEntry{
		Key:          o.Key,
		Size:         provider.Int64(o.Size()),
		LastModified: o.Modified,
		ContentType:  o.ContentType,
		ETag:         o.ETag,
	}
}

func clone(o *Object) Object {
	cp := *o
	cp.Data = append([]byte(nil), o.Data...)
	if o.Metadata != nil {
		cp.Metadata = make(map[string]string, len(o.Metadata))
		for k, v := range o.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}
