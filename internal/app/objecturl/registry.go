// Package objecturl keeps in-memory audio selected for local preview and
// hands out "blob:" URLs for it until they are revoked.
package objecturl

import (
	"bytes"
	"io"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Scheme prefixes every URL the registry creates.
const Scheme = "blob:"

// ErrRevoked is returned when opening a URL that is unknown or was revoked.
var ErrRevoked = errors.New("object url revoked")

// Object is a registered upload.
type Object struct {
	Name string
	Data []byte
}

// Registry maps object URLs to uploaded data.
type Registry struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		objects: make(map[string]Object),
	}
}

// Create registers data and returns its URL.
func (r *Registry) Create(name string, data []byte) string {
	url := Scheme + uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects[url] = Object{Name: name, Data: data}
	return url
}

// Open returns a reader over the object behind url.
func (r *Registry) Open(url string) (io.ReadSeeker, Object, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, ok := r.objects[url]
	if !ok {
		return nil, Object{}, errors.Wrapf(ErrRevoked, "%s", url)
	}
	return bytes.NewReader(obj.Data), obj, nil
}

// Revoke releases url. Revoking an unknown URL is a no-op.
func (r *Registry) Revoke(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.objects[url]; !ok {
		return false
	}
	delete(r.objects, url)
	return true
}

// RevokeAll releases every URL and returns how many were released.
func (r *Registry) RevokeAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.objects)
	r.objects = make(map[string]Object)
	return n
}

// Len returns the number of live URLs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// IsObjectURL reports whether url was produced by a Registry.
func IsObjectURL(url string) bool {
	return strings.HasPrefix(url, Scheme)
}
