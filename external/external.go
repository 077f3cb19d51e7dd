// Package external declares the narrow interfaces for out-of-scope
// collaborators: file storage, transactional email,
// GeoIP lookup, BBCode rendering, and plugin loading. Each has a single
// in-memory or no-op implementation sufficient to exercise the core engine;
// they are deliberately not developed further.
package external

import (
	"context"
	"sync"

	"github.com/aquareto/aquareto-server/common/message"
	"github.com/aquareto/aquareto-server/common/network"
)

// FileStorage abstracts local-disk vs. object-store backends behind a
// uniform get/put-by-key interface
type FileStorage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

// MemoryFileStorage is an in-memory stand-in sufficient for tests; a real
// deployment would back FileStorage with local disk or an object store.
type MemoryFileStorage struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemoryFileStorage() *MemoryFileStorage {
	return &MemoryFileStorage{files: make(map[string][]byte)}
}

func (s *MemoryFileStorage) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (s *MemoryFileStorage) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = data
	return nil
}

// Mailer abstracts SMTP delivery; SMTPMailer is the only real
// implementation and simply defers to common/message.
type Mailer interface {
	Send(ctx context.Context, subject, recipient, htmlBody string) error
}

type SMTPMailer struct{}

func (SMTPMailer) Send(ctx context.Context, subject, recipient, htmlBody string) error {
	return message.SendEmail(ctx, subject, recipient, htmlBody)
}

// GeoLookup resolves a client IP to a country code for registration and
// profile display.
type GeoLookup interface {
	CountryCode(ctx context.Context, ip string) string
}

// SubnetGeoLookup is a coarse stand-in that recognizes a configured set of
// private/local subnets as "XX" and otherwise reports unknown; a real
// deployment would plug in a MaxMind-style database here.
type SubnetGeoLookup struct{}

func (SubnetGeoLookup) CountryCode(ctx context.Context, ip string) string {
	if network.IsIpInSubnets(ctx, ip, "127.0.0.0/8,10.0.0.0/8,192.168.0.0/16,172.16.0.0/12") {
		return "XX"
	}
	return ""
}

// BBCodeRenderer turns a raw BBCode profile page into sanitized HTML.
type BBCodeRenderer interface {
	Render(raw string) string
}

// PlainBBCodeRenderer passes content through unescaped-newline-to-<br>
// conversion only; a production deployment would plug in a full BBCode
// parser here, which is explicitly out of scope
type PlainBBCodeRenderer struct{}

func (PlainBBCodeRenderer) Render(raw string) string {
	return raw
}

// PluginRegistry is a startup-time map of plugin id to the event handlers,
// HTTP routes, and calculator implementation it contributes, per Design
// Notes' "plugin hot-loading" guidance. Runtime reload is not part of the
// core and is not implemented here.
type PluginRegistry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

type Plugin struct {
	Id   string
	Name string
}

func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{plugins: make(map[string]Plugin)}
}

func (r *PluginRegistry) Register(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Id] = p
}

func (r *PluginRegistry) Get(id string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[id]
	return p, ok
}

var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "not found" }
