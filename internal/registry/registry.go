// Package registry recognizes game servers by their packet source
// address and gates the pipeline on registration.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hlstatsd/hlstatsd/internal/models"
	"github.com/hlstatsd/hlstatsd/internal/store"
)

// ErrUnknownServer is returned for packets from unregistered sources
// when auto-registration is disabled.
var ErrUnknownServer = errors.New("registry: unknown server")

// ServerStore is the slice of the server service the registry needs.
type ServerStore interface {
	FindByAddress(ctx context.Context, address string, port int32) (*models.Server, bool, error)
	Create(ctx context.Context, address string, port int32, name, game string) (*models.Server, error)
}

// Registry resolves (ip, port) to a registered server. Resolutions are
// cached for the process lifetime; concurrent misses for the same
// source share one storage round trip.
type Registry struct {
	servers     ServerStore
	logger      *zap.SugaredLogger
	skipAuth    bool
	defaultGame string

	mu    sync.RWMutex
	cache map[string]*models.Server

	group singleflight.Group
}

// New builds a registry. With skipAuth set, unknown sources are
// auto-registered with defaultGame on first sight.
func New(servers ServerStore, skipAuth bool, defaultGame string, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		servers:     servers,
		logger:      logger,
		skipAuth:    skipAuth,
		defaultGame: defaultGame,
		cache:       make(map[string]*models.Server),
	}
}

// Resolve maps a source address to its server row. firstContact is
// true exactly once per source, on the resolution that was not served
// from the cache; in prod mode the caller drops that first packet.
func (r *Registry) Resolve(ctx context.Context, ip string, port int32) (srv *models.Server, firstContact bool, err error) {
	key := models.JoinAddr(ip, port)

	r.mu.RLock()
	srv, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return srv, false, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.resolveSlow(ctx, ip, port)
	})
	if err != nil {
		return nil, false, err
	}

	srv = v.(*models.Server)
	r.mu.Lock()
	r.cache[key] = srv
	r.mu.Unlock()
	return srv, true, nil
}

func (r *Registry) resolveSlow(ctx context.Context, ip string, port int32) (*models.Server, error) {
	srv, found, err := r.servers.FindByAddress(ctx, ip, port)
	if err != nil {
		return nil, fmt.Errorf("resolve server %s:%d: %w", ip, port, err)
	}
	if found {
		return srv, nil
	}
	if !r.skipAuth {
		return nil, ErrUnknownServer
	}

	name := fmt.Sprintf("unregistered %s:%d", ip, port)
	srv, err = r.servers.Create(ctx, ip, port, name, r.defaultGame)
	if err == nil {
		return srv, nil
	}
	if !store.IsUniqueViolation(err) {
		return nil, fmt.Errorf("register server %s:%d: %w", ip, port, err)
	}

	// Lost a registration race; the winner's row must be there now.
	srv, found, err = r.servers.FindByAddress(ctx, ip, port)
	if err != nil {
		return nil, fmt.Errorf("re-read server %s:%d: %w", ip, port, err)
	}
	if !found {
		return nil, fmt.Errorf("server %s:%d missing after conflict", ip, port)
	}
	return srv, nil
}

// Known returns the cached servers, for the status surface.
func (r *Registry) Known() []*models.Server {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Server, 0, len(r.cache))
	for _, srv := range r.cache {
		out = append(out, srv)
	}
	return out
}
