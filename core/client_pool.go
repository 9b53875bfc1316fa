package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type pooledClient struct {
	client InventoryClient
	token  string
}

// ClientPool keeps one reusable inventory client per connection, rebuilt
// whenever the access token changes. First construction under concurrent
// callers converges on a single winning instance; losers reuse the winner.
type ClientPool struct {
	tokens  *TokenManager
	factory ClientFactory

	mu      sync.Mutex
	clients map[string]pooledClient
	closed  bool
}

func NewClientPool(tokens *TokenManager, factory ClientFactory) (*ClientPool, error) {
	if tokens == nil {
		return nil, fmt.Errorf("core: token manager is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("core: client factory is required")
	}
	return &ClientPool{
		tokens:  tokens,
		factory: factory,
		clients: make(map[string]pooledClient),
	}, nil
}

// GetClient returns the pooled client for a connection, constructing or
// rebuilding it when the current access token differs from the one the pooled
// instance was built with.
func (p *ClientPool) GetClient(ctx context.Context, connectionID string) (InventoryClient, error) {
	if p == nil {
		return nil, fmt.Errorf("core: client pool is nil")
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return nil, syncErrorMapper(fmt.Errorf("core: connection id is required"))
	}

	token, err := p.tokens.GetValidAccessToken(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("core: client pool is closed")
	}

	if entry, ok := p.clients[connectionID]; ok {
		if entry.token == token {
			return entry.client, nil
		}
		_ = entry.client.Close()
		delete(p.clients, connectionID)
	}

	client, err := p.factory.NewClient(token)
	if err != nil {
		return nil, syncErrorMapper(err)
	}
	p.clients[connectionID] = pooledClient{client: client, token: token}
	return client, nil
}

// RemoveClient disposes and evicts the pooled client for a connection; paired
// with TokenManager.RemoveConnection on disconnect.
func (p *ClientPool) RemoveClient(connectionID string) {
	if p == nil {
		return
	}
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.clients[connectionID]; ok {
		_ = entry.client.Close()
		delete(p.clients, connectionID)
	}
}

// Close tears down every pooled client. The pool rejects new lookups after
// Close; used at shutdown.
func (p *ClientPool) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var closeErr error
	for id, entry := range p.clients {
		if err := entry.client.Close(); err != nil && closeErr == nil {
			closeErr = fmt.Errorf("core: closing client for connection %q: %w", id, err)
		}
		delete(p.clients, id)
	}
	return closeErr
}
