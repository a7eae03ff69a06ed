// Package directory resolves agent names to network addresses. Each agent
// carries its own static map of known peers.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/parley-agents/parley/pkg/api"
)

// ErrUnknownAgent is returned when a name is not in the directory.
var ErrUnknownAgent = errors.New("unknown agent")

// Directory is an immutable name-to-URL map, safe for concurrent reads.
type Directory struct {
	peers map[string]string
}

// New builds a directory from a peer map. The map is copied.
func New(peers map[string]string) *Directory {
	copied := make(map[string]string, len(peers))
	for name, url := range peers {
		copied[name] = url
	}
	return &Directory{peers: copied}
}

// Resolve returns the base URL for an agent name.
func (d *Directory) Resolve(name string) (string, error) {
	url, ok := d.peers[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	return url, nil
}

// List returns all known agent names, sorted.
func (d *Directory) List() []string {
	names := make([]string, 0, len(d.peers))
	for name := range d.peers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of known peers.
func (d *Directory) Len() int {
	return len(d.peers)
}

// FetchCard fetches a known agent's card from its well-known URL.
func (d *Directory) FetchCard(ctx context.Context, name string) (*api.AgentCard, error) {
	url, err := d.Resolve(name)
	if err != nil {
		return nil, err
	}
	return api.NewClient(url).FetchCard(ctx)
}

// FetchAllCards fetches cards for every known agent. Unreachable agents
// map to nil rather than failing the whole lookup.
func (d *Directory) FetchAllCards(ctx context.Context) map[string]*api.AgentCard {
	cards := make(map[string]*api.AgentCard, len(d.peers))
	for name := range d.peers {
		card, err := d.FetchCard(ctx, name)
		if err != nil {
			cards[name] = nil
			continue
		}
		cards[name] = card
	}
	return cards
}
