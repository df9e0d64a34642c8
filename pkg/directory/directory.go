// Package directory keeps the set of peers taking part in the mesh.
// Every cluster member, self included, is registered before traffic starts;
// the index handed out at registration is stable for the directory's lifetime.
package directory

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrEmptyName      = errors.New("peer name is empty")
	ErrDuplicatePeer  = errors.New("peer already registered")
	ErrSelfAlreadySet = errors.New("self peer already registered")
)

// Endpoint describes one peer. ServerAddr is where the peer binds its inbound
// socket, ClientAddr is what the other peers connect to.
type Endpoint struct {
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type,omitempty" yaml:"type,omitempty"`
	ServerAddr string `json:"serverAddr" yaml:"serverAddr"`
	ClientAddr string `json:"clientAddr" yaml:"clientAddr"`
}

type Directory struct {
	mu      sync.RWMutex
	peers   []Endpoint     // registration order
	byName  map[string]int // name -> index
	selfIdx int
}

func New() *Directory {
	return &Directory{
		byName:  make(map[string]int),
		selfIdx: -1,
	}
}

// Register adds ep and returns its index.
func (d *Directory) Register(ep Endpoint, isSelf bool) (int, error) {
	if ep.Name == "" {
		return -1, ErrEmptyName
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byName[ep.Name]; ok {
		return -1, fmt.Errorf("%w: %s", ErrDuplicatePeer, ep.Name)
	}
	if isSelf && d.selfIdx >= 0 {
		return -1, fmt.Errorf("%w: %s", ErrSelfAlreadySet, d.peers[d.selfIdx].Name)
	}
	idx := len(d.peers)
	d.peers = append(d.peers, ep)
	d.byName[ep.Name] = idx
	if isSelf {
		d.selfIdx = idx
	}
	return idx, nil
}

func (d *Directory) IsPeer(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.byName[name]
	return ok
}

// Lookup returns the endpoint registered under name and its index.
func (d *Directory) Lookup(name string) (Endpoint, int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx, ok := d.byName[name]
	if !ok {
		return Endpoint{}, -1, false
	}
	return d.peers[idx], idx, true
}

// Self returns the endpoint flagged as this process.
func (d *Directory) Self() (Endpoint, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.selfIdx < 0 {
		return Endpoint{}, false
	}
	return d.peers[d.selfIdx], true
}

func (d *Directory) IsSelf(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selfIdx >= 0 && d.peers[d.selfIdx].Name == name
}

// Others returns every peer except self, in registration order.
func (d *Directory) Others() []Endpoint {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Endpoint, 0, len(d.peers))
	for i, p := range d.peers {
		if i == d.selfIdx {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (d *Directory) All() []Endpoint {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Endpoint(nil), d.peers...)
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}
