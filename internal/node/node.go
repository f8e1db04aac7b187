// Package node assembles one grid member: membership view, lifecycle event
// endpoint, service table, waiter table, and the proxy coordinator, wired to
// the shared in-process hub and transport.
package node

import (
	"github.com/danmuck/gridctl/internal/cluster"
	"github.com/danmuck/gridctl/internal/event"
	"github.com/danmuck/gridctl/internal/proxy"
	"github.com/danmuck/gridctl/internal/remote"
	"github.com/danmuck/gridctl/internal/waitnotify"
)

// Options configures one member's runtime.
type Options struct {
	Member         cluster.Member
	Proxy          proxy.Config
	EventQueueSize int
}

// Node is one running grid member.
type Node struct {
	member     cluster.Member
	manager    *remote.Manager
	membership *cluster.Membership
	waiters    *waitnotify.Table
	events     *event.Endpoint
	proxy      *proxy.Service
	transport  *cluster.Transport
}

// New boots a member onto the shared hub and transport. The caller still has
// to introduce members to each other through their membership views.
func New(opts Options, hub *event.Hub, transport *cluster.Transport) (*Node, error) {
	endpoint, err := hub.Register(opts.Member.ID, opts.EventQueueSize)
	if err != nil {
		return nil, err
	}

	n := &Node{
		member:     opts.Member,
		manager:    remote.NewManager(),
		membership: cluster.NewMembership(opts.Member),
		waiters:    waitnotify.NewTable(),
		events:     endpoint,
		transport:  transport,
	}
	n.proxy = proxy.NewService(opts.Proxy, n.manager, n.membership, transport, endpoint, n.waiters)

	if err := transport.Attach(opts.Member.ID, n.proxy); err != nil {
		endpoint.Close()
		return nil, err
	}
	return n, nil
}

func (n *Node) Member() cluster.Member {
	return n.member
}

func (n *Node) Manager() *remote.Manager {
	return n.manager
}

func (n *Node) Membership() *cluster.Membership {
	return n.membership
}

func (n *Node) Waiters() *waitnotify.Table {
	return n.waiters
}

func (n *Node) Proxy() *proxy.Service {
	return n.proxy
}

// Shutdown detaches the member from the grid and clears its registries.
func (n *Node) Shutdown() {
	n.transport.Detach(n.member.ID)
	n.events.Close()
	n.proxy.Shutdown()
}

// Grid is a set of members sharing one hub and transport in this process.
type Grid struct {
	Hub       *event.Hub
	Transport *cluster.Transport
	Nodes     []*Node
}

// NewGrid boots one node per member and introduces every member to every
// other member's view.
func NewGrid(members []cluster.Member, proxyCfg proxy.Config, queueSize int) (*Grid, error) {
	g := &Grid{
		Hub:       event.NewHub(proxy.ChannelName),
		Transport: cluster.NewTransport(),
	}
	for _, member := range members {
		n, err := New(Options{Member: member, Proxy: proxyCfg, EventQueueSize: queueSize}, g.Hub, g.Transport)
		if err != nil {
			g.Shutdown()
			return nil, err
		}
		g.Nodes = append(g.Nodes, n)
	}
	for _, n := range g.Nodes {
		for _, member := range members {
			n.Membership().Add(member)
		}
	}
	return g, nil
}

// Shutdown stops every node.
func (g *Grid) Shutdown() {
	for _, n := range g.Nodes {
		n.Shutdown()
	}
}
