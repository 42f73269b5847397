// Package network wraps the social graph for the simulation. Graph
// construction is delegated to lvlath; this package precomputes an
// adjacency map so that per-step neighbor lookups are O(1) instead of a
// graph traversal per call.
package network

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/katalvlaran/lvlath/core"
)

// Network is the static undirected social graph over the fixed user set.
// It is built once at setup and read-only for the rest of the run.
type Network struct {
	users     []string
	adjacency map[string][]string
	edges     [][2]string
}

// FromGraph builds a Network from an undirected lvlath graph whose vertex
// IDs are user IDs. The adjacency of every vertex is materialized up
// front; the graph itself is not retained.
func FromGraph(g *core.Graph) (*Network, error) {
	if g == nil {
		return nil, fmt.Errorf("network: nil graph")
	}
	if g.Directed() {
		return nil, fmt.Errorf("network: social graph must be undirected")
	}

	users := g.Vertices()
	adjacency := make(map[string][]string, len(users))
	var edges [][2]string
	for _, id := range users {
		neighbors, err := g.NeighborIDs(id)
		if err != nil {
			return nil, fmt.Errorf("network: adjacency for %s: %w", id, err)
		}
		sort.Strings(neighbors)
		adjacency[id] = neighbors
		for _, other := range neighbors {
			if id < other {
				edges = append(edges, [2]string{id, other})
			}
		}
	}

	return &Network{users: users, adjacency: adjacency, edges: edges}, nil
}

// Users returns every user ID in the network, sorted ascending.
func (n *Network) Users() []string {
	out := make([]string, len(n.users))
	copy(out, n.users)
	return out
}

// Size returns the number of users.
func (n *Network) Size() int {
	return len(n.users)
}

// Neighbors returns the users adjacent to userID. The returned slice is
// shared precomputed state and must not be mutated by callers.
func (n *Network) Neighbors(userID string) []string {
	return n.adjacency[userID]
}

// Contains reports whether userID is a node of the network.
func (n *Network) Contains(userID string) bool {
	_, ok := n.adjacency[userID]
	return ok
}

// EdgeCount returns the number of undirected edges.
func (n *Network) EdgeCount() int {
	return len(n.edges)
}

// networkJSON is the network.json artifact layout: a node list of user
// IDs plus an undirected edge list.
type networkJSON struct {
	Nodes []string    `json:"nodes"`
	Edges [][2]string `json:"edges"`
}

// MarshalJSON serializes the graph as a node/edge list with user IDs as
// node labels.
func (n *Network) MarshalJSON() ([]byte, error) {
	nodes := n.users
	if nodes == nil {
		nodes = []string{}
	}
	edges := n.edges
	if edges == nil {
		edges = [][2]string{}
	}
	return json.Marshal(networkJSON{Nodes: nodes, Edges: edges})
}
