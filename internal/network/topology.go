package network

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/katalvlaran/lvlath/builder"
	"github.com/katalvlaran/lvlath/core"
)

// Topology names the supported graph generators.
type Topology string

const (
	TopologyComplete       Topology = "complete"
	TopologyCycle          Topology = "cycle"
	TopologyStar           Topology = "star"
	TopologyRandomRegular  Topology = "random_regular"
	TopologyRandomSparse   Topology = "random_sparse"
	TopologyWattsStrogatz  Topology = "watts_strogatz"
	TopologyBarabasiAlbert Topology = "barabasi_albert"
)

// TopologyParams carries the per-generator knobs. Unused fields are
// ignored by generators that do not need them.
type TopologyParams struct {
	// Degree is the node degree for random-regular graphs and the ring
	// neighbor count K for Watts-Strogatz.
	Degree int
	// Probability is the edge probability for random-sparse graphs and
	// the rewiring probability for Watts-Strogatz.
	Probability float64
	// Attachment is the edges-per-new-node parameter M for
	// Barabasi-Albert preferential attachment.
	Attachment int
}

// Build constructs the social graph for the given user IDs using the
// requested topology, then wraps it in a Network. Construction is
// deterministic for a fixed seed.
func Build(topology Topology, userIDs []string, params TopologyParams, seed int64) (*Network, error) {
	if len(userIDs) == 0 {
		return nil, fmt.Errorf("network: no users")
	}

	bopts := []builder.BuilderOption{
		builder.WithSeed(seed),
		builder.WithIDScheme(func(i int) string { return userIDs[i] }),
	}

	n := len(userIDs)
	var (
		g   *core.Graph
		err error
	)
	switch topology {
	case TopologyComplete:
		g, err = builder.BuildGraph(nil, bopts, builder.Complete(n))
	case TopologyCycle:
		g, err = builder.BuildGraph(nil, bopts, builder.Cycle(n))
	case TopologyStar:
		// builder.Star pins the hub to a fixed "Center" ID, so the star is
		// built locally with userIDs[0] as the hub.
		g, err = star(userIDs)
	case TopologyRandomRegular:
		g, err = builder.BuildGraph(nil, bopts, builder.RandomRegular(n, params.Degree))
	case TopologyRandomSparse:
		g, err = builder.BuildGraph(nil, bopts, builder.RandomSparse(n, params.Probability))
	case TopologyWattsStrogatz:
		g, err = wattsStrogatz(userIDs, params.Degree, params.Probability, seed)
	case TopologyBarabasiAlbert:
		g, err = barabasiAlbert(userIDs, params.Attachment, seed)
	default:
		return nil, fmt.Errorf("network: unknown topology %q", topology)
	}
	if err != nil {
		return nil, fmt.Errorf("network: build %s: %w", topology, err)
	}

	return FromGraph(g)
}

// star connects every user to the hub ids[0].
func star(ids []string) (*core.Graph, error) {
	if len(ids) < 2 {
		return nil, fmt.Errorf("star: need at least 2 users, got %d", len(ids))
	}
	g := core.NewGraph()
	for _, id := range ids {
		if err := g.AddVertex(id); err != nil {
			return nil, err
		}
	}
	for _, leaf := range ids[1:] {
		if _, err := g.AddEdge(ids[0], leaf, 0); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// wattsStrogatz builds a small-world graph: a ring lattice where every
// node connects to its k nearest neighbors, with each lattice edge
// rewired to a uniformly random target with probability p.
func wattsStrogatz(ids []string, k int, p float64, seed int64) (*core.Graph, error) {
	n := len(ids)
	if k < 2 || k%2 != 0 {
		return nil, fmt.Errorf("watts-strogatz: k must be a positive even number, got %d", k)
	}
	if k >= n {
		return nil, fmt.Errorf("watts-strogatz: k=%d must be below n=%d", k, n)
	}
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("watts-strogatz: p=%f out of [0,1]", p)
	}

	g := core.NewGraph()
	for _, id := range ids {
		if err := g.AddVertex(id); err != nil {
			return nil, err
		}
	}

	rng := rand.New(rand.NewSource(seed))

	// Ring lattice: each node to its k/2 clockwise neighbors, possibly
	// rewired away from the lattice target.
	for i := 0; i < n; i++ {
		for j := 1; j <= k/2; j++ {
			target := (i + j) % n
			if rng.Float64() < p {
				candidate := rng.Intn(n)
				for candidate == i || g.HasEdge(ids[i], ids[candidate]) {
					candidate = rng.Intn(n)
					// A saturated node cannot rewire anywhere new.
					in, out, undirected, _ := g.Degree(ids[i])
					if in+out+undirected >= n-1 {
						candidate = target
						break
					}
				}
				target = candidate
			}
			if g.HasEdge(ids[i], ids[target]) {
				continue
			}
			if _, err := g.AddEdge(ids[i], ids[target], 0); err != nil {
				return nil, err
			}
		}
	}

	return g, nil
}

// barabasiAlbert builds a scale-free graph by preferential attachment:
// each new node attaches m edges to existing nodes with probability
// proportional to their current degree.
func barabasiAlbert(ids []string, m int, seed int64) (*core.Graph, error) {
	n := len(ids)
	if m < 1 || m >= n {
		return nil, fmt.Errorf("barabasi-albert: m=%d must satisfy 1 <= m < n=%d", m, n)
	}

	g := core.NewGraph()
	for _, id := range ids {
		if err := g.AddVertex(id); err != nil {
			return nil, err
		}
	}

	rng := rand.New(rand.NewSource(seed))

	// Attachment targets, repeated once per incident edge. Sampling from
	// this list is sampling proportional to degree.
	var repeated []int

	// Seed clique over the first m+1 nodes so every early node has
	// non-zero degree.
	for i := 0; i <= m; i++ {
		for j := i + 1; j <= m; j++ {
			if _, err := g.AddEdge(ids[i], ids[j], 0); err != nil {
				return nil, err
			}
			repeated = append(repeated, i, j)
		}
	}

	for i := m + 1; i < n; i++ {
		chosen := make(map[int]struct{}, m)
		for len(chosen) < m {
			target := repeated[rng.Intn(len(repeated))]
			if target == i {
				continue
			}
			chosen[target] = struct{}{}
		}
		// Map iteration order is randomized; keep the degree list
		// deterministic for a fixed seed.
		targets := make([]int, 0, m)
		for target := range chosen {
			targets = append(targets, target)
		}
		sort.Ints(targets)
		for _, target := range targets {
			if _, err := g.AddEdge(ids[i], ids[target], 0); err != nil {
				return nil, err
			}
			repeated = append(repeated, i, target)
		}
	}

	return g, nil
}
