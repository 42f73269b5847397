package network

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("user-%02d", i)
	}
	return ids
}

// assertSymmetric checks the undirected-graph invariant: v in neighbors(u)
// iff u in neighbors(v).
func assertSymmetric(t *testing.T, net *Network) {
	t.Helper()
	for _, u := range net.Users() {
		for _, v := range net.Neighbors(u) {
			assert.Contains(t, net.Neighbors(v), u,
				"edge %s-%s must be symmetric", u, v)
		}
	}
}

func TestBuild_Complete(t *testing.T) {
	ids := userIDs(6)
	net, err := Build(TopologyComplete, ids, TopologyParams{}, 42)
	require.NoError(t, err)

	assert.Equal(t, 6, net.Size())
	assert.Equal(t, 15, net.EdgeCount())
	for _, u := range net.Users() {
		assert.Len(t, net.Neighbors(u), 5)
	}
	assertSymmetric(t, net)
}

func TestBuild_CycleNeighborCount(t *testing.T) {
	ids := userIDs(8)
	net, err := Build(TopologyCycle, ids, TopologyParams{}, 42)
	require.NoError(t, err)

	assert.Equal(t, 8, net.Size())
	assert.Equal(t, 8, net.EdgeCount())
	for _, u := range net.Users() {
		assert.Len(t, net.Neighbors(u), 2, "every cycle node has two neighbors")
	}
	assertSymmetric(t, net)
}

func TestBuild_RandomRegular(t *testing.T) {
	ids := userIDs(10)
	net, err := Build(TopologyRandomRegular, ids, TopologyParams{Degree: 4}, 7)
	require.NoError(t, err)

	assert.Equal(t, 10, net.Size())
	for _, u := range net.Users() {
		assert.Len(t, net.Neighbors(u), 4)
	}
	assertSymmetric(t, net)
}

func TestBuild_WattsStrogatz(t *testing.T) {
	ids := userIDs(20)
	net, err := Build(TopologyWattsStrogatz, ids, TopologyParams{Degree: 4, Probability: 0.1}, 42)
	require.NoError(t, err)

	assert.Equal(t, 20, net.Size())
	assertSymmetric(t, net)

	// Rewiring can drop lattice edges but never add beyond n*k/2.
	assert.LessOrEqual(t, net.EdgeCount(), 40)
	assert.Greater(t, net.EdgeCount(), 0)
}

func TestBuild_WattsStrogatzRejectsOddK(t *testing.T) {
	_, err := Build(TopologyWattsStrogatz, userIDs(10), TopologyParams{Degree: 3, Probability: 0.1}, 1)
	assert.Error(t, err)
}

func TestBuild_BarabasiAlbert(t *testing.T) {
	ids := userIDs(30)
	net, err := Build(TopologyBarabasiAlbert, ids, TopologyParams{Attachment: 2}, 42)
	require.NoError(t, err)

	assert.Equal(t, 30, net.Size())
	assertSymmetric(t, net)
	// Seed clique K_3 plus 2 edges for each of the 27 later nodes.
	assert.Equal(t, 3+27*2, net.EdgeCount())
	for _, u := range net.Users() {
		assert.GreaterOrEqual(t, len(net.Neighbors(u)), 2)
	}
}

func TestBuild_DeterministicForFixedSeed(t *testing.T) {
	ids := userIDs(16)
	a, err := Build(TopologyWattsStrogatz, ids, TopologyParams{Degree: 4, Probability: 0.3}, 99)
	require.NoError(t, err)
	b, err := Build(TopologyWattsStrogatz, ids, TopologyParams{Degree: 4, Probability: 0.3}, 99)
	require.NoError(t, err)

	for _, u := range a.Users() {
		assert.Equal(t, a.Neighbors(u), b.Neighbors(u))
	}
}

func TestBuild_UnknownTopology(t *testing.T) {
	_, err := Build(Topology("moebius"), userIDs(4), TopologyParams{}, 1)
	assert.Error(t, err)
}

func TestBuild_NoUsers(t *testing.T) {
	_, err := Build(TopologyComplete, nil, TopologyParams{}, 1)
	assert.Error(t, err)
}

func TestNetwork_NodeCountMatchesUsers(t *testing.T) {
	ids := userIDs(12)
	net, err := Build(TopologyStar, ids, TopologyParams{}, 1)
	require.NoError(t, err)

	assert.Equal(t, len(ids), net.Size())
	assert.ElementsMatch(t, ids, net.Users())
}

func TestNetwork_MarshalJSON(t *testing.T) {
	net, err := Build(TopologyCycle, userIDs(4), TopologyParams{}, 1)
	require.NoError(t, err)

	data, err := json.Marshal(net)
	require.NoError(t, err)

	var decoded struct {
		Nodes []string    `json:"nodes"`
		Edges [][2]string `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded.Nodes, 4)
	assert.Len(t, decoded.Edges, 4)
	for _, e := range decoded.Edges {
		assert.Less(t, e[0], e[1], "edges serialized with ordered endpoints")
	}
}
