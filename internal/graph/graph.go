// Package graph implements C5: resolving link/dependency references,
// detecting cycles, and producing a build order. Name hashing itself lives
// in internal/target.HashName.
// Grounded on original_source/mace.h's mace_circular_deps / mace_deps_links_build_order,
// translated from index-based global arrays into a small Node slice.
package graph

import (
	"fmt"

	"github.com/macebuild/mace/internal/common"
)

// Node is the minimal per-target view the graph engine needs: its own
// hash and the deduplicated hash set of everything it links against or
// depends on (target.Registered.EdgeHashes covers both - spec.md §4.5's
// "dependencies also contribute edges").
type Node struct {
	Hash       uint64
	EdgeHashes []uint64
}

// byHash indexes nodes for O(1) lookup, matching Design Notes §9's
// suggestion to build a hash index when target counts grow (the original
// mace_hash_order is an O(n) linear scan over all targets per lookup).
type byHash map[uint64]int

func index(nodes []Node) byHash {
	idx := make(byHash, len(nodes))
	for i, n := range nodes {
		idx[n.Hash] = i
	}
	return idx
}

// DetectCycles reports a circular dependency: for every node i and every
// edge i->j that resolves to a registered node, if j also has an edge back
// to i, the pair forms a cycle and the run must abort. A self-loop
// (i == j) is not a cycle by this definition; callers should warn about
// self-loops separately (spec.md §3/§4.5).
func DetectCycles(nodes []Node) error {
	idx := index(nodes)
	for i, ni := range nodes {
		for _, edgeHash := range ni.EdgeHashes {
			j, isTarget := idx[edgeHash]
			if !isTarget || j == i {
				continue
			}
			if hasEdge(nodes[j], ni.Hash) {
				return fmt.Errorf("%w: circular dependency between targets at positions %d and %d", common.ErrGraph, i, j)
			}
		}
	}
	return nil
}

func hasEdge(n Node, hash uint64) bool {
	for _, h := range n.EdgeHashes {
		if h == hash {
			return true
		}
	}
	return false
}

// BuildOrder linearizes nodes by depth-first post-order traversal over
// edges: every node's edges are built before the node itself is appended.
// External references (an edge hash with no matching node) are ignored,
// exactly like mace_deps_links_build_order skipping non-target hashes via
// mace_isTarget. Returns the order as a slice of positions into nodes.
func BuildOrder(nodes []Node) ([]int, error) {
	if err := DetectCycles(nodes); err != nil {
		return nil, err
	}

	idx := index(nodes)
	order := make([]int, 0, len(nodes))
	visited := make([]bool, len(nodes))
	visiting := make([]bool, len(nodes))

	var visit func(i int) error
	visit = func(i int) error {
		if visited[i] {
			return nil
		}
		if visiting[i] {
			return fmt.Errorf("%w: cycle detected while ordering target at position %d", common.ErrGraph, i)
		}
		visiting[i] = true

		for _, edgeHash := range nodes[i].EdgeHashes {
			j, isTarget := idx[edgeHash]
			if !isTarget || j == i {
				continue
			}
			if err := visit(j); err != nil {
				return err
			}
		}

		visiting[i] = false
		visited[i] = true
		order = append(order, i)
		return nil
	}

	for start := range nodes {
		if err := visit(start); err != nil {
			return nil, err
		}
	}

	return order, nil
}
