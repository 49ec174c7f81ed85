// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dataflow

// Direction selects which adjacency relation a traversal follows.
type Direction int

const (
	// Destinations follows edges downstream, from roots to leaves.
	Destinations Direction = iota

	// Sources follows edges upstream, from leaves to roots.
	Sources
)

// Adjacent returns the neighbors of node idx in the given direction.
func (g *Graph) Adjacent(idx int, dir Direction) []int {
	if dir == Sources {
		return g.nodes[idx].sources
	}
	return g.nodes[idx].destinations
}

type frame struct {
	node, next int
}

// PostOrder visits every node reachable from starts following dir, calling action on a node only
// after all its adjacent nodes (in that direction) were visited. Each node is visited once.
//
// It uses an explicit stack, so the depth of the graph is not limited by the goroutine stack.
func (g *Graph) PostOrder(starts []int, dir Direction, action func(node int)) {
	visited := make([]bool, len(g.nodes))
	var stack []frame
	for _, start := range starts {
		if visited[start] {
			continue
		}
		visited[start] = true
		stack = append(stack[:0], frame{node: start})
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			adjacent := g.Adjacent(top.node, dir)
			if top.next < len(adjacent) {
				next := adjacent[top.next]
				top.next++
				if !visited[next] {
					visited[next] = true
					stack = append(stack, frame{node: next})
				}
				continue
			}
			action(top.node)
			stack = stack[:len(stack)-1]
		}
	}
}

// PreOrder visits every node reachable from starts following dir, depth-first, calling action
// the first time a node is reached with the start it was reached from and its parent (-1 for the
// starts themselves). A node's parent is always visited before the node.
func (g *Graph) PreOrder(starts []int, dir Direction, action func(start, parent, node int)) {
	visited := make([]bool, len(g.nodes))
	var stack []frame
	for _, start := range starts {
		if visited[start] {
			continue
		}
		visited[start] = true
		action(start, -1, start)
		stack = append(stack[:0], frame{node: start})
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			adjacent := g.Adjacent(top.node, dir)
			if top.next >= len(adjacent) {
				stack = stack[:len(stack)-1]
				continue
			}
			parent := top.node
			next := adjacent[top.next]
			top.next++
			if visited[next] {
				continue
			}
			visited[next] = true
			action(start, parent, next)
			stack = append(stack, frame{node: next})
		}
	}
}
