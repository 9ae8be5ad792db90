// Package depgraph implements a small dependency graph with deterministic
// layered topological ordering.
package depgraph

import (
	"errors"
	"fmt"
)

type Graph struct {
	order      []string
	nodes      map[string]struct{}
	deps       map[string]map[string]struct{}
	dependents map[string]map[string]struct{}
}

func New() *Graph {
	return &Graph{
		nodes:      make(map[string]struct{}),
		deps:       make(map[string]map[string]struct{}),
		dependents: make(map[string]map[string]struct{}),
	}
}

func (g *Graph) addNode(name string) {
	if _, ok := g.nodes[name]; ok {
		return
	}
	g.nodes[name] = struct{}{}
	g.order = append(g.order, name)
}

// DependOn declares that child depends on parent. An empty parent only
// registers the child. Self and circular dependencies are errors.
func (g *Graph) DependOn(child, parent string) error {
	if child == "" {
		return errors.New("depgraph: empty node name")
	}
	g.addNode(child)
	if parent == "" {
		return nil
	}
	if child == parent {
		return fmt.Errorf("depgraph: '%s' cannot depend on itself", child)
	}
	if g.dependsOn(parent, child) {
		return fmt.Errorf("depgraph: circular dependency between '%s' and '%s'", child, parent)
	}
	g.addNode(parent)
	if g.deps[child] == nil {
		g.deps[child] = make(map[string]struct{})
	}
	g.deps[child][parent] = struct{}{}
	if g.dependents[parent] == nil {
		g.dependents[parent] = make(map[string]struct{})
	}
	g.dependents[parent][child] = struct{}{}
	return nil
}

func (g *Graph) dependsOn(child, parent string) bool {
	seen := make(map[string]struct{})
	var walk func(n string) bool
	walk = func(n string) bool {
		if _, ok := seen[n]; ok {
			return false
		}
		seen[n] = struct{}{}
		for dep := range g.deps[n] {
			if dep == parent || walk(dep) {
				return true
			}
		}
		return false
	}
	return walk(child)
}

// TopoSortedLayers returns the nodes grouped in dependency layers: every node
// in a layer depends only on nodes of earlier layers. Within a layer, nodes
// keep insertion order.
func (g *Graph) TopoSortedLayers() [][]string {
	remaining := make(map[string]map[string]struct{}, len(g.nodes))
	for n := range g.nodes {
		rd := make(map[string]struct{}, len(g.deps[n]))
		for d := range g.deps[n] {
			rd[d] = struct{}{}
		}
		remaining[n] = rd
	}

	var ret [][]string
	for len(remaining) > 0 {
		var layer []string
		for _, n := range g.order {
			rd, ok := remaining[n]
			if !ok || len(rd) > 0 {
				continue
			}
			layer = append(layer, n)
		}
		if len(layer) == 0 {
			break
		}
		for _, n := range layer {
			delete(remaining, n)
			for dep := range g.dependents[n] {
				delete(remaining[dep], n)
			}
		}
		ret = append(ret, layer)
	}
	return ret
}
