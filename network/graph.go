// Copyright 2016 The Gofem Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package network

import (
	"sort"

	"github.com/cpmech/gosl/chk"
)

// Graph is a directed multigraph over NodeId with per-node and per-link
// metadata. Nodes are stored per-type in dense arrays (indices, not
// pointers), the way a finite-element domain keeps its node/element arrays:
// all cross-references inside a Graph are integer indices.
type Graph struct {
	// perType[t] lists every NodeId of type t in construction order; the
	// slice position is exactly NodeId.index.
	perType [len(nodeTypeNames)][]NodeId

	// ordinal2index[t][ordinal] -> index into perType[t]
	ordinal2index [len(nodeTypeNames)]map[int32]int

	// subnetworkOf[t][index] -> subnetwork id the node belongs to (0 = none)
	subnetworkOf [len(nodeTypeNames)][]int32

	// sourcePriorityOf[t][index] -> per-node source priority weight
	sourcePriorityOf [len(nodeTypeNames)][]int32

	links []Link

	// outLinks[NodeId] -> link indices leaving the node
	outLinks map[NodeId][]int
	// inLinks[NodeId] -> link indices entering the node
	inLinks map[NodeId][]int

	// nodeIdsBySubnetwork[subnet] -> ordered set of NodeId, per §3.
	nodeIdsBySubnetwork map[int32][]NodeId
}

// NewGraph returns an empty graph ready for AddNode/AddLink calls.
func NewGraph() *Graph {
	g := &Graph{
		outLinks:            make(map[NodeId][]int),
		inLinks:             make(map[NodeId][]int),
		nodeIdsBySubnetwork: make(map[int32][]NodeId),
	}
	for t := range g.ordinal2index {
		g.ordinal2index[t] = make(map[int32]int)
	}
	return g
}

// AddNode registers a node and returns its resolved NodeId (with index set).
// Duplicate (type, ordinal) pairs are a validation error.
func (g *Graph) AddNode(t NodeType, ordinal int32, subnetworkId int32, sourcePriority int32) (NodeId, error) {
	if _, ok := g.ordinal2index[t][ordinal]; ok {
		return NodeId{}, chk.Err("duplicate node {type=%v, ordinal=%d}", t, ordinal)
	}
	idx := len(g.perType[t])
	id := NodeId{Type: t, Ordinal: ordinal, index: idx}
	g.perType[t] = append(g.perType[t], id)
	g.ordinal2index[t][ordinal] = idx
	g.subnetworkOf[t] = append(g.subnetworkOf[t], subnetworkId)
	g.sourcePriorityOf[t] = append(g.sourcePriorityOf[t], sourcePriority)
	if subnetworkId != 0 {
		g.nodeIdsBySubnetwork[subnetworkId] = append(g.nodeIdsBySubnetwork[subnetworkId], id)
	}
	return id, nil
}

// Lookup resolves a (type, ordinal) pair to the NodeId carrying its index.
func (g *Graph) Lookup(t NodeType, ordinal int32) (NodeId, bool) {
	idx, ok := g.ordinal2index[t][ordinal]
	if !ok {
		return NodeId{}, false
	}
	return g.perType[t][idx], true
}

// NodesOfType returns every node of the given type, in construction order.
func (g *Graph) NodesOfType(t NodeType) []NodeId {
	return g.perType[t]
}

// SubnetworkOf returns the subnetwork id of a node (0 if none).
func (g *Graph) SubnetworkOf(id NodeId) int32 {
	return g.subnetworkOf[id.Type][id.index]
}

// SourcePriorityOf returns the per-node source-priority weight used by the
// allocation optimizer's source-priority objective (§4.5).
func (g *Graph) SourcePriorityOf(id NodeId) int32 {
	return g.sourcePriorityOf[id.Type][id.index]
}

// AddLink registers a directed edge and indexes it for inflow/outflow queries.
func (g *Graph) AddLink(id int32, from, to NodeId, typ LinkType, subnetworkIdSource int32) Link {
	link := Link{Id: id, From: from, To: to, Type: typ, SubnetworkIdSource: subnetworkIdSource}
	li := len(g.links)
	g.links = append(g.links, link)
	g.outLinks[from] = append(g.outLinks[from], li)
	g.inLinks[to] = append(g.inLinks[to], li)
	return link
}

// Links returns every link in the graph, in construction order.
func (g *Graph) Links() []Link { return g.links }

// Outflow returns the flow links leaving a node.
func (g *Graph) Outflow(id NodeId) []Link {
	return g.linksFrom(g.outLinks[id])
}

// Inflow returns the flow links entering a node.
func (g *Graph) Inflow(id NodeId) []Link {
	return g.linksFrom(g.inLinks[id])
}

func (g *Graph) linksFrom(idxs []int) []Link {
	out := make([]Link, len(idxs))
	for i, li := range idxs {
		out[i] = g.links[li]
	}
	return out
}

// UniqueInflow returns the single inflow link of a connector node, as
// required by §3's connector-node invariant (exactly one inflow, one
// outflow). It errors if the node does not have exactly one.
func (g *Graph) UniqueInflow(id NodeId) (Link, error) {
	links := g.Inflow(id)
	if len(links) != 1 {
		return Link{}, chk.Err("connector node {type=%v, ordinal=%d} must have exactly one inflow link, found %d", id.Type, id.Ordinal, len(links))
	}
	return links[0], nil
}

// UniqueOutflow returns the single outflow link of a connector node.
func (g *Graph) UniqueOutflow(id NodeId) (Link, error) {
	links := g.Outflow(id)
	if len(links) != 1 {
		return Link{}, chk.Err("connector node {type=%v, ordinal=%d} must have exactly one outflow link, found %d", id.Type, id.Ordinal, len(links))
	}
	return links[0], nil
}

// Subnetwork returns the ordered set of NodeIds belonging to a subnetwork id.
func (g *Graph) Subnetwork(id int32) []NodeId {
	return g.nodeIdsBySubnetwork[id]
}

// SubnetworkIds returns every distinct, non-zero subnetwork id, sorted
// ascending (id 1 is always the primary subnetwork per §3).
func (g *Graph) SubnetworkIds() []int32 {
	ids := make([]int32, 0, len(g.nodeIdsBySubnetwork))
	for id := range g.nodeIdsBySubnetwork {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HasPrimary reports whether subnetwork 1 exists in this graph.
func (g *Graph) HasPrimary() bool {
	_, ok := g.nodeIdsBySubnetwork[1]
	return ok
}

// Validate checks the connectivity and neighbor-type invariants of §3 and §7:
// every subnetwork must be connected, and inter-subnetwork links must run
// from a primary pump/outlet into a secondary basin. Errors are collected,
// not returned on first failure, matching a simulation loader's
// batch-validation policy of collecting all input errors before aborting.
func (g *Graph) Validate() []error {
	var errs []error
	for _, subnet := range g.SubnetworkIds() {
		if !g.isConnected(subnet) {
			errs = append(errs, chk.Err("subnetwork %d is not a connected subgraph", subnet))
		}
	}
	for _, link := range g.links {
		if link.Type != FlowLink {
			continue
		}
		fromSub := g.SubnetworkOf(link.From)
		toSub := g.SubnetworkOf(link.To)
		if fromSub != 0 && toSub != 0 && fromSub != toSub {
			if fromSub != 1 {
				errs = append(errs, chk.Err("inter-subnetwork link %d must originate in the primary subnetwork, found subnetwork %d", link.Id, fromSub))
			}
			if link.From.Type != Pump && link.From.Type != Outlet {
				errs = append(errs, chk.Err("inter-subnetwork link %d must originate from a pump or outlet, found %v", link.Id, link.From.Type))
			}
			if link.To.Type != Basin {
				errs = append(errs, chk.Err("inter-subnetwork link %d must terminate at a basin, found %v", link.Id, link.To.Type))
			}
		}
	}
	return errs
}

func (g *Graph) isConnected(subnet int32) bool {
	nodes := g.nodeIdsBySubnetwork[subnet]
	if len(nodes) == 0 {
		return true
	}
	seen := make(map[NodeId]bool, len(nodes))
	stack := []NodeId{nodes[0]}
	seen[nodes[0]] = true
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, li := range g.outLinks[n] {
			to := g.links[li].To
			if g.SubnetworkOf(to) == subnet && !seen[to] {
				seen[to] = true
				stack = append(stack, to)
			}
		}
		for _, li := range g.inLinks[n] {
			from := g.links[li].From
			if g.SubnetworkOf(from) == subnet && !seen[from] {
				seen[from] = true
				stack = append(stack, from)
			}
		}
	}
	return len(seen) == len(nodes)
}
