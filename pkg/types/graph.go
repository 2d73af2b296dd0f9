// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// NodeKind categorizes an opportunity graph node. Per prd008-ideation R2.1.
type NodeKind string

const (
	NodeConcept NodeKind = "concept"
	NodeMethod  NodeKind = "method"
	NodeDataset NodeKind = "dataset"
	NodeTask    NodeKind = "task"
	NodeFinding NodeKind = "finding"
)

// RelationKind categorizes a typed edge between graph nodes.
// Per prd008-ideation R2.2.
type RelationKind string

const (
	RelSupports    RelationKind = "supports"
	RelContradicts RelationKind = "contradicts"
	RelExtends     RelationKind = "extends"
	RelUses        RelationKind = "uses"
	RelCompares    RelationKind = "compares"
)

// GraphNode is a single entity in the opportunity graph.
type GraphNode struct {
	// ID is a stable identifier derived from the normalized label.
	ID string `json:"id" yaml:"id"`

	// Label is the normalized entity label.
	Label string `json:"label" yaml:"label"`

	// Kind categorizes the entity.
	Kind NodeKind `json:"kind" yaml:"kind"`

	// Salience is a computed importance score in [0,1].
	Salience float64 `json:"salience" yaml:"salience"`

	// SourceRefs lists document-span identifiers ("docID#section") the
	// entity was extracted from.
	SourceRefs []string `json:"source_refs" yaml:"source_refs"`
}

// GraphEdge is a typed relation between two graph nodes.
type GraphEdge struct {
	// From and To are node IDs. Both must exist in the graph.
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`

	// Relation categorizes the edge.
	Relation RelationKind `json:"relation" yaml:"relation"`

	// Confidence is in [0,1], proportional to co-occurrence frequency
	// and extraction confidence.
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// GraphSnapshot is the serialized form of a finalized opportunity graph.
type GraphSnapshot struct {
	Nodes []GraphNode `json:"nodes" yaml:"nodes"`
	Edges []GraphEdge `json:"edges" yaml:"edges"`
}
