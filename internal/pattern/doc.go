// Package pattern holds the immutable attack-pattern model consumed by the
// matching core.
//
// A Pattern is made of two relations over the same set of pattern edges:
//
//   - Graph: the spatial relation. Nodes and edges with signatures. Edges
//     refer to their endpoints by node id only; the Graph owns both slices.
//   - OrderRelation: the temporal relation. A DAG over edge ids where an
//     arc p -> c means c must not happen before p. Edges without any
//     dependency hang off the virtual root (id -1).
//
// Patterns are built once at startup (see Load) and never mutated afterwards.
// Edge ids are dense: the i-th edge has id i.
package pattern
