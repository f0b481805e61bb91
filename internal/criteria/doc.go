// Package criteria provides the criteria tree shared by every filter front-end
// and back-end in the module.
//
// A criteria tree is a binary tree of *Node values. Leaves compare one property
// (a QueryField) against a literal with a ComparisonOp. Composites join two
// sub-trees with AND/OR, or negate a single right operand with NOT.
//
// ARCHITECTURE:
//
//	[string filter]  --parser-->    \
//	[Go predicate]   --predicate--> [criteria.Node] --IsMatch-->  bool
//	[NewLeaf/And/..] -------------> /               --querysql--> SQL fragment + params
//
// The tree is the contract between producers and consumers. Producers never
// reach into consumers and vice versa.
//
// MUTABILITY:
//
// Nodes are read-only after construction except for a leaf's comparison
// value, which lives in an atomic slot (Value/SetValue). Callers re-bind a
// literal on a parsed tree instead of re-parsing. Trees shared between
// goroutines are safe for concurrent reads; callers that need independent
// values clone first.
//
// NULL SEMANTICS:
//
// A nil comparison value, or the string "NULL" on an IS/IS NOT leaf, means
// SQL NULL. Equals against nil matches a null property. Ordering comparisons
// never match a null property.
//
// EVALUATION:
//
// Evaluation needs only two things from a business object: its current and
// its persisted property values (see Subject). Literals are coerced to the
// property's type before comparing: numbers through decimal arithmetic,
// times through fixed layouts, identifiers through a permissive UUID parse.
package criteria
