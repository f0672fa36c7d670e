// Package selection implements the version-range selection expressions
// used for a version's dependencies, incompatibilities, and host
// x-plane selection string (spec §4.2). The exact grammar is not fully
// specified by the source system; this package documents and closes
// over the grammar it accepts — see SPEC_FULL.md §4.2 for the decision.
package selection
