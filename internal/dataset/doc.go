// Package dataset loads tabular input into an in-memory table backed by a
// gota DataFrame. Cells are held as text so that values round-trip to the
// output unchanged unless a transformation rewrites them.
package dataset
