// Package catalog loads named criteria definitions from CUE files.
//
// A catalog entry names a filter written either as criteria text or as a Go
// boolean expression lowered by the predicate builder. Errors carry the CUE
// position of the offending field.
package catalog
