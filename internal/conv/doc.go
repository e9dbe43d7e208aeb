// Package conv provides checked integer conversions.
//
// Cluster membership sets index items with uint32 and on-disk headers store counts
// as unsigned values; both cross into Go's platform-sized int through this package.
package conv
