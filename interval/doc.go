// Package interval implements half-open genomic coordinate ranges and the
// endpoint-scanning primitives the streaming variant caller uses to restrict
// itself to a single [region_start, region_end) window. It assumes every
// position fits in a PosType, which is currently defined as int32 since
// that's what BAM files are limited to.
package interval
