// Package subtitles models SubRip documents: parsing, serialization,
// invariant validation, timing repair and transcript cleaning.
//
// A Document is an ordered list of Lines with 1-based contiguous indices and
// non-overlapping, non-decreasing timings. Format emits the canonical SRT
// layout and Parse(Format(doc)) round-trips byte-for-byte.
package subtitles
