// Package batch discovers job directories under an input root and drives
// every job through the pipeline on a bounded worker pool.
//
// Each immediate subdirectory of the input root is one job and must contain
// exactly one video file. Layout violations become per-job structural
// failures; they never stop sibling jobs. A file lock on the output root keeps
// two runs from writing the same tree. The Prepare helper builds that layout
// from a flat directory of videos.
package batch
