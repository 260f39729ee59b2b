// Package pipeline drives one video job through its stages.
//
// Stages run in a fixed order: normalize, subtitles, audio, silent_video,
// separate, transcribe. Each produces exactly one StageResult. A stage that
// depends on a failed or skipped prerequisite is recorded as Skipped with the
// reason, so a job's result list always names every stage. Once the run
// context is cancelled, the stage in flight completes on a detached context
// and every later requested stage is recorded as Skipped("cancelled") with
// context.Canceled as its error. Such a job is never reported as Succeeded.
package pipeline
