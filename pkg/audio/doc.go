// Package audio defines the capture-side audio types of parley: fixed-size
// PCM [Frame]s read from a [Source], the [Segment]s the segmenter assembles
// from them, and the PCM and WAV helpers shared by classifiers and
// transcription backends.
//
// Concrete sources live in sub-packages (audio/mic for a live capture device,
// audio/wavfile for replaying recordings, audio/mock for tests). This package
// lives under pkg/ because external code is expected to implement [Source].
package audio
