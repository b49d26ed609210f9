// Package media turns an audio source into an ordered list of bounded segments.
//
// Three strategies exist:
//   - live: bytes arrive from a capture callback and LiveChunker flushes a
//     segment file every time the accumulator would cross the hard byte cap;
//   - transcode: large uploaded files are cut by duration with ffmpeg and
//     re-encoded to mono 16 kHz low-bitrate Opus;
//   - passthrough: small uploads become a single segment.
package media
