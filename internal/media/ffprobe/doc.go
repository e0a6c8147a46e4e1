// Package ffprobe runs ffprobe and decodes its JSON output.
//
// The voice stage uses Duration to measure synthesized narration and the
// assembler uses Inspect to confirm the encoded demo has one video and one
// audio stream before recording it on the project.
package ffprobe
