// Package assembler renders the final demo video with ffmpeg.
//
// Each segment becomes a clip: its still image (optionally with a slow Ken
// Burns zoom) under its narration, padded by one transition length of
// silence. Clips are joined with xfade on video and acrossfade on audio so
// every clip starts exactly where its narration starts in the voice
// timeline, which keeps the SRT cues aligned when they are burned in.
package assembler
