// Package voice narrates demo scripts with a text-to-speech CLI.
//
// Engine choice goes through a DecisionTable evaluated once per request:
// kokoro handles English, pocket clones a sample voice for English, and
// edge covers the multilingual voice list. Unsupported combinations fall
// back along the table and end on edge with an English voice. Segments are
// synthesized one at a time, measured with ffprobe, and laid end to end;
// the resulting timeline drives the SRT subtitle file.
package voice
