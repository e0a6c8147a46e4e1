// Package drapto wraps the Drapto encoder library to produce AV1 archive
// copies of finished demo videos. The assembler calls it after the H.264
// master is written when video.archive_av1 is enabled.
package drapto
