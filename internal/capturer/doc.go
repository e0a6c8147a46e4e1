// Package capturer produces one still image per script segment.
//
// Screenshot scenes are captured from live pages by a headless browser with
// bounded concurrency and per-scene retries. Every other segment, and any
// screenshot that keeps failing when fallbacks are allowed, is rendered as a
// branded card. The outro card carries a QR code for the project URL.
package capturer
