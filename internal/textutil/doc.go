// Package textutil holds small text helpers shared by the stage adapters:
// filesystem-safe slugs, greedy word wrapping for subtitles and cards, and
// term vectors used to spot near-duplicate narration.
package textutil
