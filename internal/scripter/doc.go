// Package scripter turns a product analysis into a narrated demo script.
//
// Two sources exist: an LLM-backed writer with audience-specific prompts and
// a file source that loads hand-written YAML scripts from a directory. Both
// run their output through the duration Enforcer so scene durations add up
// to the requested video length.
package scripter
