// Package language normalizes narration language codes and guesses the
// language of a script when a project asks for "auto".
package language
