// Package resolve computes the ordered step sequence required to install a
// voice: nothing, the voice alone, provider then voice, or wait for an
// in-flight provider install before the voice.
package resolve
