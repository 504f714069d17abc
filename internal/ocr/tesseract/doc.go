// Package tesseract recognises text in-process through the gosseract bindings.
//
// The bindings need the tesseract and leptonica headers at build time, so the
// engine is only compiled with the "gosseract" build tag. Without it, New
// returns domain.ErrNotImplemented and callers fall back to the tesseract CLI.
package tesseract
