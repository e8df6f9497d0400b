// Package textutil normalizes release titles and compares series names.
//
// Feed titles mix full-width and half-width forms (［１０８０Ｐ］ next to
// [1080P]); Normalize folds them to one form before any pattern runs.
// Similarity scores two names by token overlap and is used to pick the
// closest TMDB match. SanitizeFileName keeps generated names valid as Alist
// path segments.
package textutil
