// Package polish optionally rewrites rendered release notes with an LLM.
//
// The prompt is a Handlebars template rendered with the notes and any extra
// instructions from the request. When the LLM call fails the caller keeps
// the unpolished notes.
package polish
