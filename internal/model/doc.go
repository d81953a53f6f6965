// Package model defines the release metadata that templates are rendered
// against: work items, changes, builds and releases.
//
// The JSON names match the work tracking and build APIs the data usually
// comes from, so a template written against raw API payloads also works
// against these types.
package model
