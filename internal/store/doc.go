// Package store provides the Redis backed stores used by the worker: graph
// state (ports.StateStorage) and release note templates.
//
// Graph state is a JSON document per execution. Render inputs are read from
// it with gjson paths and rendered notes are written back with sjson, so the
// worker never has to know the full shape of the document.
package store
