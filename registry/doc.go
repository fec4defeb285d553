// Package registry maps the gateway's routes to handler descriptors and
// renders the OpenAPI document as a byproduct of registration. A Builder
// collects endpoint descriptors; Build validates them (duplicate
// method+path fails) and produces an immutable Registry that the server
// reads concurrently without locking.
package registry
