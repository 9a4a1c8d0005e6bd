// Package scrape holds the types shared by every stage of the gateway
// pipeline: the validated scrape request, the backend result and the typed
// error that carries a failure from any stage to the error mapper.
package scrape
