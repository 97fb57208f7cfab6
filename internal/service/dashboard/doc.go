// Package dashboard implements the consumption dashboard service.
//
// The service loads raw rows through a RowSource (the cached warehouse
// loader in production), normalizes and filters them, and runs the economy
// pipeline to produce a report plus chart figures. It never imports
// net/http; the api package turns its results into responses.
package dashboard
