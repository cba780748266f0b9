// Package handler is the HTTP entry point after the router.
//
// It binds and validates requests using the validation package, calls the
// service layer and shapes the `{success, data, ...}` response envelopes.
package handler
