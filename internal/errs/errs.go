// Package errs defines the error shapes returned to API clients.
//
// Every failure leaving the HTTP layer is rendered as an HTTPError so clients
// always receive the same envelope:
//
//	{ "success": false, "code": "NOT_FOUND", "message": "Antenne non trouvée", ... }
package errs
