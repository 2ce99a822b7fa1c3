// Package authapi exposes the account and session HTTP surface.
//
// All responses share one JSON envelope: {"status": int, "data": ..., "message": string}
// for success and {"status": int, "message": string} for failures. Token
// pairs travel both in the response body and as httpOnly cookies so browser
// and native clients use the same endpoints.
package authapi
