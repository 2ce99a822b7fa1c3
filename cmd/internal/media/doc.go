// Package media uploads account images to an S3-compatible media host.
//
// The HTTP layer spools multipart uploads to disk, hands the file to this
// package, and stores the returned URL + key on the account row. Replaced
// images are deleted by key, best-effort.
package media
