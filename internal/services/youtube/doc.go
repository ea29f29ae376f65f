// Package youtube uploads rendered shorts through the YouTube Data API
// resumable upload protocol.
//
// Authorization uses an OAuth2 refresh token stored on disk. The token file
// may be in the authorized-user layout written by Google's client libraries
// or in the golang.org/x/oauth2 Token layout; refreshed tokens are written
// back in the authorized-user layout.
package youtube
