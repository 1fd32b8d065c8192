// Package client holds the client's boundaries to the outside world.
//
// # Remote
//
// Client is the contract the sync engine needs from the places service:
// incremental listing by cursor, single fetch, versioned create-or-update and
// delete, and a connectivity ping. HTTPClient implements it over REST/JSON
// with a bearer token from a TokenSource.
//
// Failures map to sentinels matched with errors.Is: ErrUnavailable for
// transport problems and 5xx, ErrUnauthorized for 401/403, ErrNotFound for
// 404. A 409 becomes a *ConflictError carrying the server's copy.
//
// # Local database
//
// InitDatabase opens the SQLite file and applies the embedded goose
// migrations; NewRepositories builds the place and metadata stores on it.
package client
