package common

// AuthorizationHeaderName is the HTTP header carrying the bearer access token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token inside the Authorization header.
const BearerPrefix = "Bearer "

// DeviceIDHeaderName carries the stable id of the syncing client install.
const DeviceIDHeaderName = "X-Device-Id"
