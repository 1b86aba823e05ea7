package gateway

// Handshake parameter keys
const (
	QueryToken          = "token"
	HeaderAuthorization = "Authorization"
	BearerPrefix        = "Bearer "
)

// Internal queue sizes
const (
	registerChannelSize = 1000
	readBufferSize      = 1024
	writeBufferSize     = 1024
)
