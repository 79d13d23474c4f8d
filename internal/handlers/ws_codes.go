// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the account bridge.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Provided account token was invalid or expired.
	ProtocolError         = 3002 // Client sent a frame that could not be decoded.
)
