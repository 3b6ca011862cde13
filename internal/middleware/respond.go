package middleware

import (
	"encoding/json"
	"net/http"
)

// Messages returned by the middleware chain.
const (
	MsgUnauthorized    = "Unauthorized"
	MsgInvalidToken    = "Forbidden: Invalid token"
	MsgInternalError   = "Internal Server Error"
	MsgPayloadTooLarge = "Request body too large"
)

// writeMessage writes a {"message": msg} JSON body with status.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
