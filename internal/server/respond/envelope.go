// Package respond renders the uniform response envelope and turns errors
// into it at a single boundary.
package respond

import (
	"encoding/json"
	"net/http"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool `json:"Success"`
	Result  any  `json:"result"`
}

func OK(result any) Envelope {
	return Envelope{Success: true, Result: result}
}

func Fail(message string) Envelope {
	return Envelope{Success: false, Result: message}
}

// Write sends env as JSON with the given status and cookies.
func Write(w http.ResponseWriter, status int, env Envelope, cookies ...*http.Cookie) {
	for _, c := range cookies {
		http.SetCookie(w, c)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}
