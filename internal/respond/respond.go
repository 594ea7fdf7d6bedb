// Package respond writes the JSON envelope shared by every API route:
// {success, statusCode, message, ...payload}.
package respond

import (
	"encoding/json"
	"net/http"
)

const maxJSONBodyBytes = 1 << 20

// Payload fields are merged into the envelope next to success, statusCode
// and message.
type Payload map[string]any

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func Success(w http.ResponseWriter, status int, message string, payload Payload) {
	body := envelope(true, status, message)
	for k, v := range payload {
		body[k] = v
	}
	JSON(w, status, body)
}

func Error(w http.ResponseWriter, status int, message string) {
	Failure(w, status, message, nil)
}

// Failure is Error with extra fields merged into the envelope.
func Failure(w http.ResponseWriter, status int, message string, payload Payload) {
	body := envelope(false, status, message)
	for k, v := range payload {
		body[k] = v
	}
	JSON(w, status, body)
}

func envelope(success bool, status int, message string) map[string]any {
	return map[string]any{
		"success":    success,
		"statusCode": status,
		"message":    message,
	}
}

// DecodeJSON reads a single JSON object into dst, rejecting unknown fields
// and bodies over 1 MiB.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
