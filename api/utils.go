package api

import (
	"encoding/json"
	"log"
	"net/http"
)

// RespondWithError writes a JSON error body with an explicit status code.
func RespondWithError(w http.ResponseWriter, status int, errMsg string) {
	log.Println("[ERROR]", errMsg)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errMsg,
	})
}

// RespondWithResult sends the consistent {"success":..,"error":..} envelope
// used by every handler in the app.
func RespondWithResult(w http.ResponseWriter, success bool, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	if success {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	} else {
		log.Println("[ERROR] RespondWithResult", errMsg)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": errMsg})
	}
}

// RespondWithPayload sends the standard envelope plus an arbitrary payload
// under the conventional `rows` key.
func RespondWithPayload(w http.ResponseWriter, success bool, errMsg string, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{"success": success}
	if !success && errMsg != "" {
		resp["error"] = errMsg
		log.Println("[ERROR] RespondWithPayload", errMsg)
	}
	if payload != nil {
		resp["rows"] = payload
	}
	json.NewEncoder(w).Encode(resp)
}

// LogInfo logs an informational message with the app's [INFO] prefix.
func LogInfo(msg string, args ...interface{}) {
	if len(args) > 0 {
		log.Printf("[INFO] "+msg, args...)
	} else {
		log.Println("[INFO]", msg)
	}
}

// LogError logs an error message with the app's [ERROR] prefix.
func LogError(msg string, args ...interface{}) {
	if len(args) > 0 {
		log.Printf("[ERROR] "+msg, args...)
	} else {
		log.Println("[ERROR]", msg)
	}
}
