package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

func Index(w http.ResponseWriter) {
	Message(w, http.StatusOK, "conceptube")
}

// Test answers the liveness check the mobile client does on start.
func Test(w http.ResponseWriter, now time.Time) {
	JSON(w, http.StatusOK, struct {
		Message   string `json:"message"`
		Timestamp string `json:"timestamp"`
	}{
		Message:   "Backend is running!",
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

func Message(w http.ResponseWriter, status int, message string) {
	JSON(w, status, struct {
		Message string `json:"message"`
	}{
		Message: message,
	})
}

// Error writes the generic message clients get for a failure. The cause
// belongs in the log, not here.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, struct {
		Error string `json:"error"`
	}{
		Error: message,
	})
}

func JSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, `{"error": %q}`, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}
