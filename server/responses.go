package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/wilsonhuang01/CMPE-272-2FA/gateway"
	"github.com/wilsonhuang01/CMPE-272-2FA/internal/utils"
	"github.com/wilsonhuang01/CMPE-272-2FA/users"
)

const (
	contentTypeJSON = "application/json"
	maxBodyBytes    = 64 << 10
)

func writeJSON(w http.ResponseWriter, status int, resp gateway.AuthResponse) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Err(err).Msg("Failed to write response")
	}
}

// writeMessage sends the {message} body used for every failure.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, gateway.AuthResponse{Message: message})
}

func badRequest(w http.ResponseWriter, message string) {
	writeMessage(w, http.StatusBadRequest, message)
}

func serverError(w http.ResponseWriter, r *http.Request, err error) {
	log.Err(err).Str("request_id", requestID(r.Context())).Str("path", r.URL.Path).Msg("Request failed")
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}

// decode reads a JSON body into v, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		badRequest(w, "Request body must be valid JSON")
		return false
	}
	return true
}

func profileResponse(u *users.User, message string) gateway.AuthResponse {
	p := u.Profile()
	return gateway.AuthResponse{
		ID:               p.ID,
		Email:            p.Email,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		TwoFactorMethod:  p.TwoFactorMethod,
		TwoFactorEnabled: utils.Ptr(p.TwoFactorEnabled),
		Message:          message,
	}
}
