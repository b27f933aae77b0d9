package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

func RegisterRoutes(r *mux.Router, h *Handler) {
	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/servers/{id:[0-9]+}/stats", h.ServerStats).Methods(http.MethodGet)
	v1.HandleFunc("/servers/{id:[0-9]+}/config", h.ServerConfig).Methods(http.MethodGet)
	v1.HandleFunc("/servers/{id:[0-9]+}/sync", h.ResyncServer).Methods(http.MethodPost)

	v1.HandleFunc("/peers/{id:[0-9]+}/config", h.PeerConfig).Methods(http.MethodGet)
	v1.HandleFunc("/peers/{id:[0-9]+}/onboard", h.ReonboardPeer).Methods(http.MethodPost)

	v1.HandleFunc("/settings/smtp", h.SMTPSettings).Methods(http.MethodGet)
	v1.HandleFunc("/settings/smtp", h.SaveSMTPSettings).Methods(http.MethodPut)

	v1.HandleFunc("/tasks/recent", h.RecentTasks).Methods(http.MethodGet)
}
