package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"wgfleet/internal/models"
	"wgfleet/internal/repo"
	"wgfleet/internal/tasks"
	"wgfleet/internal/wg"
)

// Handler — операционная read-only поверхность: статистика, клиентские
// конфиги, журнал задач, ручной перезапуск реконсиляции. Админский CRUD
// живёт снаружи и сюда не входит.
type Handler struct {
	Servers *repo.ServerStore
	Peers   *repo.PeerStore
	SMTP    *repo.SMTPStore
	TaskLog *repo.TaskLogStore
	Queue   tasks.Enqueuer
}

func New(servers *repo.ServerStore, peers *repo.PeerStore, smtp *repo.SMTPStore, taskLog *repo.TaskLogStore, q tasks.Enqueuer) *Handler {
	return &Handler{Servers: servers, Peers: peers, SMTP: smtp, TaskLog: taskLog, Queue: q}
}

func pathID(r *http.Request) (uint, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// GET /api/v1/servers/{id}/stats
func (h *Handler) ServerStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid server id", nil)
		return
	}
	stats, err := h.Servers.Stats(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "server not found", nil)
		return
	}
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, stats)
}

// GET /api/v1/servers/{id}/config — производный словарь (с кэшем).
func (h *Handler) ServerConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid server id", nil)
		return
	}
	cfg, err := h.Servers.ConfigDict(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "server not found", nil)
		return
	}
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, cfg)
}

// GET /api/v1/peers/{id}/config — клиентский конфиг пира plain text.
func (h *Handler) PeerConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid peer id", nil)
		return
	}
	p, err := h.Peers.GetByID(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "peer not found", nil)
		return
	}
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	if p.PrivateKeyEncrypted == "" {
		models.WriteProblem(w, http.StatusConflict, "Conflict", "peer is not onboarded yet", nil)
		return
	}
	priv, err := h.Peers.PrivateKey(p)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "cannot decrypt peer key", nil)
		return
	}
	srv, err := h.Peers.ResolveServer(r.Context(), p)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(wg.RenderClientConf(p, priv, srv)))
}

// GET /api/v1/tasks/recent?limit=N
func (h *Handler) RecentTasks(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logsList, err := h.TaskLog.Recent(r.Context(), limit)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, logsList)
}

// GET /api/v1/settings/smtp — без пароля (он json:"-").
func (h *Handler) SMTPSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.SMTP.Get(r.Context())
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	if st == nil {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "smtp settings are not configured", nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, st)
}

// PUT /api/v1/settings/smtp — единственная запись настроек; пустой пароль
// в запросе означает «оставить прежний».
func (h *Handler) SaveSMTPSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Host      string `json:"host"`
		Port      int    `json:"port"`
		Username  string `json:"username"`
		Password  string `json:"password"`
		FromEmail string `json:"from_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid json body", nil)
		return
	}
	cur, err := h.SMTP.Get(r.Context())
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	st := &models.SMTPSettings{
		Host:      req.Host,
		Port:      req.Port,
		Username:  req.Username,
		Password:  req.Password,
		FromEmail: req.FromEmail,
	}
	if cur != nil {
		st.ID = cur.ID
		st.CreatedAt = cur.CreatedAt
		if st.Password == "" {
			st.Password = cur.Password
		}
	}
	if err := h.SMTP.Save(r.Context(), st); err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", err.Error(), nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, st)
}

// POST /api/v1/servers/{id}/sync — ручной перезапуск Sync-Config.
func (h *Handler) ResyncServer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid server id", nil)
		return
	}
	if !h.Queue.TryEnqueue(tasks.Task{Kind: tasks.KindSyncConfig, EntityID: id}) {
		models.WriteProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "task queue is full", nil)
		return
	}
	models.WriteJSON(w, http.StatusAccepted, map[string]any{"enqueued": "sync-config", "server_id": id})
}

// POST /api/v1/peers/{id}/onboard — ручной перезапуск онбординга.
func (h *Handler) ReonboardPeer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid peer id", nil)
		return
	}
	if !h.Queue.TryEnqueue(tasks.Task{Kind: tasks.KindOnboard, EntityID: id}) {
		models.WriteProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "task queue is full", nil)
		return
	}
	models.WriteJSON(w, http.StatusAccepted, map[string]any{"enqueued": "onboard", "peer_id": id})
}
