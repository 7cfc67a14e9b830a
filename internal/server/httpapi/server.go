// Package httpapi exposes the sync engine over HTTP/JSON.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/lingosync/lingosync/internal/errs"
	"github.com/lingosync/lingosync/internal/model"
	"github.com/lingosync/lingosync/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	sync      service.SyncService
	history   service.HistoryService
	snapshots service.SnapshotService
	projects  service.ProjectService
	authz     Authorizer
	log       *zap.Logger
	signKey   []byte
}

// New constructs a Server with injected services.
func New(sync service.SyncService, history service.HistoryService, snapshots service.SnapshotService, projects service.ProjectService, authz Authorizer, log *zap.Logger, signKey []byte) *Server {
	return &Server{
		sync:      sync,
		history:   history,
		snapshots: snapshots,
		projects:  projects,
		authz:     authz,
		log:       log,
		signKey:   signKey,
	}
}

// Router builds the full route table under /api/v1.
func (s *Server) Router() http.Handler {
	root := mux.NewRouter()
	root.Use(Recover(s.log), Logging(s.log))
	root.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	api := root.PathPrefix("/api/v1").Subrouter()
	api.Use(Auth(s.signKey))

	api.HandleFunc("/projects", s.handleCreateProject).Methods(http.MethodPost)

	p := api.PathPrefix("/projects/{id}").Subrouter()
	p.HandleFunc("/sync/push", s.handlePush).Methods(http.MethodPost)
	p.HandleFunc("/sync/pull", s.handlePull).Methods(http.MethodGet)
	p.HandleFunc("/sync/resolve", s.handleResolve).Methods(http.MethodPost)
	p.HandleFunc("/sync/history", s.handleHistoryList).Methods(http.MethodGet)
	p.HandleFunc("/sync/history/{historyId}", s.handleHistoryGet).Methods(http.MethodGet)
	p.HandleFunc("/sync/history/{historyId}/revert", s.handleRevert).Methods(http.MethodPost)
	p.HandleFunc("/snapshots", s.handleSnapshotCreate).Methods(http.MethodPost)
	p.HandleFunc("/snapshots", s.handleSnapshotList).Methods(http.MethodGet)
	p.HandleFunc("/snapshots/diff", s.handleSnapshotDiff).Methods(http.MethodGet)
	p.HandleFunc("/snapshots/{snapshotId}", s.handleSnapshotGet).Methods(http.MethodGet)
	p.HandleFunc("/snapshots/{snapshotId}", s.handleSnapshotDelete).Methods(http.MethodDelete)
	p.HandleFunc("/snapshots/{snapshotId}/restore", s.handleSnapshotRestore).Methods(http.MethodPost)

	return handlers.CORS(
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
	)(root)
}

// --- helpers ---

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = msg
	writeJSON(w, status, body)
}

// writeError maps sentinel errors onto stable codes. Conflicts never reach
// here: they are response data, not errors.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		writeErrorCode(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, errs.ErrProjectNotFound):
		writeErrorCode(w, http.StatusNotFound, "PROJECT_NOT_FOUND", err.Error())
	case errors.Is(err, errs.ErrHistoryNotFound):
		writeErrorCode(w, http.StatusNotFound, "HISTORY_NOT_FOUND", err.Error())
	case errors.Is(err, errs.ErrSnapshotNotFound):
		writeErrorCode(w, http.StatusNotFound, "SNAPSHOT_NOT_FOUND", err.Error())
	case errors.Is(err, errs.ErrNotFound):
		writeErrorCode(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, errs.ErrForbidden):
		writeErrorCode(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, errs.ErrAlreadyReverted), errors.Is(err, errs.ErrRevertConflict):
		writeErrorCode(w, http.StatusConflict, "REVERT_FAILED", err.Error())
	default:
		s.log.Error("internal", zap.Error(err))
		writeErrorCode(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "VALIDATION_FAILED", "could not decode request: "+err.Error())
		return false
	}
	return true
}

func projectID(r *http.Request) (uuid.UUID, error) {
	return uuid.FromString(mux.Vars(r)["id"])
}

// requireProjectActor resolves the actor and enforces CanEditProject when
// edit is set. Permission runs before any store access.
func (s *Server) requireProjectActor(w http.ResponseWriter, r *http.Request, edit bool) (model.AuthenticatedActor, uuid.UUID, bool) {
	actor, ok := ActorFromCtx(r.Context())
	if !ok {
		writeErrorCode(w, http.StatusUnauthorized, "UNAUTHORIZED", "no actor")
		return actor, uuid.Nil, false
	}
	pid, err := projectID(r)
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "VALIDATION_FAILED", "bad project id")
		return actor, uuid.Nil, false
	}
	if edit {
		allowed, err := s.authz.CanEditProject(r.Context(), actor, pid)
		if err != nil {
			s.writeError(w, err)
			return actor, uuid.Nil, false
		}
		if !allowed {
			writeErrorCode(w, http.StatusForbidden, "FORBIDDEN", "no edit permission for project")
			return actor, uuid.Nil, false
		}
	}
	return actor, pid, true
}

// --- sync ---

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	actor, pid, ok := s.requireProjectActor(w, r, true)
	if !ok {
		return
	}

	var req pushRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	proposals := make([]model.ChangeProposal, 0, len(req.Entries))
	for _, e := range req.Entries {
		proposals = append(proposals, model.ChangeProposal{
			Key:          e.Key,
			Language:     e.Language,
			Value:        e.Value,
			Status:       e.Status,
			BaselineHash: e.BaselineHash,
		})
	}
	deletions := make([]model.Deletion, 0, len(req.Deletions))
	for _, d := range req.Deletions {
		deletions = append(deletions, model.Deletion{Key: d.Key, BaselineHash: d.BaselineHash})
	}

	res, err := s.sync.Push(r.Context(), pid, actor, proposals, deletions, req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPushResponse(res))
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	_, pid, ok := s.requireProjectActor(w, r, false)
	if !ok {
		return
	}

	q := model.PullQuery{Language: r.URL.Query().Get("language")}
	if v := r.URL.Query().Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			writeErrorCode(w, http.StatusBadRequest, "VALIDATION_FAILED", "bad since timestamp")
			return
		}
		q.Since = &ts
	}
	q.Limit = intQuery(r, "limit")
	q.Offset = intQuery(r, "offset")

	res, err := s.sync.Pull(r.Context(), pid, q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPullResponse(res))
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	actor, pid, ok := s.requireProjectActor(w, r, true)
	if !ok {
		return
	}

	var req resolveRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}

	decisions := make([]model.ResolutionDecision, 0, len(req.Decisions))
	for _, d := range req.Decisions {
		decisions = append(decisions, model.ResolutionDecision{
			Key:        d.Key,
			Language:   d.Language,
			Resolution: model.ResolutionKind(d.Resolution),
			Value:      d.Value,
		})
	}

	res, err := s.sync.Resolve(r.Context(), pid, actor, decisions)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPushResponse(res))
}

// --- history ---

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	_, pid, ok := s.requireProjectActor(w, r, false)
	if !ok {
		return
	}

	page := intQuery(r, "page")
	pageSize := intQuery(r, "pageSize")

	entries, total, err := s.history.List(r.Context(), pid, page, pageSize)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := historyListDTO{Entries: []historyEntryDTO{}, Total: total, Page: max(page, 1), PageSize: pageSize}
	for _, e := range entries {
		out.Entries = append(out.Entries, toHistoryEntry(e, false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	_, pid, ok := s.requireProjectActor(w, r, false)
	if !ok {
		return
	}

	entry, err := s.history.Get(r.Context(), pid, mux.Vars(r)["historyId"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryEntry(*entry, true))
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	actor, pid, ok := s.requireProjectActor(w, r, true)
	if !ok {
		return
	}

	var req revertRequestDTO
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	res, err := s.history.Revert(r.Context(), pid, actor, mux.Vars(r)["historyId"], req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPushResponse(res))
}

// --- snapshots ---

func (s *Server) handleSnapshotCreate(w http.ResponseWriter, r *http.Request) {
	actor, pid, ok := s.requireProjectActor(w, r, true)
	if !ok {
		return
	}

	var req createSnapshotDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Type == "" {
		req.Type = model.SnapshotManual
	}

	snap, err := s.snapshots.Create(r.Context(), pid, actor, req.Type, req.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSnapshotDTO(*snap))
}

func (s *Server) handleSnapshotList(w http.ResponseWriter, r *http.Request) {
	_, pid, ok := s.requireProjectActor(w, r, false)
	if !ok {
		return
	}

	snaps, err := s.snapshots.List(r.Context(), pid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]snapshotDTO, 0, len(snaps))
	for _, sn := range snaps {
		out = append(out, toSnapshotDTO(sn))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSnapshotGet(w http.ResponseWriter, r *http.Request) {
	_, pid, ok := s.requireProjectActor(w, r, false)
	if !ok {
		return
	}

	snap, err := s.snapshots.Get(r.Context(), pid, mux.Vars(r)["snapshotId"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(*snap))
}

func (s *Server) handleSnapshotDelete(w http.ResponseWriter, r *http.Request) {
	_, pid, ok := s.requireProjectActor(w, r, true)
	if !ok {
		return
	}

	if err := s.snapshots.Delete(r.Context(), pid, mux.Vars(r)["snapshotId"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSnapshotRestore(w http.ResponseWriter, r *http.Request) {
	actor, pid, ok := s.requireProjectActor(w, r, true)
	if !ok {
		return
	}

	var req restoreRequestDTO
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	sum, backup, err := s.snapshots.Restore(r.Context(), pid, actor, mux.Vars(r)["snapshotId"], req.CreateBackupBefore, req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := restoreResponseDTO{
		HistoryID: sum.HistoryID,
		Added:     sum.Added,
		Modified:  sum.Modified,
		Deleted:   sum.Deleted,
	}
	if backup != nil {
		b := toSnapshotDTO(*backup)
		out.Backup = &b
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSnapshotDiff(w http.ResponseWriter, r *http.Request) {
	_, pid, ok := s.requireProjectActor(w, r, false)
	if !ok {
		return
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	diff, err := s.snapshots.Diff(r.Context(), pid, from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]snapshotDiffEntryDTO, 0, len(diff))
	for _, d := range diff {
		out = append(out, snapshotDiffEntryDTO{
			Key:      d.Key,
			Language: d.Language,
			From:     d.From,
			To:       d.To,
			Change:   d.Change,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// --- projects ---

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	if _, ok := ActorFromCtx(r.Context()); !ok {
		writeErrorCode(w, http.StatusUnauthorized, "UNAUTHORIZED", "no actor")
		return
	}

	var req createProjectDTO
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := s.projects.Create(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, projectDTO{ID: p.ID.String(), Name: p.Name})
}

func intQuery(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
