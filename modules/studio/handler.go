package studio

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"admachine-studio/modules/compositor"
	"admachine-studio/modules/creative"
	"admachine-studio/modules/nanoedit"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 12 << 20

type StudioHandler struct {
	manager *Manager
	hub     *Hub
	log     zerolog.Logger
}

func NewStudioHandler(manager *Manager, hub *Hub, log zerolog.Logger) *StudioHandler {
	return &StudioHandler{
		manager: manager,
		hub:     hub,
		log:     log.With().Str("component", "studio_handler").Logger(),
	}
}

// RegisterRoutes - studio endpoints plus the WebSocket feed
func (h *StudioHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/studio/creatives", h.CreateCreative).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/studio/images", h.GenerateImage).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/studio/edits", h.SubmitEdit).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/studio/sessions/{clientId}", h.GetSession).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/studio/sessions/{clientId}/preview", h.GetPreview).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/studio/sessions/{clientId}/download", h.Download).Methods("GET", "OPTIONS")
	r.HandleFunc("/ws", h.hub.ServeWS).Methods("GET")
	h.log.Info().Msg("✅ [Studio] Routes registered: /api/studio/*, /ws")
}

// CreateCreative - POST /api/studio/creatives
func (h *StudioHandler) CreateCreative(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req CreateCreativeRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := ValidateCreateRequest(&req)
	if err != nil {
		h.reject(w, err)
		return
	}

	h.log.Info().
		Str("client", req.ClientID).
		Str("format", string(in.Format)).
		Bool("reference", in.ReferenceImage != nil).
		Msg("📥 [Studio] Creative requested")

	view, err := h.manager.StartSession(r.Context(), req.ClientID, in)
	if err != nil {
		h.fail(w, view, err)
		return
	}
	writeJSON(w, http.StatusOK, StudioResponse{Success: true, Session: view})
}

// GenerateImage - POST /api/studio/images
func (h *StudioHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req ClientRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := normalizeClientID(&req.ClientID); err != nil {
		h.reject(w, err)
		return
	}

	view, err := h.manager.GenerateImage(r.Context(), req.ClientID)
	if err != nil {
		h.fail(w, view, err)
		return
	}
	writeJSON(w, http.StatusOK, StudioResponse{Success: true, Session: view})
}

// SubmitEdit - POST /api/studio/edits. A failed edit still answers 200 with the
// restored session; the failure is in outcome and lastEditError.
func (h *StudioHandler) SubmitEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req EditRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := ValidateEditRequest(&req); err != nil {
		h.reject(w, err)
		return
	}

	outcome, view, err := h.manager.SubmitEdit(r.Context(), req.ClientID, req.Instruction)
	if outcome == nanoedit.OutcomeFailed {
		writeJSON(w, http.StatusOK, StudioResponse{
			Success:      false,
			Session:      view,
			Outcome:      outcome,
			ErrorMessage: creative.MsgEditFailure,
			ErrorCode:    ErrCodeEdit,
		})
		return
	}
	if err != nil {
		h.fail(w, view, err)
		return
	}
	writeJSON(w, http.StatusOK, StudioResponse{Success: true, Session: view, Outcome: outcome})
}

// GetSession - GET /api/studio/sessions/{clientId}
func (h *StudioHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	view, err := h.manager.Snapshot(pathClientID(r))
	if err != nil {
		h.fail(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, StudioResponse{Success: true, Session: view})
}

// GetPreview - GET /api/studio/sessions/{clientId}/preview
func (h *StudioHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	asset, err := h.manager.Preview(r.Context(), pathClientID(r))
	if err != nil {
		status, code, msg := classifyError(err)
		writeJSON(w, status, PreviewResponse{ErrorMessage: msg, ErrorCode: code})
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{
		Success:    true,
		Filename:   asset.Filename,
		PreviewURL: asset.DataURL(),
	})
}

// Download - GET /api/studio/sessions/{clientId}/download?encoding=png|webp
func (h *StudioHandler) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	enc, err := compositor.ParseEncoding(r.URL.Query().Get("encoding"))
	if err != nil {
		h.reject(w, err)
		return
	}

	clientID := pathClientID(r)
	asset, err := h.manager.Download(r.Context(), clientID, enc)
	if err != nil {
		h.fail(w, nil, err)
		return
	}

	h.log.Info().
		Str("client", clientID).
		Str("file", asset.Filename).
		Int("bytes", len(asset.Data)).
		Msg("📦 [Studio] Download served")

	w.Header().Set("Content-Type", asset.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, asset.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(asset.Data); err != nil {
		h.log.Warn().Err(err).Str("client", clientID).Msg("⚠️ [Studio] Download write failed")
	}
}

func (h *StudioHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.log.Warn().Err(err).Msg("❌ [Studio] Failed to parse request")
		writeJSON(w, http.StatusBadRequest, StudioResponse{
			ErrorMessage: "Requisição inválida.",
			ErrorCode:    ErrCodeInvalidRequest,
		})
		return false
	}
	return true
}

func (h *StudioHandler) reject(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, StudioResponse{
		ErrorMessage: err.Error(),
		ErrorCode:    ErrCodeInvalidRequest,
	})
}

func (h *StudioHandler) fail(w http.ResponseWriter, view *SessionView, err error) {
	status, code, msg := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("code", code).Msg("❌ [Studio] Request failed")
	} else {
		h.log.Warn().Err(err).Str("code", code).Msg("⚠️ [Studio] Request rejected")
	}
	writeJSON(w, status, StudioResponse{
		Session:      view,
		ErrorMessage: msg,
		ErrorCode:    code,
	})
}

// classifyError - HTTP status, error code and user-facing message for a studio error.
// Quota is checked first since a 429 from the model wraps a generation sentinel too.
func classifyError(err error) (int, string, string) {
	switch {
	case errors.Is(err, creative.ErrQuotaExceeded):
		return http.StatusTooManyRequests, ErrCodeQuotaExceeded, creative.MsgQuotaExceeded
	case errors.Is(err, creative.ErrNoCreative):
		return http.StatusNotFound, ErrCodeNotFound, "Nenhum criativo gerado ainda."
	case errors.Is(err, creative.ErrNoImage):
		return http.StatusConflict, ErrCodeNoImage, "A imagem ainda não está pronta."
	case errors.Is(err, creative.ErrBusy):
		return http.StatusConflict, ErrCodeBusy, "Aguarde a operação em andamento terminar."
	case errors.Is(err, ErrStaleSession):
		return http.StatusConflict, ErrCodeStaleGeneration, "Uma nova geração substituiu esta sessão."
	case errors.Is(err, creative.ErrGenerationFailure):
		return http.StatusBadGateway, ErrCodeGeneration, creative.MsgGenerationFailure
	case errors.Is(err, creative.ErrImageGenerationFailure):
		return http.StatusBadGateway, ErrCodeImage, creative.MsgImageFailure
	case errors.Is(err, creative.ErrEditFailure):
		return http.StatusBadGateway, ErrCodeEdit, creative.MsgEditFailure
	case errors.Is(err, creative.ErrCompositionFailure):
		return http.StatusInternalServerError, ErrCodeComposition, creative.MsgCompositionFailure
	default:
		return http.StatusInternalServerError, ErrCodeInternalError, "Erro interno. Tente novamente."
	}
}

func pathClientID(r *http.Request) string {
	return strings.TrimSpace(mux.Vars(r)["clientId"])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
