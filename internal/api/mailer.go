package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/punchamoorthee/payflow/internal/domain"
	"github.com/punchamoorthee/payflow/internal/mailer"
	"github.com/punchamoorthee/payflow/internal/models"
)

type MailerHandler struct {
	gateway *mailer.Gateway
	logger  *slog.Logger
}

func NewMailerHandler(g *mailer.Gateway, logger *slog.Logger) *MailerHandler {
	return &MailerHandler{gateway: g, logger: logger}
}

// NewMailerRouter serves the notification gateway.
func NewMailerRouter(g *mailer.Gateway, logger *slog.Logger) *mux.Router {
	h := NewMailerHandler(g, logger)
	r := newRouter("mailer", logger, time.Now)

	r.HandleFunc("/send-template", h.SendTemplateHandler).Methods(http.MethodPost)
	r.HandleFunc("/send", h.SendHandler).Methods(http.MethodPost)
	r.HandleFunc("/templates", h.TemplatesHandler).Methods(http.MethodGet)

	// Per-event endpoints kept for producers that predate /send-template.
	r.HandleFunc("/payment/{event:created|success|failed}", h.legacy("payment")).Methods(http.MethodPost)
	r.HandleFunc("/application/{event:created|approved|rejected|deleted}", h.legacy("application")).Methods(http.MethodPost)
	return r
}

func (h *MailerHandler) SendTemplateHandler(w http.ResponseWriter, r *http.Request) {
	var req models.TemplateEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	err := h.gateway.SendTemplate(r.Context(), mailer.TemplateRequest{
		TemplateID: req.TemplateID,
		To:         req.To,
		Data:       req.TemplateData,
		Subject:    req.Subject,
		Cc:         req.Cc,
		Bcc:        req.Bcc,
		Sender:     req.Sender,
	})
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.logger.DebugContext(r.Context(), "template email accepted", "template", req.TemplateID, "source", req.SourceService)
	respondWithJSON(w, http.StatusOK, models.SendResponse{
		Status:  "success",
		Message: fmt.Sprintf("Email sent using template %s", req.TemplateID),
	})
}

func (h *MailerHandler) SendHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RawEmailRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	err := h.gateway.SendRaw(r.Context(), mailer.RawRequest{
		To:      req.To,
		Subject: req.Subject,
		HTML:    req.HTMLBody,
		Text:    req.Body,
		Cc:      req.Cc,
		Bcc:     req.Bcc,
		Sender:  req.Sender,
	})
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.SendResponse{Status: "success", Message: "Email sent"})
}

func (h *MailerHandler) TemplatesHandler(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string][]string{"templates": h.gateway.Templates()})
}

// legacy accepts a flat body of template fields plus a "recipient" key and
// renders the "<kind>_<event>" template.
func (h *MailerHandler) legacy(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := decodeJSON(r, &body); err != nil {
			fail(w, r, h.logger, err)
			return
		}
		recipient, _ := body["recipient"].(string)
		if recipient == "" {
			fail(w, r, h.logger, domain.ErrNoRecipient)
			return
		}
		delete(body, "recipient")

		id := kind + "_" + mux.Vars(r)["event"]
		err := h.gateway.SendTemplate(r.Context(), mailer.TemplateRequest{
			TemplateID: id,
			To:         []string{recipient},
			Data:       body,
		})
		if err != nil {
			fail(w, r, h.logger, err)
			return
		}
		respondWithJSON(w, http.StatusOK, models.SendResponse{
			Status:  "success",
			Message: fmt.Sprintf("Email sent using template %s", id),
		})
	}
}
