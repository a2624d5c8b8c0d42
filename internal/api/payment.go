package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/punchamoorthee/payflow/internal/domain"
	"github.com/punchamoorthee/payflow/internal/models"
	"github.com/punchamoorthee/payflow/internal/service"
)

type PaymentHandler struct {
	workflow *service.Workflow
	logger   *slog.Logger
}

func NewPaymentHandler(wf *service.Workflow, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{workflow: wf, logger: logger}
}

// NewPaymentRouter serves the payment workflow engine.
func NewPaymentRouter(wf *service.Workflow, logger *slog.Logger) *mux.Router {
	h := NewPaymentHandler(wf, logger)
	r := newRouter("payment", logger, time.Now)

	r.HandleFunc("/payments/services", h.ListServicesHandler).Methods(http.MethodGet)
	r.HandleFunc("/payments/services", h.RegisterServiceHandler).Methods(http.MethodPost)
	r.HandleFunc("/payments/services/{id}", h.GetServiceHandler).Methods(http.MethodGet)
	r.HandleFunc("/payments/services/{id}", h.UpdateServiceHandler).Methods(http.MethodPut)
	r.HandleFunc("/payments/services/{id}", h.DeleteServiceHandler).Methods(http.MethodDelete)

	r.HandleFunc("/payments/create", h.CreatePaymentHandler).Methods(http.MethodPost)
	r.HandleFunc("/payments/apply", h.ApplyHandler).Methods(http.MethodPost)

	// Application routes go first so "applications" is never taken for a payment id.
	r.HandleFunc("/payments/applications/{id}", h.GetApplicationHandler).Methods(http.MethodGet)
	r.HandleFunc("/payments/applications/{id}", h.DeleteApplicationHandler).Methods(http.MethodDelete)
	r.HandleFunc("/payments/applications/{id}/approve", h.ApproveHandler).Methods(http.MethodPut)
	r.HandleFunc("/payments/applications/{id}/reject", h.RejectHandler).Methods(http.MethodPut)

	r.HandleFunc("/payments/{id}/info", h.GetPaymentHandler).Methods(http.MethodGet)
	r.HandleFunc("/payments/{id}/process", h.ProcessHandler).Methods(http.MethodPost)
	r.HandleFunc("/payments/{id}/fail", h.FailHandler).Methods(http.MethodPost)
	r.HandleFunc("/payments/{id}/download", h.DownloadHandler).Methods(http.MethodGet)
	r.HandleFunc("/payments/{id}", h.UpdatePaymentHandler).Methods(http.MethodPut)
	r.HandleFunc("/payments/{id}", h.DeletePaymentHandler).Methods(http.MethodDelete)

	r.HandleFunc("/export/payments", h.ExportAllHandler).Methods(http.MethodGet)
	return r
}

func (h *PaymentHandler) ListServicesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.workflow.ListServices(r.Context())
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if list == nil {
		list = []domain.ServiceDefinition{}
	}
	respondWithJSON(w, http.StatusOK, list)
}

func (h *PaymentHandler) RegisterServiceHandler(w http.ResponseWriter, r *http.Request) {
	var def domain.ServiceDefinition
	if err := decodeJSON(r, &def); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	out, err := h.workflow.RegisterService(r.Context(), def)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (h *PaymentHandler) GetServiceHandler(w http.ResponseWriter, r *http.Request) {
	def, err := h.workflow.GetService(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, def)
}

func (h *PaymentHandler) UpdateServiceHandler(w http.ResponseWriter, r *http.Request) {
	var u domain.ServiceUpdate
	if err := decodeJSON(r, &u); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	def, err := h.workflow.UpdateService(r.Context(), mux.Vars(r)["id"], u)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, def)
}

func (h *PaymentHandler) DeleteServiceHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.workflow.DeleteService(r.Context(), mux.Vars(r)["id"]); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.MessageResponse{Message: "Payment service deleted successfully"})
}

func paymentStatus(p domain.Payment) models.PaymentStatusResponse {
	return models.PaymentStatusResponse{
		PaymentID: p.PaymentID,
		Status:    string(p.Status),
		Amount:    p.Amount,
		CreatedAt: p.CreatedAt,
	}
}

func (h *PaymentHandler) CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	p, err := h.workflow.CreatePayment(r.Context(), req)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, paymentStatus(p))
}

func (h *PaymentHandler) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.workflow.GetPayment(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, paymentStatus(p))
}

func (h *PaymentHandler) UpdatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpdatePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	p, err := h.workflow.UpdatePaymentStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *PaymentHandler) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ProcessPaymentRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	p, err := h.workflow.ProcessPayment(r.Context(), mux.Vars(r)["id"], req.TransactionID)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *PaymentHandler) FailHandler(w http.ResponseWriter, r *http.Request) {
	var req models.FailPaymentRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	p, err := h.workflow.FailPayment(r.Context(), mux.Vars(r)["id"], req.Reason)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *PaymentHandler) DeletePaymentHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.workflow.DeletePayment(r.Context(), mux.Vars(r)["id"]); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.MessageResponse{Message: "Payment deleted successfully"})
}

func applicationStatus(a domain.Application) models.ApplicationResponse {
	return models.ApplicationResponse{
		ApplicationID: a.ApplicationID,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt,
	}
}

func (h *PaymentHandler) ApplyHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ApplyRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	a, err := h.workflow.ApplyForPayment(r.Context(), req)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, applicationStatus(a))
}

func (h *PaymentHandler) GetApplicationHandler(w http.ResponseWriter, r *http.Request) {
	a, err := h.workflow.GetApplication(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, applicationStatus(a))
}

func (h *PaymentHandler) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := h.workflow.ApproveApplication(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// RejectHandler takes the reason from the query string, falling back to a
// JSON body.
func (h *PaymentHandler) RejectHandler(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		var req models.RejectRequest
		if err := decodeOptionalJSON(r, &req); err != nil {
			fail(w, r, h.logger, err)
			return
		}
		reason = req.Reason
	}
	if _, err := h.workflow.RejectApplication(r.Context(), mux.Vars(r)["id"], reason); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.MessageResponse{Message: "Application rejected"})
}

func (h *PaymentHandler) DeleteApplicationHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.workflow.DeleteApplication(r.Context(), mux.Vars(r)["id"]); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.MessageResponse{Message: "Payment application successfully deleted"})
}

func (h *PaymentHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	exp, err := h.workflow.ExportPayment(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeCSV(w, exp)
}

func (h *PaymentHandler) ExportAllHandler(w http.ResponseWriter, r *http.Request) {
	exp, err := h.workflow.ExportAllPayments(r.Context())
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeCSV(w, exp)
}

func writeCSV(w http.ResponseWriter, exp service.Export) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exp.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(exp.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(exp.Data)
}
