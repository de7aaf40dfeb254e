package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/lendbook/pkg/allocation"
	"github.com/mcclellann/lendbook/pkg/ledger"
	"github.com/mcclellann/lendbook/pkg/models"
	"github.com/mcclellann/lendbook/pkg/store"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps ledger, allocation and store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidInput), errors.Is(err, allocation.ErrInvalidAmount),
		errors.Is(err, ledger.ErrNotRefundable):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, allocation.ErrInstrumentLocked), errors.Is(err, allocation.ErrInstrumentClosed),
		errors.Is(err, allocation.ErrNoOutstandingBalance), errors.Is(err, ledger.ErrOverpayment),
		errors.Is(err, store.ErrInstrumentHasTransactions), errors.Is(err, store.ErrVersionConflict),
		errors.Is(err, store.ErrInstrumentNotOpen):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Printf("Error handling %s %s: %v", r.Method, r.URL.Path, err)
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func pathID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid "+what+" ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) createCounterpartyHandler(w http.ResponseWriter, r *http.Request) {
	var req createCounterpartyRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	cp, err := s.ledger.CreateCounterparty(r.Context(), req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cp)
}

func (s *Server) listCounterpartiesHandler(w http.ResponseWriter, r *http.Request) {
	kind := models.CounterpartyKind(r.URL.Query().Get("kind"))
	cps, err := s.ledger.ListCounterparties(r.Context(), kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if cps == nil {
		cps = []*models.Counterparty{}
	}
	writeJSON(w, http.StatusOK, cps)
}

func (s *Server) getCounterpartyHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "counterparty")
	if !ok {
		return
	}
	cp, err := s.ledger.GetCounterparty(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

func (s *Server) counterpartySummaryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "counterparty")
	if !ok {
		return
	}
	summary, err := s.ledger.CounterpartySummary(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) collectPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "counterparty")
	if !ok {
		return
	}
	var req paymentRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	receipt, err := s.ledger.CollectPayment(r.Context(), id, req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) createInstrumentHandler(w http.ResponseWriter, r *http.Request) {
	var req createInstrumentRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	inst, err := s.ledger.CreateInstrument(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

func (s *Server) getInstrumentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "instrument")
	if !ok {
		return
	}
	view, err := s.ledger.GetInstrument(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) deleteInstrumentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "instrument")
	if !ok {
		return
	}
	if err := s.ledger.DeleteInstrument(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lockHandler(locked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "instrument")
		if !ok {
			return
		}
		inst, err := s.ledger.SetLocked(r.Context(), id, locked)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, inst)
	}
}

func (s *Server) closeInstrumentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "instrument")
	if !ok {
		return
	}
	inst, err := s.ledger.CloseInstrument(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "instrument")
	if !ok {
		return
	}
	var req paymentRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	receipt, err := s.ledger.RecordPayment(r.Context(), id, req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) recordRefundHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "instrument")
	if !ok {
		return
	}
	var req paymentRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	tx, err := s.ledger.RecordRefund(r.Context(), id, req.input())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) updateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "transaction")
	if !ok {
		return
	}
	var req updateTransactionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	tx, err := s.ledger.UpdateTransaction(r.Context(), id, req.update())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) deleteTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "transaction")
	if !ok {
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
