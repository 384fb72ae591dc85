package http

import (
	"net/http"

	"paylog/internal/core"
	"paylog/internal/ledger"
	"paylog/internal/log"
)

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	list, err := s.engine.Members(r.Context())
	if err != nil {
		s.writeError(w, r, "List members failed", err)
		return
	}
	views := make([]memberView, 0, len(list.Members))
	for _, m := range list.Members {
		views = append(views, newMemberView(m, list.PadLength))
	}
	NewJSONResponse().
		Set("padLength", list.PadLength).
		Set("members", views).
		Write(w)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, err := memberIDParam(r)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	detail, err := s.engine.Member(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "Get member failed", err)
		return
	}
	txs := make([]transactionView, 0, len(detail.Transactions))
	for _, t := range detail.Transactions {
		txs = append(txs, newTransactionView(t))
	}
	NewJSONResponse().
		Set("member", newMemberView(detail.Member, detail.PadLength)).
		Set("transactions", txs).
		Write(w)
}

// handleApplyTransaction accepts {date, description, amount, type}.
func (s *Server) handleApplyTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := memberIDParam(r)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		ErrorFor(err).Write(w)
		return
	}

	res, err := s.engine.Apply(r.Context(), ledger.ApplyRequest{
		MemberID:    id,
		Date:        p.Get("date"),
		Description: p.Get("description"),
		Amount:      p.Get("amount"),
		Kind:        p.Get("type"),
	})
	if err != nil {
		s.writeError(w, r, "Apply transaction failed", err)
		return
	}
	writeResult(w, res)
}

func (s *Server) handleUndoTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := memberIDParam(r)
	if err != nil {
		ErrorFor(err).Write(w)
		return
	}
	res, err := s.engine.UndoLast(r.Context(), id)
	if err != nil {
		s.writeError(w, r, "Undo transaction failed", err)
		return
	}
	writeResult(w, res)
}

func writeResult(w http.ResponseWriter, res ledger.Result) {
	NewJSONResponse().
		Set("memberId", res.MemberID).
		Set("transactionId", res.TransactionID).
		Set("balance", core.FormatCents(res.Balance.Cents)).
		Write(w)
}

// writeError logs server side failures and writes the mapped response.
// Client errors are logged at debug level only.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	resp := ErrorFor(err)
	logger := log.FromContext(r.Context())
	if resp.StatusCode() >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), msg, log.FieldError, err, log.FieldPath, r.URL.Path)
	} else {
		logger.DebugContext(r.Context(), msg, log.FieldError, err, log.FieldStatusCode, resp.StatusCode())
	}
	resp.Write(w)
}
