package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, err := ParseOwner(r)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	var req transactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	var tx core.Transaction
	if req.Text != nil {
		tx, err = s.ledger.AddText(r.Context(), ownerID, *req.Text)
	} else {
		var n core.NewTransaction
		if n, err = req.NewTransaction(ownerID); err == nil {
			tx, err = s.ledger.Add(r.Context(), n)
		}
	}
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(viewTransaction(tx)).
		Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ownerID, err := ParseOwner(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	q := r.URL.Query()
	window, err := ParseWindow(q)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	var rows []core.Transaction
	if q.Get("kind") != "" {
		kind, kerr := ParseKind(q)
		if kerr != nil {
			writeError(w, r, log.OpList, kerr)
			return
		}
		rows, err = s.ledger.ListKind(r.Context(), ownerID, kind, window)
	} else {
		rows, err = s.ledger.List(r.Context(), ownerID, window)
	}
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(viewTransactions(rows)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, id, err := ownerAndID(r)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	tx, ok, err := s.ledger.Get(r.Context(), ownerID, id)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	if !ok {
		NotFoundError("transaction not found").Write(w)
		return
	}
	NewJSONResponse().Body(viewTransaction(tx)).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, id, err := ownerAndID(r)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	var req transactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	patch, err := req.Patch()
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	ok, err := s.ledger.Update(r.Context(), ownerID, id, patch)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if !ok {
		NotFoundError("transaction not found").Write(w)
		return
	}

	tx, found, err := s.ledger.Get(r.Context(), ownerID, id)
	switch {
	case err != nil:
		writeError(w, r, log.OpRead, err)
	case !found:
		// deleted concurrently
		NotFoundError("transaction not found").Write(w)
	default:
		NewJSONResponse().Body(viewTransaction(tx)).Write(w)
	}
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ownerID, id, err := ownerAndID(r)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	ok, err := s.ledger.Delete(r.Context(), ownerID, id)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if !ok {
		NotFoundError("transaction not found").Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func ownerAndID(r *http.Request) (int64, int64, error) {
	ownerID, err := ParseOwner(r)
	if err != nil {
		return 0, 0, err
	}
	id, err := ParseID(r)
	if err != nil {
		return 0, 0, err
	}
	return ownerID, id, nil
}
