package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tenorbook/crypto"
	"tenorbook/native/credit"
)

// The REST surface mirrors the read-only JSON-RPC queries for dashboards and
// keeper bots that prefer plain GETs.

type restError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// handleRestPosition serves either side of the position graph by id range.
func (s *Server) handleRestPosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, restError{Error: "invalid position id"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case credit.IsCreditPositionID(id):
		position, err := s.engine.CreditPositionByID(id)
		if err != nil {
			writeJSON(w, http.StatusNotFound, restError{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, position)
	case credit.IsDebtPositionID(id):
		position, err := s.engine.DebtPositionByID(id)
		if err != nil {
			writeJSON(w, http.StatusNotFound, restError{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, position)
	default:
		writeJSON(w, http.StatusBadRequest, restError{Error: "position id out of range"})
	}
}

type offersResult struct {
	Address     string             `json:"address"`
	LoanOffer   credit.LoanOffer   `json:"loanOffer"`
	BorrowOffer credit.BorrowOffer `json:"borrowOffer"`
}

// handleRestOffers returns an account's standing limit orders.
func (s *Server) handleRestOffers(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, restError{Error: "invalid address"})
		return
	}
	s.mu.Lock()
	user, userErr := s.engine.UserByAddress(addr)
	s.mu.Unlock()
	if userErr != nil {
		writeJSON(w, http.StatusInternalServerError, restError{Error: userErr.Error()})
		return
	}
	writeJSON(w, http.StatusOK, offersResult{
		Address:     addr.String(),
		LoanOffer:   user.LoanOffer,
		BorrowOffer: user.BorrowOffer,
	})
}

type quoteResult struct {
	Address string `json:"address"`
	Side    string `json:"side"`
	Tenor   uint64 `json:"tenor"`
	APR     string `json:"apr"`
}

// handleRestQuote prices an account's standing offer at the requested tenor.
func (s *Server) handleRestQuote(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	addr, err := crypto.DecodeAddress(query.Get("address"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, restError{Error: "invalid address"})
		return
	}
	tenor, err := strconv.ParseUint(query.Get("tenor"), 10, 64)
	if err != nil || tenor == 0 {
		writeJSON(w, http.StatusBadRequest, restError{Error: "invalid tenor"})
		return
	}
	side := query.Get("side")

	s.mu.Lock()
	defer s.mu.Unlock()
	user, userErr := s.engine.UserByAddress(addr)
	if userErr != nil {
		writeJSON(w, http.StatusInternalServerError, restError{Error: userErr.Error()})
		return
	}
	snapshot := s.rateFeed.BorrowRate()
	now := uint64(s.now().Unix())

	var apr *big.Int
	var quoteErr error
	switch side {
	case "loan":
		if user.LoanOffer.IsNull() {
			writeJSON(w, http.StatusNotFound, restError{Error: "no standing loan offer"})
			return
		}
		apr, quoteErr = user.LoanOffer.APRForTenor(snapshot, now, tenor)
	case "borrow":
		if user.BorrowOffer.IsNull() {
			writeJSON(w, http.StatusNotFound, restError{Error: "no standing borrow offer"})
			return
		}
		apr, quoteErr = user.BorrowOffer.APRForTenor(snapshot, now, tenor)
	default:
		writeJSON(w, http.StatusBadRequest, restError{Error: "side must be loan or borrow"})
		return
	}
	if quoteErr != nil {
		writeJSON(w, http.StatusUnprocessableEntity, restError{Error: quoteErr.Error()})
		return
	}
	writeJSON(w, http.StatusOK, quoteResult{
		Address: addr.String(),
		Side:    side,
		Tenor:   tenor,
		APR:     apr.String(),
	})
}
