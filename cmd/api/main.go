package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"coopfund/pkg/ledger"
	"coopfund/pkg/store"
)

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Keep a reference to the storage to close it
}

func NewServer(s store.Storage) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s),
		storage: s,
	}
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests)

	r.HandleFunc("/fund", s.getFundHandler).Methods("GET")

	r.HandleFunc("/members", s.createMemberHandler).Methods("POST")
	r.HandleFunc("/members", s.listMembersHandler).Methods("GET")
	r.HandleFunc("/members/{id}", s.getMemberHandler).Methods("GET")
	r.HandleFunc("/members/{id}/pause", s.pauseMemberHandler).Methods("POST")
	r.HandleFunc("/members/{id}/history", s.memberHistoryHandler).Methods("GET")
	r.HandleFunc("/members/{id}/repayments", s.repayAcrossLoansHandler).Methods("POST")

	r.HandleFunc("/installments", s.createInstallmentHandler).Methods("POST")
	r.HandleFunc("/installments/{id}", s.updateInstallmentHandler).Methods("PUT")
	r.HandleFunc("/installments/{id}", s.deleteInstallmentHandler).Methods("DELETE")

	r.HandleFunc("/loans", s.approveLoanHandler).Methods("POST")
	r.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	r.HandleFunc("/loans/{id}", s.updateLoanHandler).Methods("PUT")
	r.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	r.HandleFunc("/loans/{id}/repayments", s.addRepaymentHandler).Methods("POST")
	r.HandleFunc("/loans/{id}/repayments/{rid}", s.updateRepaymentHandler).Methods("PUT")
	r.HandleFunc("/loans/{id}/repayments/{rid}", s.deleteRepaymentHandler).Methods("DELETE")

	r.HandleFunc("/expenses", s.createExpenseHandler).Methods("POST")
	r.HandleFunc("/expenses/{id}", s.updateExpenseHandler).Methods("PUT")
	r.HandleFunc("/expenses/{id}", s.deleteExpenseHandler).Methods("DELETE")

	r.HandleFunc("/transactions", s.transactionLogsHandler).Methods("GET")

	return r
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, ledger.ErrNoActiveMembers):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrImmutableLoan):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func pathID(r *http.Request, key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[key])
	return id, err == nil
}

// orNow substitutes the current time for an omitted date field.
func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func (s *Server) getFundHandler(w http.ResponseWriter, r *http.Request) {
	fund, err := s.ledger.Fund()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fund)
}

func (s *Server) createMemberHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	member, err := s.ledger.CreateMember(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (s *Server) listMembersHandler(w http.ResponseWriter, r *http.Request) {
	members, err := s.ledger.ListMembers()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) getMemberHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid member ID", http.StatusBadRequest)
		return
	}
	member, err := s.ledger.GetMember(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (s *Server) pauseMemberHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid member ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	member, err := s.ledger.SetMemberPaused(id, req.Paused)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (s *Server) memberHistoryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid member ID", http.StatusBadRequest)
		return
	}
	history, err := s.ledger.MemberHistory(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) createInstallmentHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID   uuid.UUID       `json:"member_id"`
		Amount     decimal.Decimal `json:"amount"`
		Date       time.Time       `json:"date"`
		RecordedBy string          `json:"recorded_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	inst, err := s.ledger.CreateInstallment(req.MemberID, req.Amount, orNow(req.Date), req.RecordedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

func (s *Server) updateInstallmentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid installment ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	inst, err := s.ledger.UpdateInstallment(id, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) deleteInstallmentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid installment ID", http.StatusBadRequest)
		return
	}
	if err := s.ledger.DeleteInstallment(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) approveLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID     uuid.UUID       `json:"member_id"`
		Amount       decimal.Decimal `json:"amount"`
		InterestRate decimal.Decimal `json:"interest_rate"`
		Date         time.Time       `json:"date"`
		ApprovedBy   string          `json:"approved_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	loan, err := s.ledger.ApproveLoan(req.MemberID, req.Amount, req.InterestRate, orNow(req.Date), req.ApprovedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	loan, err := s.ledger.GetLoan(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) updateLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	loan, err := s.ledger.UpdateLoan(id, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	if err := s.ledger.DeleteLoan(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addRepaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Date   time.Time       `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	loan, err := s.ledger.AddRepayment(id, req.Amount, orNow(req.Date))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) repayAcrossLoansHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid member ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
		Date   time.Time       `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := s.ledger.RepayAcrossLoans(id, req.Amount, orNow(req.Date))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) updateRepaymentHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	repaymentID, ok := pathID(r, "rid")
	if !ok {
		http.Error(w, "Invalid repayment ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	loan, err := s.ledger.UpdateRepayment(loanID, repaymentID, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) deleteRepaymentHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}
	repaymentID, ok := pathID(r, "rid")
	if !ok {
		http.Error(w, "Invalid repayment ID", http.StatusBadRequest)
		return
	}
	loan, err := s.ledger.DeleteRepayment(loanID, repaymentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) createExpenseHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		RecordedBy  string          `json:"recorded_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	expense, err := s.ledger.CreateExpense(req.Amount, req.Description, req.RecordedBy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, expense)
}

func (s *Server) updateExpenseHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid expense ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	expense, err := s.ledger.UpdateExpense(id, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expense)
}

func (s *Server) deleteExpenseHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		http.Error(w, "Invalid expense ID", http.StatusBadRequest)
		return
	}
	if err := s.ledger.DeleteExpense(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) transactionLogsHandler(w http.ResponseWriter, r *http.Request) {
	logs, err := s.ledger.TransactionLogs()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// A missing .env file is fine; env vars still apply.
	godotenv.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	addr := getEnv("ADDR", ":8080")
	backend := getEnv("COOPFUND_BACKEND", "sqlite")
	dbPath := getEnv("COOPFUND_DB", "coopfund.db")

	var storage store.Storage
	switch backend {
	case "memory":
		storage = store.NewMemoryStore()
	case "sqlite":
		s, err := store.NewSQLiteStore(dbPath)
		if err != nil {
			slog.Error("failed to initialize SQLite store", "error", err)
			os.Exit(1)
		}
		storage = s
	default:
		slog.Error("unknown backend", "backend", backend)
		os.Exit(1)
	}
	defer storage.Close()

	server := NewServer(storage)

	slog.Info("server starting", "addr", addr, "backend", backend)
	if err := http.ListenAndServe(addr, server.router()); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
