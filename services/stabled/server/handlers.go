package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pegvault/crypto"
	"pegvault/native/stable"
	"pegvault/observability"
	"pegvault/services/stabled/storage"
)

const (
	maxBodyBytes         = 1 << 20
	maxBatchInstructions = 64
)

var errJournalUnavailable = errors.New("journal unavailable")

func decodeJSON(w http.ResponseWriter, r *http.Request, out interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: decode request: %v", stable.ErrInvalidInput, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: request body must hold a single object", stable.ErrInvalidInput)
	}
	return nil
}

func pathAddress(r *http.Request, param string) (crypto.Address, error) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, param))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%w: %s: %v", stable.ErrInvalidInput, param, err)
	}
	return addr, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type configResponse struct {
	Initialized bool          `json:"initialized"`
	Config      stable.Config `json:"config"`
	PegPrice    string        `json:"pegPrice"`
	Paused      bool          `json:"paused"`
	CommitID    string        `json:"commitId,omitempty"`
	Sequence    uint64        `json:"sequence"`
	Vaults      int           `json:"vaults"`
	Benefactors int           `json:"benefactors"`
	Operators   int           `json:"operators"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	st := s.ledger.Snapshot()
	commitID, seq := s.ledger.Head()
	writeJSON(w, http.StatusOK, configResponse{
		Initialized: st.Initialized,
		Config:      st.Config,
		PegPrice:    stable.FormatPegPrice(st.Config.PegPriceUSD),
		Paused:      st.Config.Paused(),
		CommitID:    commitID,
		Sequence:    seq,
		Vaults:      len(st.Vaults),
		Benefactors: len(st.Benefactors),
		Operators:   len(st.Operators),
	})
}

type vaultResponse struct {
	stable.Vault
	MinOraclePrice string `json:"minOraclePrice"`
	MaxOraclePrice string `json:"maxOraclePrice"`
}

func (s *Server) handleVault(w http.ResponseWriter, r *http.Request) {
	mint, err := pathAddress(r, "mint")
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := s.ledger.Snapshot().Vault(mint)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vaultResponse{
		Vault:          v,
		MinOraclePrice: stable.FormatPegPrice(v.MinOraclePriceUSD),
		MaxOraclePrice: stable.FormatPegPrice(v.MaxOraclePriceUSD),
	})
}

func (s *Server) handleBenefactor(w http.ResponseWriter, r *http.Request) {
	authority, err := pathAddress(r, "authority")
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := s.ledger.Snapshot().Benefactor(authority)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type operatorResponse struct {
	stable.Operator
	Roles       []stable.Role `json:"roles"`
	UnknownMask uint64        `json:"unknownMask,omitempty"`
}

func (s *Server) handleOperator(w http.ResponseWriter, r *http.Request) {
	authority, err := pathAddress(r, "authority")
	if err != nil {
		writeError(w, err)
		return
	}
	o, err := s.ledger.Snapshot().Operator(authority)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, operatorResponse{Operator: o, Roles: o.Role.Roles(), UnknownMask: o.Role.UnknownMask()})
}

type quoteResponse struct {
	QuoteID     string      `json:"quoteId"`
	Operation   string      `json:"operation"`
	OraclePrice string      `json:"oraclePrice"`
	EvaluatedAt int64       `json:"evaluatedAt"`
	Quote       interface{} `json:"quote"`
}

func (s *Server) handleMintQuote(w http.ResponseWriter, r *http.Request) {
	s.serveQuote(w, r, stable.OperationMint)
}

func (s *Server) handleRedeemQuote(w http.ResponseWriter, r *http.Request) {
	s.serveQuote(w, r, stable.OperationRedeem)
}

func (s *Server) serveQuote(w http.ResponseWriter, r *http.Request, op stable.Operation) {
	ctx, span := s.tracer.Start(r.Context(), "quote."+string(op))
	defer span.End()
	start := time.Now()

	var req stable.ExchangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.quoteFailed(span, op, start, err)
		writeError(w, err)
		return
	}
	span.SetAttributes(
		attribute.String("vault", req.Vault.String()),
		attribute.Int64("amount_in", int64(req.AmountIn)),
	)
	now := s.ledger.Now()
	if err := s.checkSampleAge(req.Samples, now); err != nil {
		s.quoteFailed(span, op, start, err)
		writeError(w, err)
		return
	}
	if req.Benefactor.IsZero() {
		err := fmt.Errorf("%w: benefactor required", stable.ErrInvalidInput)
		s.quoteFailed(span, op, start, err)
		writeError(w, err)
		return
	}

	st := s.ledger.Snapshot()
	audit := &storage.QuoteRecord{
		ID:         s.newID(),
		Operation:  string(op),
		Vault:      req.Vault.String(),
		Benefactor: req.Benefactor.String(),
		AmountIn:   req.AmountIn,
	}
	var (
		quote interface{}
		price uint64
		err   error
	)
	switch op {
	case stable.OperationMint:
		var q stable.MintQuote
		q, price, err = stable.PreviewMint(st, req, now)
		quote, audit.AmountOut, audit.FeeAmount = q, q.MintAmount, q.FeeAmount
	default:
		var q stable.RedeemQuote
		q, price, err = stable.PreviewRedeem(st, req, now)
		quote, audit.AmountOut, audit.FeeAmount = q, q.RedeemAmount, q.FeeAmount
	}
	audit.OraclePrice = price
	if err != nil {
		audit.Error = truncate(err.Error(), 256)
	}
	if s.journal != nil {
		if recErr := s.journal.RecordQuote(ctx, audit); recErr != nil {
			s.logger.Warn("record quote failed", "error", recErr)
		}
	}
	if err != nil {
		s.quoteFailed(span, op, start, err)
		writeError(w, err)
		return
	}
	observability.Stable().Observe("quote_"+string(op), time.Since(start), "")
	writeJSON(w, http.StatusOK, quoteResponse{
		QuoteID:     audit.ID,
		Operation:   string(op),
		OraclePrice: stable.FormatOraclePrice(price),
		EvaluatedAt: now,
		Quote:       quote,
	})
}

func (s *Server) checkSampleAge(samples []stable.OracleSample, now int64) error {
	if s.cfg.MaxOracleAge <= 0 {
		return nil
	}
	maxAge := int64(s.cfg.MaxOracleAge / time.Second)
	for i, sample := range samples {
		if now-sample.PublishTime > maxAge {
			return fmt.Errorf("%w: sample %d is older than %s", stable.ErrInvalidInput, i, s.cfg.MaxOracleAge)
		}
	}
	return nil
}

func (s *Server) quoteFailed(span trace.Span, op stable.Operation, start time.Time, err error) {
	kind := stable.Kind(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, kind)
	var violation *stable.PeriodLimitViolation
	if errors.As(err, &violation) {
		observability.Stable().RecordViolation(string(violation.Scope), string(op))
	}
	observability.Stable().Observe("quote_"+string(op), time.Since(start), kind)
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "internal", errJournalUnavailable.Error())
		return
	}
	rec, err := s.journal.GetQuote(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "not_found", "quote not found")
		return
	}
	if err != nil {
		s.logger.Error("load quote failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal", http.StatusText(http.StatusInternalServerError))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type limitCheckRequest struct {
	Vault      crypto.Address `json:"vault"`
	Benefactor crypto.Address `json:"benefactor"`
	Operation  string         `json:"operation"`
	Amount     uint64         `json:"amount"`
}

type limitCheckResponse struct {
	Allowed     bool                         `json:"allowed"`
	EvaluatedAt int64                        `json:"evaluatedAt"`
	Violation   *stable.PeriodLimitViolation `json:"violation,omitempty"`
}

func (s *Server) handleLimitCheck(w http.ResponseWriter, r *http.Request) {
	var req limitCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	op, err := stable.ParseOperation(req.Operation)
	if err != nil {
		writeError(w, err)
		return
	}
	st := s.ledger.Snapshot()
	v, err := st.Vault(req.Vault)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := st.Benefactor(req.Benefactor)
	if err != nil {
		writeError(w, err)
		return
	}
	now := s.ledger.Now()
	violation, err := stable.FindPeriodLimitViolation(req.Amount, op, b, st.Config, v, now)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, limitCheckResponse{
		Allowed:     violation == nil,
		EvaluatedAt: now,
		Violation:   violation,
	})
}

type batchRequest struct {
	Instructions []stable.Instruction `json:"instructions"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
		return
	}
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Instructions) > maxBatchInstructions {
		writeError(w, fmt.Errorf("%w: at most %d instructions per batch", stable.ErrInvalidInput, maxBatchInstructions))
		return
	}
	commit, err := s.ledger.Submit(r.Context(), principal.Authority, req.Instructions)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commit)
}

func (s *Server) handleListCommits(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "internal", errJournalUnavailable.Error())
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid_input", "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	recs, err := s.journal.ListCommits(r.Context(), limit)
	if err != nil {
		s.logger.Error("list commits failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal", http.StatusText(http.StatusInternalServerError))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"commits": recs})
}

func (s *Server) handleGetCommit(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "internal", errJournalUnavailable.Error())
		return
	}
	rec, err := s.journal.GetCommit(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "not_found", "commit not found")
		return
	}
	if err != nil {
		s.logger.Error("load commit failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal", http.StatusText(http.StatusInternalServerError))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
