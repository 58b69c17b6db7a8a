package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"lukechampine.com/blake3"

	"pegvault/core/events"
	"pegvault/core/types"
	"pegvault/crypto"
	"pegvault/native/stable"
	"pegvault/observability"
	"pegvault/services/stabled/storage"
	kvstore "pegvault/storage"
)

var (
	headKey = []byte("stabled/head")
	tracer  = otel.Tracer("pegvault/services/stabled/ledger")
)

// Journal receives a record of every committed batch.
type Journal interface {
	RecordCommit(ctx context.Context, rec *storage.CommitRecord) error
}

// Bootstrap produces the initial protocol state when the store is empty.
type Bootstrap func(now int64) (stable.State, error)

// Commit describes an applied batch.
type Commit struct {
	ID        string             `json:"commitId"`
	Sequence  uint64             `json:"sequence"`
	Timestamp int64              `json:"timestamp"`
	Signer    string             `json:"signer"`
	Result    stable.BatchResult `json:"result"`
	Events    []types.Event      `json:"events"`
}

type storedHead struct {
	Hash     [32]byte
	Sequence uint64
}

type commitEnvelope struct {
	Parent       [32]byte
	Signer       [32]byte
	Timestamp    uint64
	Instructions []wireInstruction
}

type wireInstruction struct {
	Kind    string
	Payload []byte
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock overrides the wall clock used for batch timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// Ledger is the single writer for protocol state. Batches are serialised, persisted
// atomically together with the commit head and then journalled.
type Ledger struct {
	mu      sync.RWMutex
	state   stable.State
	head    storedHead
	kv      *kvstore.KV
	store   *stable.Store
	journal Journal
	logger  *slog.Logger
	now     func() time.Time
	metrics *observability.StableMetrics
}

// New loads persisted state from db, bootstrapping it when the store is empty.
func New(db kvstore.Database, journal Journal, bootstrap Bootstrap, opts ...Option) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger: database required")
	}
	kv := kvstore.NewKV(db)
	l := &Ledger{
		kv:      kv,
		store:   stable.NewStore(kv),
		journal: journal,
		logger:  slog.Default(),
		now:     time.Now,
		metrics: observability.Stable(),
	}
	for _, opt := range opts {
		opt(l)
	}
	st, err := l.store.Load()
	if err != nil {
		return nil, fmt.Errorf("ledger: load state: %w", err)
	}
	if _, err := kv.KVGet(headKey, &l.head); err != nil {
		return nil, fmt.Errorf("ledger: load head: %w", err)
	}
	if !st.Initialized {
		if bootstrap == nil {
			return nil, fmt.Errorf("ledger: store is empty and no bootstrap was provided")
		}
		st, err = bootstrap(l.now().Unix())
		if err != nil {
			return nil, fmt.Errorf("ledger: bootstrap: %w", err)
		}
		if !st.Initialized {
			return nil, fmt.Errorf("ledger: bootstrap produced an uninitialised state")
		}
		if err := l.store.Save(st); err != nil {
			return nil, fmt.Errorf("ledger: persist bootstrap: %w", err)
		}
		l.logger.Info("bootstrapped protocol state", "vaults", len(st.Vaults), "benefactors", len(st.Benefactors), "operators", len(st.Operators))
	}
	l.state = st
	l.refreshGauges()
	return l, nil
}

// Snapshot returns a copy of the current state.
func (l *Ledger) Snapshot() stable.State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Clone()
}

// Head returns the latest commit id and sequence. The id is empty before the first batch.
func (l *Ledger) Head() (string, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.head.Sequence == 0 {
		return "", 0
	}
	return hex.EncodeToString(l.head.Hash[:]), l.head.Sequence
}

// Now returns the ledger clock in unix seconds.
func (l *Ledger) Now() int64 {
	return l.now().Unix()
}

// Submit applies a batch signed by signer. Nothing is persisted when any instruction fails.
func (l *Ledger) Submit(ctx context.Context, signer crypto.Address, instrs []stable.Instruction) (Commit, error) {
	ctx, span := tracer.Start(ctx, "ledger.submit", trace.WithAttributes(
		attribute.String("signer", signer.String()),
		attribute.Int("instructions", len(instrs)),
	))
	defer span.End()
	start := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().Unix()
	next, result, err := stable.ApplyInstructions(l.state, signer, instrs, now)
	if err != nil {
		l.observeFailure(err, start)
		span.RecordError(err)
		span.SetStatus(codes.Error, stable.Kind(err))
		return Commit{}, err
	}
	hash, err := hashCommit(l.head.Hash, signer, now, instrs)
	if err != nil {
		err = fmt.Errorf("ledger: commit id: %w", err)
		l.observeFailure(err, start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit id")
		return Commit{}, err
	}
	head := storedHead{Hash: hash, Sequence: l.head.Sequence + 1}
	if err := l.store.Save(next, kvstore.KVWrite{Key: headKey, Value: &head}); err != nil {
		err = fmt.Errorf("ledger: persist state: %w", err)
		l.observeFailure(err, start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist")
		return Commit{}, err
	}
	l.state = next
	l.head = head

	commit := Commit{
		ID:        hex.EncodeToString(hash[:]),
		Sequence:  head.Sequence,
		Timestamp: now,
		Signer:    signer.String(),
		Result:    result,
		Events:    events.Flatten(result.Events),
	}
	span.SetAttributes(attribute.String("commit_id", commit.ID))
	l.journalCommit(ctx, commit, instrs)
	for _, ev := range commit.Events {
		l.metrics.RecordEvent(ev)
	}
	l.refreshGauges()
	l.metrics.Observe("batch", time.Since(start), "")
	l.logger.Info("batch committed",
		"commit_id", commit.ID,
		"sequence", commit.Sequence,
		"signer", commit.Signer,
		"instructions", len(instrs),
		"events", len(commit.Events))
	return commit, nil
}

func (l *Ledger) journalCommit(ctx context.Context, commit Commit, instrs []stable.Instruction) {
	if l.journal == nil {
		return
	}
	rec, err := journalRecord(commit, instrs)
	if err == nil {
		err = l.journal.RecordCommit(ctx, rec)
	}
	if err != nil {
		l.logger.Warn("journal commit failed", "commit_id", commit.ID, "error", err)
	}
}

func journalRecord(commit Commit, instrs []stable.Instruction) (*storage.CommitRecord, error) {
	encodedInstrs, err := json.Marshal(instrs)
	if err != nil {
		return nil, err
	}
	encodedEvents, err := json.Marshal(commit.Events)
	if err != nil {
		return nil, err
	}
	encodedResult, err := json.Marshal(commit.Result)
	if err != nil {
		return nil, err
	}
	return &storage.CommitRecord{
		CommitID:     commit.ID,
		Signer:       commit.Signer,
		Instructions: string(encodedInstrs),
		Events:       string(encodedEvents),
		Result:       string(encodedResult),
	}, nil
}

func (l *Ledger) observeFailure(err error, start time.Time) {
	var violation *stable.PeriodLimitViolation
	if errors.As(err, &violation) {
		l.metrics.RecordViolation(string(violation.Scope), string(violation.Operation))
	}
	kind := stable.Kind(err)
	l.metrics.Observe("batch", time.Since(start), kind)
	if kind == "internal" {
		l.logger.Error("batch failed", "kind", kind, "error", err)
		return
	}
	l.logger.Info("batch rejected", "kind", kind, "error", err)
}

// refreshGauges must be called with l.mu held or before the ledger is shared.
func (l *Ledger) refreshGauges() {
	if !l.state.Initialized {
		return
	}
	l.metrics.SetPaused(l.state.Config.Paused())
	l.metrics.SetPegPrice(l.state.Config.PegPriceUSD)
	for mint, v := range l.state.Vaults {
		l.metrics.RecordVaultBalance(mint.String(), v.Balance)
	}
}

// commitHash is blake3 over the RLP encoding of the batch chained to its parent.
// hashCommit derives commit ids; tests replace it to exercise the failure path.
var hashCommit = commitHash

func commitHash(parent [32]byte, signer crypto.Address, now int64, instrs []stable.Instruction) ([32]byte, error) {
	env := commitEnvelope{Parent: parent, Signer: [32]byte(signer), Timestamp: uint64(now)}
	for _, instr := range instrs {
		env.Instructions = append(env.Instructions, wireInstruction{Kind: instr.Kind, Payload: []byte(instr.Payload)})
	}
	encoded, err := rlp.EncodeToBytes(&env)
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(encoded), nil
}
