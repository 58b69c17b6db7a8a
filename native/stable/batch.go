package stable

import (
	"fmt"

	"pegvault/core/events"
	"pegvault/crypto"
)

// BatchResult collects what a committed batch produced.
type BatchResult struct {
	Events       []events.Event `json:"-"`
	MintQuotes   []MintQuote    `json:"mintQuotes,omitempty"`
	RedeemQuotes []RedeemQuote  `json:"redeemQuotes,omitempty"`
	Closures     []Closure      `json:"closures,omitempty"`
}

// BatchError identifies the instruction that aborted a batch.
type BatchError struct {
	Index int
	Kind  string
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("instruction %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// ApplyBatch applies actions in order against a copy of st. Later actions observe the
// effects of earlier ones. When any action fails the copy is discarded and st is
// returned unchanged together with a *BatchError.
func ApplyBatch(st State, signer crypto.Address, actions []Action, now int64) (State, BatchResult, error) {
	if len(actions) == 0 {
		return st, BatchResult{}, fmt.Errorf("%w: empty batch", ErrInvalidInput)
	}
	working := st.Clone()
	recorder := &events.Recorder{}
	result := BatchResult{}
	tx := &batchTx{st: &working, signer: signer, now: now, emitter: recorder, result: &result}
	for i, action := range actions {
		if action == nil {
			return st, BatchResult{}, &BatchError{Index: i, Err: ErrUnknownInstruction}
		}
		if err := action.apply(tx); err != nil {
			return st, BatchResult{}, &BatchError{Index: i, Kind: action.Kind(), Err: err}
		}
	}
	result.Events = recorder.Events()
	return working, result, nil
}

// DecodeInstructions resolves wire instructions to actions.
func DecodeInstructions(instrs []Instruction) ([]Action, error) {
	out := make([]Action, 0, len(instrs))
	for i, instr := range instrs {
		action, err := instr.Decode()
		if err != nil {
			return nil, &BatchError{Index: i, Kind: instr.Kind, Err: err}
		}
		out = append(out, action)
	}
	return out, nil
}

// ApplyInstructions decodes and applies a wire batch.
func ApplyInstructions(st State, signer crypto.Address, instrs []Instruction, now int64) (State, BatchResult, error) {
	actions, err := DecodeInstructions(instrs)
	if err != nil {
		return st, BatchResult{}, err
	}
	return ApplyBatch(st, signer, actions, now)
}
