package domain

import (
	"fmt"
	"time"
)

// CandidateSource identifies the notification feed a Candidate came from.
type CandidateSource string

const (
	SourceLogs    CandidateSource = "logs"
	SourceProgram CandidateSource = "program"
	SourceAccount CandidateSource = "account"
)

// AccountMeta is one account reference of an instruction.
type AccountMeta struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

// Instruction is a program invocation in its raw, undecoded form.
type Instruction struct {
	ProgramID string        `json:"program_id"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      []byte        `json:"data"`
}

// Candidate is a normalized chain event that has not been classified yet.
type Candidate struct {
	Signature    string          `json:"signature"`
	Slot         uint64          `json:"slot"`
	Timestamp    time.Time       `json:"timestamp"`
	Source       CandidateSource `json:"source"`
	Instructions []Instruction   `json:"instructions"`
	Logs         []string        `json:"logs,omitempty"`
	// SwapHint is set when the transaction logs carry a swap marker.
	SwapHint bool `json:"swap_hint"`
	// Failed is set when the notification reported a transaction error.
	Failed bool `json:"failed"`
}

// Programs returns the distinct program ids referenced by the candidate, in
// first-seen order.
func (c Candidate) Programs() []string {
	seen := make(map[string]struct{}, len(c.Instructions))
	out := make([]string, 0, len(c.Instructions))
	for _, ix := range c.Instructions {
		if _, ok := seen[ix.ProgramID]; ok {
			continue
		}
		seen[ix.ProgramID] = struct{}{}
		out = append(out, ix.ProgramID)
	}
	return out
}

// SwapKind is the opcode family of a decoded instruction.
type SwapKind string

const (
	InstructionSwap     SwapKind = "swap"
	InstructionTransfer SwapKind = "transfer"
	InstructionOther    SwapKind = "other"
)

// DecodedInstruction is the typed result of a protocol decoder.
type DecodedInstruction struct {
	Kind      SwapKind
	ProgramID string
	TokenIn   string
	TokenOut  string
	AmountIn  uint64
	MinOut    uint64
	Pool      string
}

// Key identifies the candidate for deduplication. Transaction candidates use
// their signature; account updates have none and use source, first account
// and slot instead.
func (c Candidate) Key() string {
	if c.Signature != "" {
		return c.Signature
	}
	account := ""
	if len(c.Instructions) > 0 && len(c.Instructions[0].Accounts) > 0 {
		account = c.Instructions[0].Accounts[0].Pubkey
	}
	return fmt.Sprintf("%s:%s:%d", c.Source, account, c.Slot)
}
