package listener

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

var swapMarkers = []string{"Instruction: Swap", "ExactIn", "ExactOut"}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcMessage covers both subscription acks and notifications.
type rpcMessage struct {
	ID     *uint64             `json:"id"`
	Method string              `json:"method"`
	Params *notificationParams `json:"params"`
	Result json.RawMessage     `json:"result"`
	Error  *rpcError           `json:"error"`
}

type notificationParams struct {
	Subscription uint64          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type contextual struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value json.RawMessage `json:"value"`
}

type logsValue struct {
	Signature string          `json:"signature"`
	Err       json.RawMessage `json:"err"`
	Logs      []string        `json:"logs"`
}

type accountValue struct {
	Data     json.RawMessage `json:"data"`
	Owner    string          `json:"owner"`
	Lamports uint64          `json:"lamports"`
}

type programValue struct {
	Pubkey  string       `json:"pubkey"`
	Account accountValue `json:"account"`
}

var errMalformed = errors.New("listener: malformed message")

// parseNotification converts one notification into at most one Candidate.
// A nil Candidate with a nil error means the message is valid but carries
// nothing actionable. resolve maps an account subscription id to the
// watched pubkey.
func parseNotification(msg rpcMessage, now time.Time, resolve func(sub uint64) string) (*domain.Candidate, error) {
	if msg.Params == nil {
		return nil, fmt.Errorf("%w: %s without params", errMalformed, msg.Method)
	}
	var res contextual
	if err := json.Unmarshal(msg.Params.Result, &res); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if len(res.Value) == 0 || string(res.Value) == "null" {
		return nil, fmt.Errorf("%w: %s without value", errMalformed, msg.Method)
	}

	switch msg.Method {
	case "logsNotification":
		return parseLogs(res, now)
	case "programNotification":
		var v programValue
		if err := json.Unmarshal(res.Value, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformed, err)
		}
		return accountCandidate(domain.SourceProgram, v.Pubkey, v.Account, res.Context.Slot, now)
	case "accountNotification":
		var v accountValue
		if err := json.Unmarshal(res.Value, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", errMalformed, err)
		}
		return accountCandidate(domain.SourceAccount, resolve(msg.Params.Subscription), v, res.Context.Slot, now)
	default:
		return nil, nil
	}
}

func parseLogs(res contextual, now time.Time) (*domain.Candidate, error) {
	var v logsValue
	if err := json.Unmarshal(res.Value, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if v.Signature == "" {
		return nil, fmt.Errorf("%w: logs without signature", errMalformed)
	}
	// Failed transactions already landed without effect.
	if len(v.Err) > 0 && string(v.Err) != "null" {
		return nil, nil
	}

	c := &domain.Candidate{
		Signature: v.Signature,
		Slot:      res.Context.Slot,
		Timestamp: now,
		Source:    domain.SourceLogs,
		Logs:      v.Logs,
	}
	for _, line := range v.Logs {
		if !c.SwapHint && hasSwapMarker(line) {
			c.SwapHint = true
		}
		if program, ok := invokedProgram(line); ok {
			c.Instructions = append(c.Instructions, domain.Instruction{ProgramID: program})
		}
	}
	return c, nil
}

func hasSwapMarker(line string) bool {
	for _, m := range swapMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

// invokedProgram extracts the program id from "Program <id> invoke [n]".
func invokedProgram(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) >= 3 && fields[0] == "Program" && fields[2] == "invoke" {
		return fields[1], true
	}
	return "", false
}

func accountCandidate(src domain.CandidateSource, pubkey string, acc accountValue, slot uint64, now time.Time) (*domain.Candidate, error) {
	if pubkey == "" || acc.Owner == "" {
		return nil, fmt.Errorf("%w: account update without pubkey or owner", errMalformed)
	}
	data, err := decodeAccountData(acc.Data)
	if err != nil {
		return nil, err
	}
	return &domain.Candidate{
		Slot:      slot,
		Timestamp: now,
		Source:    src,
		Instructions: []domain.Instruction{{
			ProgramID: acc.Owner,
			Accounts:  []domain.AccountMeta{{Pubkey: pubkey, IsWritable: true}},
			Data:      data,
		}},
	}, nil
}

// decodeAccountData accepts ["<b64>", "base64"] as sent for base64
// subscriptions.
func decodeAccountData(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var pair []string
	if err := json.Unmarshal(raw, &pair); err != nil {
		return nil, fmt.Errorf("%w: account data: %v", errMalformed, err)
	}
	if len(pair) != 2 || pair[1] != "base64" {
		return nil, fmt.Errorf("%w: unsupported account data encoding", errMalformed)
	}
	data, err := base64.StdEncoding.DecodeString(pair[0])
	if err != nil {
		return nil, fmt.Errorf("%w: account data: %v", errMalformed, err)
	}
	return data, nil
}
