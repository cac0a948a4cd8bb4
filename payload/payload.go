// Package payload encodes and decodes the comma separated wallet action payload.
//
// The grammar is "<action>,<amount>" or "<action>,<amount>,<counterpartyPublicKey>".
// There is no escaping, so no field may contain a comma.
package payload

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	werrors "github.com/mezonai/simplewallet/errors"
)

type Action string

const (
	ActionDeposit  Action = "deposit"
	ActionWithdraw Action = "withdraw"
	ActionTransfer Action = "transfer"
	ActionBalance  Action = "balance"
)

const separator = ","

const (
	actionIndex       = 0
	amountIndex       = 1
	counterpartyIndex = 2
)

// Known reports whether a is one of the wallet actions
func (a Action) Known() bool {
	switch a {
	case ActionDeposit, ActionWithdraw, ActionTransfer, ActionBalance:
		return true
	}
	return false
}

// Mutating reports whether a changes state when applied
func (a Action) Mutating() bool {
	return a == ActionDeposit || a == ActionWithdraw || a == ActionTransfer
}

// Request is a decoded action. Amount stays raw text; it is validated by the processor.
type Request struct {
	Action       Action
	Amount       string
	Counterparty string
}

// HasCounterparty is true when the payload carried a third field
func (r *Request) HasCounterparty() bool {
	return r.Counterparty != ""
}

// ParseAmount returns the amount as an integer >= 1
func (r *Request) ParseAmount() (*uint256.Int, error) {
	return ParseAmount(r.Amount)
}

// ParseAmount accepts plain decimal digits only, and rejects zero
func ParseAmount(raw string) (*uint256.Int, error) {
	if raw == "" {
		return nil, werrors.NewError(werrors.ErrCodeMalformedRequest, werrors.ErrMsgInvalidAmount)
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return nil, werrors.NewError(werrors.ErrCodeMalformedRequest,
				fmt.Sprintf("%s, got %q", werrors.ErrMsgInvalidAmount, raw))
		}
	}
	amount, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeMalformedRequest, werrors.ErrMsgInvalidAmount, err)
	}
	if amount.IsZero() {
		return nil, werrors.NewError(werrors.ErrCodeMalformedRequest, werrors.ErrMsgInvalidAmount)
	}
	return amount, nil
}

// Encode serializes an action. counterparty must be set for transfer and only for transfer.
func Encode(action Action, amount *uint256.Int, counterparty string) ([]byte, error) {
	if strings.Contains(string(action), separator) || action == "" {
		return nil, werrors.NewError(werrors.ErrCodeMalformedRequest, fmt.Sprintf("invalid action %q", action))
	}
	if amount == nil {
		return nil, werrors.NewError(werrors.ErrCodeMalformedRequest, werrors.ErrMsgInvalidAmount)
	}
	if strings.Contains(counterparty, separator) {
		return nil, werrors.NewError(werrors.ErrCodeMalformedRequest, "counterparty must not contain a comma")
	}
	if action == ActionTransfer && counterparty == "" {
		return nil, werrors.NewError(werrors.ErrCodeMalformedRequest, werrors.ErrMsgInvalidCounterpart)
	}
	if action != ActionTransfer && counterparty != "" {
		return nil, werrors.NewError(werrors.ErrCodeMalformedRequest,
			fmt.Sprintf("counterparty is only allowed for %s", ActionTransfer))
	}

	fields := []string{string(action), amount.Dec()}
	if counterparty != "" {
		fields = append(fields, counterparty)
	}
	return []byte(strings.Join(fields, separator)), nil
}

// Decode splits a payload into its fields. Only the field count and that
// no field is empty are checked here.
func Decode(data []byte) (*Request, error) {
	fields := strings.Split(string(data), separator)
	if len(fields) != 2 && len(fields) != 3 {
		return nil, werrors.NewError(werrors.ErrCodeMalformedRequest,
			fmt.Sprintf("%s: expected 2 or 3 fields, got %d", werrors.ErrMsgMalformedPayload, len(fields)))
	}
	for i, field := range fields {
		if field == "" {
			return nil, werrors.NewError(werrors.ErrCodeMalformedRequest,
				fmt.Sprintf("%s: field %d is empty", werrors.ErrMsgMalformedPayload, i+1))
		}
	}

	req := &Request{
		Action: Action(fields[actionIndex]),
		Amount: fields[amountIndex],
	}
	if len(fields) == 3 {
		req.Counterparty = fields[counterpartyIndex]
	}
	return req, nil
}
