package token

import (
	"math/big"

	"gigchain/core/types"
	"gigchain/crypto"
)

const (
	EventTypeTransfer = "token.transfer"
	EventTypeApproval = "token.approval"
)

// Transfer is emitted for every balance movement, including mints where From
// is the zero address.
type Transfer struct {
	Token  [20]byte
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

// EventType implements the Event interface.
func (Transfer) EventType() string { return EventTypeTransfer }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e Transfer) Event() *types.Event {
	return &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"token":  crypto.FormatAddress(e.Token),
			"from":   crypto.FormatAddress(e.From),
			"to":     crypto.FormatAddress(e.To),
			"amount": amountString(e.Amount),
		},
	}
}

// Approval is emitted when an owner sets a spender allowance.
type Approval struct {
	Token   [20]byte
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

// EventType implements the Event interface.
func (Approval) EventType() string { return EventTypeApproval }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e Approval) Event() *types.Event {
	return &types.Event{
		Type: EventTypeApproval,
		Attributes: map[string]string{
			"token":   crypto.FormatAddress(e.Token),
			"owner":   crypto.FormatAddress(e.Owner),
			"spender": crypto.FormatAddress(e.Spender),
			"amount":  amountString(e.Amount),
		},
	}
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
