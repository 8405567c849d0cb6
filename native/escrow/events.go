package escrow

import (
	"math/big"
	"strconv"

	"gigchain/core/types"
	"gigchain/crypto"
)

const (
	EventTypeCustodyCreated      = "escrow.custody.created"
	EventTypeCustodyFunded       = "escrow.custody.funded"
	EventTypeCustodyReleased     = "escrow.custody.released"
	EventTypeCustodyCancelled    = "escrow.custody.cancelled"
	EventTypeFeeConfigUpdated    = "escrow.fee_config.updated"
	EventTypeCollaboratorUpdated = "escrow.collaborator.updated"
	EventTypeAdminUpdated        = "escrow.admin.updated"
)

// Collaborator kinds carried by EventTypeCollaboratorUpdated.
const (
	CollaboratorIdentityDirectory = "identity_directory"
	CollaboratorJobLedger         = "job_ledger"
)

// NewCustodyCreatedEvent returns the canonical event payload for a newly
// opened custody record.
func NewCustodyCreatedEvent(c *Custody) *types.Event {
	attrs := custodyAttributes(c)
	if c != nil {
		attrs["client"] = crypto.FormatAddress(c.Client)
		attrs["freelancer"] = crypto.FormatAddress(c.Freelancer)
		attrs["token"] = crypto.FormatAddress(c.Token)
		attrs["amount"] = amountString(c.Amount)
	}
	return &types.Event{Type: EventTypeCustodyCreated, Attributes: attrs}
}

// NewCustodyFundedEvent returns the canonical event payload emitted when the
// client deposits the custody amount.
func NewCustodyFundedEvent(c *Custody, timestamp int64) *types.Event {
	attrs := custodyAttributes(c)
	if c != nil {
		attrs["amount"] = amountString(c.Amount)
	}
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeCustodyFunded, Attributes: attrs}
}

// NewCustodyReleasedEvent returns the canonical event payload for a release of
// custody funds to the freelancer.
func NewCustodyReleasedEvent(c *Custody, payout, fee *big.Int, timestamp int64) *types.Event {
	attrs := custodyAttributes(c)
	if c != nil {
		attrs["freelancer"] = crypto.FormatAddress(c.Freelancer)
	}
	attrs["payout"] = amountString(payout)
	attrs["fee"] = amountString(fee)
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeCustodyReleased, Attributes: attrs}
}

// NewCustodyCancelledEvent returns the canonical event payload for a refund of
// the custody amount to the client.
func NewCustodyCancelledEvent(c *Custody, timestamp int64) *types.Event {
	attrs := custodyAttributes(c)
	if c != nil {
		attrs["client"] = crypto.FormatAddress(c.Client)
		attrs["amountReturned"] = amountString(c.Amount)
	}
	attrs["timestamp"] = strconv.FormatInt(timestamp, 10)
	return &types.Event{Type: EventTypeCustodyCancelled, Attributes: attrs}
}

// NewFeeConfigUpdatedEvent returns the payload emitted when the administrator
// changes the fee split.
func NewFeeConfigUpdatedEvent(percent uint8, recipient [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeFeeConfigUpdated,
		Attributes: map[string]string{
			"feePercent":   strconv.FormatUint(uint64(percent), 10),
			"feeRecipient": crypto.FormatAddress(recipient),
		},
	}
}

// NewCollaboratorUpdatedEvent returns the payload emitted when an upstream
// module reference is rebound.
func NewCollaboratorUpdatedEvent(kind string, addr [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeCollaboratorUpdated,
		Attributes: map[string]string{
			"kind":    kind,
			"address": crypto.FormatAddress(addr),
		},
	}
}

// NewAdminUpdatedEvent returns the payload emitted when administration is
// handed over.
func NewAdminUpdatedEvent(previous, next [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeAdminUpdated,
		Attributes: map[string]string{
			"previous": crypto.FormatAddress(previous),
			"admin":    crypto.FormatAddress(next),
		},
	}
}

func custodyAttributes(c *Custody) map[string]string {
	attrs := make(map[string]string)
	if c == nil {
		return attrs
	}
	attrs["jobId"] = strconv.FormatUint(c.JobID, 10)
	return attrs
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
