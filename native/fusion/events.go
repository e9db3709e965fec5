package fusion

import (
	"encoding/hex"
	"strconv"

	"fusionswap/core/events"
)

const (
	EventTypeEscrowCreated           = "fusion.escrow.created"
	EventTypeEscrowFilled            = "fusion.escrow.filled"
	EventTypeEscrowClosed            = "fusion.escrow.closed"
	EventTypeEscrowCancelled         = "fusion.escrow.cancelled"
	EventTypeEscrowResolverCancelled = "fusion.escrow.resolver_cancelled"
)

// NewCreatedEvent returns the canonical payload for a newly created escrow.
func NewCreatedEvent(esc *Escrow) events.Event {
	attrs := escrowAttributes(esc)
	return events.Event{Type: EventTypeEscrowCreated, Attributes: attrs}
}

// NewFilledEvent returns the payload emitted after a successful fill,
// including the three-way split of the counter-amount.
func NewFilledEvent(esc *Escrow, result *FillResult) events.Event {
	attrs := escrowAttributes(esc)
	if result != nil {
		attrs["dstAmount"] = strconv.FormatUint(result.DstAmount, 10)
		attrs["protocolFee"] = strconv.FormatUint(result.ProtocolFeeAmount, 10)
		attrs["integratorFee"] = strconv.FormatUint(result.IntegratorFeeAmount, 10)
		attrs["makerAmount"] = strconv.FormatUint(result.MakerDstAmount, 10)
	}
	return events.Event{Type: EventTypeEscrowFilled, Attributes: attrs}
}

// NewClosedEvent returns the payload emitted when a fill exhausts the escrow.
func NewClosedEvent(esc *Escrow) events.Event {
	return events.Event{Type: EventTypeEscrowClosed, Attributes: escrowAttributes(esc)}
}

// NewCancelledEvent returns the payload for a maker cancellation.
func NewCancelledEvent(esc *Escrow) events.Event {
	return events.Event{Type: EventTypeEscrowCancelled, Attributes: escrowAttributes(esc)}
}

// NewResolverCancelledEvent returns the payload for a resolver cancellation,
// including the premium charged against the locked funds.
func NewResolverCancelledEvent(esc *Escrow, result *CancelResult) events.Event {
	attrs := escrowAttributes(esc)
	if result != nil {
		attrs["premium"] = strconv.FormatUint(result.Premium, 10)
		attrs["returned"] = strconv.FormatUint(result.ReturnedAmount, 10)
	}
	return events.Event{Type: EventTypeEscrowResolverCancelled, Attributes: attrs}
}

func escrowAttributes(esc *Escrow) map[string]string {
	attrs := make(map[string]string)
	if esc == nil {
		return attrs
	}
	attrs["orderHash"] = hex.EncodeToString(esc.OrderHash[:])
	attrs["maker"] = hex.EncodeToString(esc.Maker[:])
	attrs["srcMint"] = hex.EncodeToString(esc.SrcMint[:])
	attrs["dstMint"] = hex.EncodeToString(esc.DstMint[:])
	attrs["remaining"] = strconv.FormatUint(esc.RemainingAmount, 10)
	attrs["srcAmount"] = strconv.FormatUint(esc.SrcAmount, 10)
	return attrs
}
