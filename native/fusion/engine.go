package fusion

import (
	"time"

	"fusionswap/core/events"
)

// engineState is the narrow escrow-store surface the engine needs. The escrow
// address doubles as the tamper check: callers presenting different terms
// derive a different hash and the lookup fails.
type engineState interface {
	EscrowPut(*Escrow) error
	EscrowGet(maker, orderHash [32]byte) (*Escrow, bool)
	EscrowDelete(maker, orderHash [32]byte) error
}

// engineLedger applies the asset movements an operation directs. Apply must be
// atomic: either all movements commit or none do.
type engineLedger interface {
	Apply(movements []Movement) error
}

// ResolverAccess gates fill and resolver-cancel callers. A nil implementation
// on the engine means open access.
type ResolverAccess interface {
	Allowed(addr [32]byte) bool
}

// Engine is the escrow lifecycle state machine. All time-dependent behaviour
// is a pure function of a single timestamp sampled once per call, so every
// operation is replayable without a live clock.
type Engine struct {
	state     engineState
	ledger    engineLedger
	emitter   events.Emitter
	whitelist ResolverAccess
	nowFn     func() int64
}

// NewEngine creates an engine with a no-op emitter and open resolver access.
func NewEngine(state engineState, ledger engineLedger) *Engine {
	return &Engine{
		state:   state,
		ledger:  ledger,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetResolverAccess configures the whitelist gating fills and resolver
// cancellations. Passing nil opens access.
func (e *Engine) SetResolverAccess(access ResolverAccess) { e.whitelist = access }

// SetNowFunc overrides the time source. Primarily intended for tests to
// provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 { return e.nowFn() }

func (e *Engine) emit(event events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(event)
	}
}

func (e *Engine) resolverAllowed(addr [32]byte) bool {
	return e.whitelist == nil || e.whitelist.Allowed(addr)
}

// FillResult reports the settlement of one fill.
type FillResult struct {
	OrderHash           [32]byte
	DstAmount           uint64
	ProtocolFeeAmount   uint64
	IntegratorFeeAmount uint64
	MakerDstAmount      uint64
	RemainingAmount     uint64
	Closed              bool
	Movements           []Movement
}

// CancelResult reports a maker or resolver cancellation.
type CancelResult struct {
	OrderHash      [32]byte
	Premium        uint64
	ReturnedAmount uint64
	Movements      []Movement
}

// Create validates the order, locks the source amount under the escrow vault
// address, and persists the escrow. The escrow identity is the hash of the
// full order config, so concurrent orders from one maker stay distinct via the
// order id.
func (e *Engine) Create(maker [32]byte, reduced ReducedOrderConfig, accounts OrderAccounts) (*Escrow, error) {
	order := BuildOrder(reduced, accounts)
	now := e.now()
	if err := order.Validate(now); err != nil {
		return nil, err
	}

	orderHash := OrderHash(order)
	if _, ok := e.state.EscrowGet(maker, orderHash); ok {
		return nil, ErrEscrowExists
	}

	vault := EscrowVaultAddress(maker, orderHash)
	movements := []Movement{{
		Asset:  TokenAsset(order.SrcMint),
		From:   maker,
		To:     vault,
		Amount: order.SrcAmount,
	}}
	if err := e.ledger.Apply(movements); err != nil {
		return nil, err
	}

	esc := &Escrow{
		OrderHash:       orderHash,
		Maker:           maker,
		SrcMint:         order.SrcMint,
		DstMint:         order.DstMint,
		NativeDst:       order.NativeDstAsset,
		SrcAmount:       order.SrcAmount,
		RemainingAmount: order.SrcAmount,
		CreatedAt:       uint64(now),
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(esc))
	return esc.Clone(), nil
}

// Fill settles part of the order: the taker receives amount of the source
// asset from the escrow and pays the auction-priced counter-amount, split
// between the protocol, the integrator, and the maker's receiver. Exhausting
// the escrow closes it.
func (e *Engine) Fill(taker, maker [32]byte, reduced ReducedOrderConfig, accounts OrderAccounts, amount uint64) (*FillResult, error) {
	now := e.now()
	if now > int64(reduced.ExpirationTime) {
		return nil, ErrOrderExpired
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if !e.resolverAllowed(taker) {
		return nil, ErrResolverAccessDenied
	}

	order := BuildOrder(reduced, accounts)
	orderHash := OrderHash(order)
	esc, ok := e.state.EscrowGet(maker, orderHash)
	if !ok {
		return nil, ErrEscrowNotFound
	}
	if amount > esc.RemainingAmount {
		return nil, ErrNotEnoughTokensInEscrow
	}

	dstAmount, err := DstAmount(order.SrcAmount, order.MinDstAmount, amount, &order.DutchAuctionData, now)
	if err != nil {
		return nil, err
	}
	estimatedDstAmount, err := DstAmount(order.SrcAmount, order.EstimatedDstAmount, amount, nil, now)
	if err != nil {
		return nil, err
	}
	protocolFeeAmount, integratorFeeAmount, makerDstAmount, err := FeeAmounts(
		order.Fee.IntegratorFee,
		order.Fee.ProtocolFee,
		order.Fee.SurplusPercentage,
		dstAmount,
		estimatedDstAmount,
	)
	if err != nil {
		return nil, err
	}

	vault := EscrowVaultAddress(maker, orderHash)
	dstAsset := TokenAsset(order.DstMint)
	movements := []Movement{{
		Asset:  TokenAsset(order.SrcMint),
		From:   vault,
		To:     taker,
		Amount: amount,
	}}
	if protocolFeeAmount > 0 {
		if order.Fee.ProtocolDstAcc == nil {
			return nil, ErrInconsistentProtocolFeeConfig
		}
		movements = append(movements, Movement{Asset: dstAsset, From: taker, To: *order.Fee.ProtocolDstAcc, Amount: protocolFeeAmount})
	}
	if integratorFeeAmount > 0 {
		if order.Fee.IntegratorDstAcc == nil {
			return nil, ErrInconsistentIntegratorFeeConfig
		}
		movements = append(movements, Movement{Asset: dstAsset, From: taker, To: *order.Fee.IntegratorDstAcc, Amount: integratorFeeAmount})
	}
	makerAsset := dstAsset
	if order.NativeDstAsset {
		makerAsset = NativeAsset()
	}
	movements = append(movements, Movement{Asset: makerAsset, From: taker, To: order.Receiver, Amount: makerDstAmount})

	if err := e.ledger.Apply(movements); err != nil {
		return nil, err
	}

	esc.RemainingAmount -= amount
	result := &FillResult{
		OrderHash:           orderHash,
		DstAmount:           dstAmount,
		ProtocolFeeAmount:   protocolFeeAmount,
		IntegratorFeeAmount: integratorFeeAmount,
		MakerDstAmount:      makerDstAmount,
		RemainingAmount:     esc.RemainingAmount,
		Movements:           movements,
	}
	if esc.RemainingAmount == 0 {
		if err := e.state.EscrowDelete(maker, orderHash); err != nil {
			return nil, err
		}
		result.Closed = true
		e.emit(NewFilledEvent(esc, result))
		e.emit(NewClosedEvent(esc))
		return result, nil
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	e.emit(NewFilledEvent(esc, result))
	return result, nil
}

// Cancel returns the remaining locked funds to the maker and releases the
// escrow. Only the maker can cancel before expiry; the call is addressed by
// the order hash alone since the maker already proved knowledge of the terms
// at creation.
func (e *Engine) Cancel(maker [32]byte, orderHash [32]byte) (*CancelResult, error) {
	esc, ok := e.state.EscrowGet(maker, orderHash)
	if !ok {
		return nil, ErrEscrowNotFound
	}

	vault := EscrowVaultAddress(maker, orderHash)
	movements := []Movement{{
		Asset:  TokenAsset(esc.SrcMint),
		From:   vault,
		To:     maker,
		Amount: esc.RemainingAmount,
	}}
	if err := e.ledger.Apply(movements); err != nil {
		return nil, err
	}
	if err := e.state.EscrowDelete(maker, orderHash); err != nil {
		return nil, err
	}
	result := &CancelResult{
		OrderHash:      orderHash,
		ReturnedAmount: esc.RemainingAmount,
		Movements:      movements,
	}
	e.emit(NewCancelledEvent(esc))
	return result, nil
}

// CancelByResolver cancels an expired order that opted in via a nonzero
// minimum cancellation premium. The resolver earns a time-escalating premium
// out of the locked funds; the remainder returns to the maker. A premium
// larger than the remaining balance is rejected outright so misconfigured
// orders fail closed.
func (e *Engine) CancelByResolver(resolver, maker [32]byte, reduced ReducedOrderConfig, accounts OrderAccounts) (*CancelResult, error) {
	if reduced.Fee.MinCancellationPremium == 0 {
		return nil, ErrResolverCancelForbidden
	}
	now := e.now()
	if now < int64(reduced.ExpirationTime) {
		return nil, ErrOrderNotExpired
	}
	if !e.resolverAllowed(resolver) {
		return nil, ErrResolverAccessDenied
	}

	premium, err := CancellationPremium(
		now,
		reduced.ExpirationTime,
		reduced.CancellationAuctionDuration,
		reduced.Fee.MaxCancellationMultiplier,
		reduced.Fee.MinCancellationPremium,
	)
	if err != nil {
		return nil, err
	}

	order := BuildOrder(reduced, accounts)
	orderHash := OrderHash(order)
	esc, ok := e.state.EscrowGet(maker, orderHash)
	if !ok {
		return nil, ErrEscrowNotFound
	}
	if premium > esc.RemainingAmount {
		return nil, ErrInvalidCancellationFee
	}

	vault := EscrowVaultAddress(maker, orderHash)
	srcAsset := TokenAsset(esc.SrcMint)
	movements := []Movement{{
		Asset:  srcAsset,
		From:   vault,
		To:     resolver,
		Amount: premium,
	}}
	returned := esc.RemainingAmount - premium
	if returned > 0 {
		movements = append(movements, Movement{Asset: srcAsset, From: vault, To: maker, Amount: returned})
	}
	if err := e.ledger.Apply(movements); err != nil {
		return nil, err
	}
	if err := e.state.EscrowDelete(maker, orderHash); err != nil {
		return nil, err
	}
	result := &CancelResult{
		OrderHash:      orderHash,
		Premium:        premium,
		ReturnedAmount: returned,
		Movements:      movements,
	}
	e.emit(NewResolverCancelledEvent(esc, result))
	return result, nil
}

// EscrowVault exposes the vault derivation for callers that need to fund or
// audit escrow balances.
func (e *Engine) EscrowVault(maker, orderHash [32]byte) [32]byte {
	return EscrowVaultAddress(maker, orderHash)
}
