package fusion

// Basis-point denominators used by the protocol. Rate bumps and protocol or
// integrator fees are expressed against Base1e5, the cancellation premium
// multiplier against Base1e3, and the surplus percentage against Base1e2.
const (
	Base1e2 uint64 = 100
	Base1e3 uint64 = 1_000
	Base1e5 uint64 = 100_000
)

// MaxAuctionPoints bounds the number of decay breakpoints in an auction
// schedule.
const MaxAuctionPoints = 5

// NativeMint is the reserved mint identity representing the ledger's wrapped
// native coin. Orders flagged native_dst_asset must resolve their dst mint to
// this identity.
var NativeMint = [32]byte{
	0x06, 0x9b, 0x88, 0x57, 0xfe, 0xab, 0x81, 0x84,
	0xfb, 0x68, 0x7f, 0x63, 0x46, 0x18, 0xc0, 0x35,
	0xda, 0xc4, 0x39, 0xdc, 0x1a, 0xeb, 0x3b, 0x55,
	0x98, 0xa0, 0xf0, 0x00, 0x00, 0x00, 0x00, 0x01,
}

// Asset is the tagged payable variant consumed by the transfer capability:
// either the ledger's native coin or a fungible token balance of a mint.
type Asset struct {
	Native bool
	Mint   [32]byte
}

// NativeAsset returns the native-coin payable.
func NativeAsset() Asset { return Asset{Native: true} }

// TokenAsset returns the payable for the supplied mint.
func TokenAsset(mint [32]byte) Asset { return Asset{Mint: mint} }

// PointAndTimeDelta describes one decay breakpoint. TimeDelta is the elapsed
// time since the previous breakpoint (the first is measured from the auction
// start).
type PointAndTimeDelta struct {
	RateBump  uint16
	TimeDelta uint16
}

// AuctionData is the Dutch-auction decay schedule attached to an order.
type AuctionData struct {
	StartTime           uint32
	Duration            uint32
	InitialRateBump     uint16
	PointsAndTimeDeltas []PointAndTimeDelta
}

// FinishTime returns the absolute end of the decay window.
func (a AuctionData) FinishTime() uint64 {
	return uint64(a.StartTime) + uint64(a.Duration)
}

// Validate rejects schedules that could produce a zero divisor during
// interpolation: every breakpoint delta must be positive and the final
// breakpoint must land strictly before the finish time.
func (a AuctionData) Validate() error {
	if a.Duration == 0 {
		return ErrInvalidAuctionData
	}
	if len(a.PointsAndTimeDeltas) > MaxAuctionPoints {
		return ErrInvalidAuctionData
	}
	var elapsed uint64
	for _, point := range a.PointsAndTimeDeltas {
		if point.TimeDelta == 0 {
			return ErrInvalidAuctionData
		}
		elapsed += uint64(point.TimeDelta)
	}
	if elapsed >= uint64(a.Duration) {
		return ErrInvalidAuctionData
	}
	return nil
}

// FeeConfig is the full fee term sheet of an order, including the resolved
// destination identities supplied at creation time.
type FeeConfig struct {
	ProtocolDstAcc   *[32]byte
	IntegratorDstAcc *[32]byte

	// Protocol fee in basis points where Base1e5 = 100%.
	ProtocolFee uint16

	// Integrator fee in basis points where Base1e5 = 100%.
	IntegratorFee uint16

	// Share of positive slippage captured by the protocol, where Base1e2 = 100%.
	SurplusPercentage uint8

	// Floor premium, in absolute src tokens, paid to a resolver that cancels
	// an expired order. Zero disables resolver cancellation.
	MinCancellationPremium uint64

	// Premium multiplier ceiling in basis points where Base1e3 = 100%.
	MaxCancellationMultiplier uint16
}

// ReducedFeeConfig omits the destination identities, which the caller supplies
// separately as resolved accounts.
type ReducedFeeConfig struct {
	ProtocolFee               uint16
	IntegratorFee             uint16
	SurplusPercentage         uint8
	MinCancellationPremium    uint64
	MaxCancellationMultiplier uint16
}

// OrderConfig is the immutable economic contract of an order. Its canonical
// encoding is hashed into the escrow identity, so every field is
// tamper-evident.
type OrderConfig struct {
	ID                          uint32
	SrcAmount                   uint64
	MinDstAmount                uint64
	EstimatedDstAmount          uint64
	ExpirationTime              uint32
	NativeDstAsset              bool
	Receiver                    [32]byte
	Fee                         FeeConfig
	DutchAuctionData            AuctionData
	CancellationAuctionDuration uint32
	SrcMint                     [32]byte
	DstMint                     [32]byte
}

// ReducedOrderConfig is the compact order form carried on fill and cancel
// calls. Fields derivable from resolved accounts are omitted and restored via
// BuildOrder.
type ReducedOrderConfig struct {
	ID                          uint32
	SrcAmount                   uint64
	MinDstAmount                uint64
	EstimatedDstAmount          uint64
	ExpirationTime              uint32
	NativeDstAsset              bool
	Fee                         ReducedFeeConfig
	DutchAuctionData            AuctionData
	CancellationAuctionDuration uint32
}

// OrderAccounts carries the identities the hosting collaborator resolves for a
// call: the asset mints, the maker's receiver, and the optional fee
// destinations.
type OrderAccounts struct {
	SrcMint          [32]byte
	DstMint          [32]byte
	MakerReceiver    [32]byte
	ProtocolDstAcc   *[32]byte
	IntegratorDstAcc *[32]byte
}

// BuildOrder reconstructs the full order config from its reduced form plus the
// resolved accounts. Fill and cancel entry points re-derive the escrow
// identity from this reconstruction, so any mismatch with the terms used at
// creation yields a different digest.
func BuildOrder(reduced ReducedOrderConfig, accounts OrderAccounts) OrderConfig {
	return OrderConfig{
		ID:                 reduced.ID,
		SrcAmount:          reduced.SrcAmount,
		MinDstAmount:       reduced.MinDstAmount,
		EstimatedDstAmount: reduced.EstimatedDstAmount,
		ExpirationTime:     reduced.ExpirationTime,
		NativeDstAsset:     reduced.NativeDstAsset,
		Receiver:           accounts.MakerReceiver,
		Fee: FeeConfig{
			ProtocolDstAcc:            cloneAccountRef(accounts.ProtocolDstAcc),
			IntegratorDstAcc:          cloneAccountRef(accounts.IntegratorDstAcc),
			ProtocolFee:               reduced.Fee.ProtocolFee,
			IntegratorFee:             reduced.Fee.IntegratorFee,
			SurplusPercentage:         reduced.Fee.SurplusPercentage,
			MinCancellationPremium:    reduced.Fee.MinCancellationPremium,
			MaxCancellationMultiplier: reduced.Fee.MaxCancellationMultiplier,
		},
		DutchAuctionData:            cloneAuction(reduced.DutchAuctionData),
		CancellationAuctionDuration: reduced.CancellationAuctionDuration,
		SrcMint:                     accounts.SrcMint,
		DstMint:                     accounts.DstMint,
	}
}

// Validate enforces the creation-time invariants of an order. The fee
// destination rule is the strict biconditional: a destination is present iff
// its corresponding rate (or the surplus share, for the protocol) is nonzero.
func (o OrderConfig) Validate(now int64) error {
	if o.SrcAmount == 0 || o.MinDstAmount == 0 {
		return ErrInvalidAmount
	}
	if o.EstimatedDstAmount < o.MinDstAmount {
		return ErrInvalidEstimatedDstAmount
	}
	if uint64(o.Fee.SurplusPercentage) > Base1e2 {
		return ErrInvalidProtocolSurplusFee
	}
	if now > int64(o.ExpirationTime) {
		return ErrOrderExpired
	}
	if o.NativeDstAsset && o.DstMint != NativeMint {
		return ErrInconsistentNativeDstTrait
	}
	protocolWanted := o.Fee.ProtocolFee > 0 || o.Fee.SurplusPercentage > 0
	if protocolWanted != (o.Fee.ProtocolDstAcc != nil) {
		return ErrInconsistentProtocolFeeConfig
	}
	if (o.Fee.IntegratorFee > 0) != (o.Fee.IntegratorDstAcc != nil) {
		return ErrInconsistentIntegratorFeeConfig
	}
	return o.DutchAuctionData.Validate()
}

// Escrow is the live instance created from an order: the locked source funds
// and the monotonically non-increasing remaining amount. It is addressed by
// (maker, order hash), never by a sequential key.
type Escrow struct {
	OrderHash       [32]byte
	Maker           [32]byte
	SrcMint         [32]byte
	DstMint         [32]byte
	NativeDst       bool
	SrcAmount       uint64
	RemainingAmount uint64
	CreatedAt       uint64
}

// Clone returns a copy callers can mutate without affecting the stored
// instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

func cloneAccountRef(acc *[32]byte) *[32]byte {
	if acc == nil {
		return nil
	}
	clone := *acc
	return &clone
}

func cloneAuction(a AuctionData) AuctionData {
	clone := a
	clone.PointsAndTimeDeltas = append([]PointAndTimeDelta(nil), a.PointsAndTimeDeltas...)
	return clone
}
