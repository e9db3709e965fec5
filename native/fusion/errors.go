package fusion

import "errors"

// Engine errors. Every failure aborts the whole call with no partial effect;
// callers must not retry inside the engine.
var (
	ErrInvalidAmount                   = errors.New("fusion: invalid amount")
	ErrOrderExpired                    = errors.New("fusion: order expired")
	ErrOrderNotExpired                 = errors.New("fusion: order not expired")
	ErrEscrowNotFound                  = errors.New("fusion: escrow not found")
	ErrEscrowExists                    = errors.New("fusion: escrow already exists")
	ErrInvalidEstimatedDstAmount       = errors.New("fusion: estimated dst amount below minimum")
	ErrInvalidProtocolSurplusFee       = errors.New("fusion: surplus percentage exceeds 100")
	ErrInconsistentNativeDstTrait      = errors.New("fusion: inconsistent native dst trait")
	ErrInconsistentProtocolFeeConfig   = errors.New("fusion: inconsistent protocol fee config")
	ErrInconsistentIntegratorFeeConfig = errors.New("fusion: inconsistent integrator fee config")
	ErrInvalidAuctionData              = errors.New("fusion: invalid auction data")
	ErrNotEnoughTokensInEscrow         = errors.New("fusion: not enough tokens in escrow")
	ErrArithmeticOverflow              = errors.New("fusion: arithmetic overflow")
	ErrInvalidCancellationFee          = errors.New("fusion: cancellation premium exceeds escrow balance")
	ErrResolverCancelForbidden         = errors.New("fusion: cancel by resolver is forbidden")
	ErrResolverAccessDenied            = errors.New("fusion: resolver access denied")
	ErrInsufficientFunds               = errors.New("fusion: insufficient funds")
)
