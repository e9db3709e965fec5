package rpc

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"fusionswap/native/fusion"
)

// JSON wire types for the HTTP surface. Identities are hex-encoded 32-byte
// strings (0x prefix optional) and u64 amounts travel as decimal strings to
// survive JSON number precision limits.

type pointJSON struct {
	RateBump  uint16 `json:"rateBump"`
	TimeDelta uint16 `json:"timeDelta"`
}

type auctionJSON struct {
	StartTime       uint32      `json:"startTime"`
	Duration        uint32      `json:"duration"`
	InitialRateBump uint16      `json:"initialRateBump"`
	Points          []pointJSON `json:"points,omitempty"`
}

type feeJSON struct {
	ProtocolFee               uint16 `json:"protocolFee"`
	IntegratorFee             uint16 `json:"integratorFee"`
	SurplusPercentage         uint8  `json:"surplusPercentage"`
	MinCancellationPremium    string `json:"minCancellationPremium,omitempty"`
	MaxCancellationMultiplier uint16 `json:"maxCancellationMultiplier,omitempty"`
}

type orderJSON struct {
	ID                          uint32      `json:"id"`
	SrcAmount                   string      `json:"srcAmount"`
	MinDstAmount                string      `json:"minDstAmount"`
	EstimatedDstAmount          string      `json:"estimatedDstAmount"`
	ExpirationTime              uint32      `json:"expirationTime"`
	NativeDstAsset              bool        `json:"nativeDstAsset"`
	Fee                         feeJSON     `json:"fee"`
	Auction                     auctionJSON `json:"auction"`
	CancellationAuctionDuration uint32      `json:"cancellationAuctionDuration"`
}

type accountsJSON struct {
	SrcMint          string  `json:"srcMint"`
	DstMint          string  `json:"dstMint"`
	MakerReceiver    string  `json:"makerReceiver"`
	ProtocolDstAcc   *string `json:"protocolDstAcc,omitempty"`
	IntegratorDstAcc *string `json:"integratorDstAcc,omitempty"`
}

type createRequest struct {
	Maker    string       `json:"maker"`
	Order    orderJSON    `json:"order"`
	Accounts accountsJSON `json:"accounts"`
}

type fillRequest struct {
	Taker    string       `json:"taker"`
	Maker    string       `json:"maker"`
	Order    orderJSON    `json:"order"`
	Accounts accountsJSON `json:"accounts"`
	Amount   string       `json:"amount"`
}

type cancelRequest struct {
	Maker     string `json:"maker"`
	OrderHash string `json:"orderHash"`
}

type resolverCancelRequest struct {
	Resolver string       `json:"resolver"`
	Maker    string       `json:"maker"`
	Order    orderJSON    `json:"order"`
	Accounts accountsJSON `json:"accounts"`
}

type escrowResponse struct {
	OrderHash       string `json:"orderHash"`
	Maker           string `json:"maker"`
	SrcMint         string `json:"srcMint"`
	DstMint         string `json:"dstMint"`
	NativeDst       bool   `json:"nativeDst"`
	SrcAmount       string `json:"srcAmount"`
	RemainingAmount string `json:"remainingAmount"`
	CreatedAt       uint64 `json:"createdAt"`
}

type fillResponse struct {
	OrderHash       string `json:"orderHash"`
	DstAmount       string `json:"dstAmount"`
	ProtocolFee     string `json:"protocolFee"`
	IntegratorFee   string `json:"integratorFee"`
	MakerAmount     string `json:"makerAmount"`
	RemainingAmount string `json:"remainingAmount"`
	Closed          bool   `json:"closed"`
}

type cancelResponse struct {
	OrderHash string `json:"orderHash"`
	Premium   string `json:"premium,omitempty"`
	Returned  string `json:"returned"`
}

func parseIdentity(value string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid identity %q: %w", value, err)
	}
	if len(decoded) != 32 {
		return out, fmt.Errorf("identity %q must be 32 bytes", value)
	}
	copy(out[:], decoded)
	return out, nil
}

func parseOptionalIdentity(value *string) (*[32]byte, error) {
	if value == nil {
		return nil, nil
	}
	id, err := parseIdentity(*value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseAmount(value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	amount, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return amount, nil
}

func formatIdentity(id [32]byte) string {
	return hex.EncodeToString(id[:])
}

func formatAmount(amount uint64) string {
	return strconv.FormatUint(amount, 10)
}

func (o orderJSON) toReduced() (fusion.ReducedOrderConfig, error) {
	srcAmount, err := parseAmount(o.SrcAmount)
	if err != nil {
		return fusion.ReducedOrderConfig{}, err
	}
	minDstAmount, err := parseAmount(o.MinDstAmount)
	if err != nil {
		return fusion.ReducedOrderConfig{}, err
	}
	estimatedDstAmount, err := parseAmount(o.EstimatedDstAmount)
	if err != nil {
		return fusion.ReducedOrderConfig{}, err
	}
	minPremium, err := parseAmount(o.Fee.MinCancellationPremium)
	if err != nil {
		return fusion.ReducedOrderConfig{}, err
	}
	points := make([]fusion.PointAndTimeDelta, 0, len(o.Auction.Points))
	for _, point := range o.Auction.Points {
		points = append(points, fusion.PointAndTimeDelta{RateBump: point.RateBump, TimeDelta: point.TimeDelta})
	}
	return fusion.ReducedOrderConfig{
		ID:                 o.ID,
		SrcAmount:          srcAmount,
		MinDstAmount:       minDstAmount,
		EstimatedDstAmount: estimatedDstAmount,
		ExpirationTime:     o.ExpirationTime,
		NativeDstAsset:     o.NativeDstAsset,
		Fee: fusion.ReducedFeeConfig{
			ProtocolFee:               o.Fee.ProtocolFee,
			IntegratorFee:             o.Fee.IntegratorFee,
			SurplusPercentage:         o.Fee.SurplusPercentage,
			MinCancellationPremium:    minPremium,
			MaxCancellationMultiplier: o.Fee.MaxCancellationMultiplier,
		},
		DutchAuctionData: fusion.AuctionData{
			StartTime:           o.Auction.StartTime,
			Duration:            o.Auction.Duration,
			InitialRateBump:     o.Auction.InitialRateBump,
			PointsAndTimeDeltas: points,
		},
		CancellationAuctionDuration: o.CancellationAuctionDuration,
	}, nil
}

func (a accountsJSON) toAccounts() (fusion.OrderAccounts, error) {
	srcMint, err := parseIdentity(a.SrcMint)
	if err != nil {
		return fusion.OrderAccounts{}, err
	}
	dstMint, err := parseIdentity(a.DstMint)
	if err != nil {
		return fusion.OrderAccounts{}, err
	}
	receiver, err := parseIdentity(a.MakerReceiver)
	if err != nil {
		return fusion.OrderAccounts{}, err
	}
	protocolDst, err := parseOptionalIdentity(a.ProtocolDstAcc)
	if err != nil {
		return fusion.OrderAccounts{}, err
	}
	integratorDst, err := parseOptionalIdentity(a.IntegratorDstAcc)
	if err != nil {
		return fusion.OrderAccounts{}, err
	}
	return fusion.OrderAccounts{
		SrcMint:          srcMint,
		DstMint:          dstMint,
		MakerReceiver:    receiver,
		ProtocolDstAcc:   protocolDst,
		IntegratorDstAcc: integratorDst,
	}, nil
}

func escrowToResponse(esc *fusion.Escrow) escrowResponse {
	return escrowResponse{
		OrderHash:       formatIdentity(esc.OrderHash),
		Maker:           formatIdentity(esc.Maker),
		SrcMint:         formatIdentity(esc.SrcMint),
		DstMint:         formatIdentity(esc.DstMint),
		NativeDst:       esc.NativeDst,
		SrcAmount:       formatAmount(esc.SrcAmount),
		RemainingAmount: formatAmount(esc.RemainingAmount),
		CreatedAt:       esc.CreatedAt,
	}
}
