package fusion

// DstAmount returns the counter-amount a taker owes for filling fillAmount out
// of srcAmount, given the order's base dst amount for the whole order. The
// base amount is scaled by the filled fraction and, when an auction schedule
// is supplied, inflated by the current rate bump. Both steps round up so the
// maker is never shorted by truncation.
func DstAmount(srcAmount, dstAmount, fillAmount uint64, data *AuctionData, now int64) (uint64, error) {
	result, err := mulDivCeil(dstAmount, fillAmount, srcAmount)
	if err != nil {
		return 0, err
	}
	if data != nil {
		rateBump := CalculateRateBump(uint64(now), *data)
		result, err = mulDivCeil(result, Base1e5+rateBump, Base1e5)
		if err != nil {
			return 0, err
		}
	}
	return result, nil
}

// FeeAmounts splits a gross dst amount into the protocol fee, the integrator
// fee, and the maker's net amount. Fees round down so the protocol never takes
// more than entitled; the three outputs always sum exactly to dstAmount.
// Positive slippage above estimatedDstAmount is partially recaptured into the
// protocol fee.
func FeeAmounts(integratorFee, protocolFee uint16, surplusPercentage uint8, dstAmount, estimatedDstAmount uint64) (protocolFeeAmount, integratorFeeAmount, makerAmount uint64, err error) {
	integratorFeeAmount, err = mulDivFloor(dstAmount, uint64(integratorFee), Base1e5)
	if err != nil {
		return 0, 0, 0, err
	}
	protocolFeeAmount, err = mulDivFloor(dstAmount, uint64(protocolFee), Base1e5)
	if err != nil {
		return 0, 0, 0, err
	}
	if protocolFeeAmount > dstAmount || integratorFeeAmount > dstAmount-protocolFeeAmount {
		return 0, 0, 0, ErrArithmeticOverflow
	}
	actualDstAmount := dstAmount - protocolFeeAmount - integratorFeeAmount

	if actualDstAmount > estimatedDstAmount {
		surplusFee, surplusErr := mulDivFloor(actualDstAmount-estimatedDstAmount, uint64(surplusPercentage), Base1e2)
		if surplusErr != nil {
			return 0, 0, 0, surplusErr
		}
		protocolFeeAmount += surplusFee
	}

	return protocolFeeAmount, integratorFeeAmount, dstAmount - integratorFeeAmount - protocolFeeAmount, nil
}
