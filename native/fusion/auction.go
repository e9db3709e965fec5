package fusion

// CalculateRateBump evaluates the Dutch-auction decay curve at the supplied
// timestamp and returns the current rate bump in Base1e5 basis points.
//
// The curve is piecewise linear: it holds InitialRateBump until StartTime,
// interpolates across the declared breakpoints, decays from the last
// breakpoint to zero at the finish time, and stays at zero afterwards. All
// operands are bounded (timestamps below 2^33, rates below 2^16) so the
// interpolation products cannot overflow uint64; divisors are guaranteed
// nonzero by AuctionData.Validate.
func CalculateRateBump(timestamp uint64, data AuctionData) uint64 {
	startTime := uint64(data.StartTime)
	if timestamp <= startTime {
		return uint64(data.InitialRateBump)
	}
	finishTime := data.FinishTime()
	if timestamp >= finishTime {
		return 0
	}

	currentRateBump := uint64(data.InitialRateBump)
	currentPointTime := startTime

	for _, point := range data.PointsAndTimeDeltas {
		nextRateBump := uint64(point.RateBump)
		nextPointTime := currentPointTime + uint64(point.TimeDelta)
		if timestamp <= nextPointTime {
			return ((timestamp-currentPointTime)*nextRateBump +
				(nextPointTime-timestamp)*currentRateBump) /
				(nextPointTime - currentPointTime)
		}
		currentRateBump = nextRateBump
		currentPointTime = nextPointTime
	}
	return (finishTime - timestamp) * currentRateBump / (finishTime - currentPointTime)
}

// CalculatePremiumMultiplier returns the resolver-cancellation premium
// multiplier in Base1e3 basis points. It escalates linearly from zero at the
// expiration time to maxMultiplier over the auction duration and is capped
// thereafter. A zero duration jumps straight to the cap.
func CalculatePremiumMultiplier(now int64, expirationTime uint32, auctionDuration uint32, maxMultiplier uint16) uint64 {
	if now < int64(expirationTime) {
		return 0
	}
	elapsed := uint64(now) - uint64(expirationTime)
	if auctionDuration == 0 || elapsed >= uint64(auctionDuration) {
		return uint64(maxMultiplier)
	}
	return elapsed * uint64(maxMultiplier) / uint64(auctionDuration)
}

// CancellationPremium computes the absolute premium owed to a resolver that
// cancels an expired order: ceil(minPremium * (1000 + multiplier) / 1000).
// Rounding is up so the resolver is never shorted by truncation.
func CancellationPremium(now int64, expirationTime uint32, auctionDuration uint32, maxMultiplier uint16, minPremium uint64) (uint64, error) {
	multiplier := CalculatePremiumMultiplier(now, expirationTime, auctionDuration, maxMultiplier)
	return mulDivCeil(minPremium, Base1e3+multiplier, Base1e3)
}
