package fusion

import "testing"

func testSchedule() AuctionData {
	return AuctionData{
		StartTime:       1_000,
		Duration:        600,
		InitialRateBump: 50_000,
		PointsAndTimeDeltas: []PointAndTimeDelta{
			{RateBump: 40_000, TimeDelta: 100},
			{RateBump: 25_000, TimeDelta: 200},
			{RateBump: 10_000, TimeDelta: 100},
		},
	}
}

func TestRateBumpBoundaries(t *testing.T) {
	data := testSchedule()
	if got := CalculateRateBump(0, data); got != uint64(data.InitialRateBump) {
		t.Fatalf("before start: got %d, want %d", got, data.InitialRateBump)
	}
	if got := CalculateRateBump(uint64(data.StartTime), data); got != uint64(data.InitialRateBump) {
		t.Fatalf("at start: got %d, want %d", got, data.InitialRateBump)
	}
	if got := CalculateRateBump(data.FinishTime(), data); got != 0 {
		t.Fatalf("at finish: got %d, want 0", got)
	}
	if got := CalculateRateBump(data.FinishTime()+1_000, data); got != 0 {
		t.Fatalf("after finish: got %d, want 0", got)
	}
}

func TestRateBumpContinuityAtBreakpoints(t *testing.T) {
	data := testSchedule()
	pointTime := uint64(data.StartTime)
	for i, point := range data.PointsAndTimeDeltas {
		pointTime += uint64(point.TimeDelta)
		if got := CalculateRateBump(pointTime, data); got != uint64(point.RateBump) {
			t.Fatalf("breakpoint %d: got %d, want %d", i, got, point.RateBump)
		}
	}
}

func TestRateBumpMonotonicDecay(t *testing.T) {
	data := testSchedule()
	prev := CalculateRateBump(uint64(data.StartTime), data)
	for ts := uint64(data.StartTime) + 1; ts <= data.FinishTime(); ts++ {
		current := CalculateRateBump(ts, data)
		if current > prev {
			t.Fatalf("rate bump increased at t=%d: %d > %d", ts, current, prev)
		}
		prev = current
	}
}

func TestRateBumpNoBreakpoints(t *testing.T) {
	data := AuctionData{StartTime: 100, Duration: 100, InitialRateBump: 10_000}
	// Pure linear decay from initial to zero.
	if got := CalculateRateBump(150, data); got != 5_000 {
		t.Fatalf("midpoint: got %d, want 5000", got)
	}
}

func TestPremiumMultiplier(t *testing.T) {
	const (
		expiration uint32 = 10_000
		duration   uint32 = 200
		maxMult    uint16 = 500
	)
	if got := CalculatePremiumMultiplier(9_999, expiration, duration, maxMult); got != 0 {
		t.Fatalf("before expiry: got %d, want 0", got)
	}
	if got := CalculatePremiumMultiplier(10_000, expiration, duration, maxMult); got != 0 {
		t.Fatalf("at expiry: got %d, want 0", got)
	}
	if got := CalculatePremiumMultiplier(10_100, expiration, duration, maxMult); got != 250 {
		t.Fatalf("midpoint: got %d, want 250", got)
	}
	if got := CalculatePremiumMultiplier(10_200, expiration, duration, maxMult); got != 500 {
		t.Fatalf("at window end: got %d, want 500", got)
	}
	if got := CalculatePremiumMultiplier(20_000, expiration, duration, maxMult); got != 500 {
		t.Fatalf("after window: got %d, want 500 (capped)", got)
	}
	if got := CalculatePremiumMultiplier(10_050, expiration, 0, maxMult); got != 500 {
		t.Fatalf("zero duration: got %d, want cap", got)
	}
}

func TestCancellationPremium(t *testing.T) {
	// Multiplier 250 at the midpoint: ceil(10 * 1250 / 1000) = 13.
	premium, err := CancellationPremium(10_100, 10_000, 200, 500, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if premium != 13 {
		t.Fatalf("premium: got %d, want 13", premium)
	}

	// At expiration the premium is exactly the floor.
	premium, err = CancellationPremium(10_000, 10_000, 200, 500, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if premium != 10 {
		t.Fatalf("premium at expiry: got %d, want 10", premium)
	}
}

func TestAuctionValidate(t *testing.T) {
	valid := testSchedule()
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}

	zeroDuration := valid
	zeroDuration.Duration = 0
	if err := zeroDuration.Validate(); err == nil {
		t.Fatal("zero duration accepted")
	}

	zeroDelta := valid
	zeroDelta.PointsAndTimeDeltas = []PointAndTimeDelta{{RateBump: 10, TimeDelta: 0}}
	if err := zeroDelta.Validate(); err == nil {
		t.Fatal("zero time delta accepted")
	}

	pastFinish := valid
	pastFinish.PointsAndTimeDeltas = []PointAndTimeDelta{{RateBump: 10, TimeDelta: 600}}
	if err := pastFinish.Validate(); err == nil {
		t.Fatal("breakpoint at finish time accepted")
	}

	tooMany := valid
	tooMany.PointsAndTimeDeltas = make([]PointAndTimeDelta, MaxAuctionPoints+1)
	for i := range tooMany.PointsAndTimeDeltas {
		tooMany.PointsAndTimeDeltas[i] = PointAndTimeDelta{RateBump: 1, TimeDelta: 1}
	}
	if err := tooMany.Validate(); err == nil {
		t.Fatal("too many breakpoints accepted")
	}
}
