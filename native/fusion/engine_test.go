package fusion

import (
	"errors"
	"testing"

	"fusionswap/core/events"
)

type mockState struct {
	escrows map[[64]byte]*Escrow
}

func newMockState() *mockState {
	return &mockState{escrows: make(map[[64]byte]*Escrow)}
}

func escrowMapKey(maker, orderHash [32]byte) [64]byte {
	var key [64]byte
	copy(key[:32], maker[:])
	copy(key[32:], orderHash[:])
	return key
}

func (m *mockState) EscrowPut(esc *Escrow) error {
	m.escrows[escrowMapKey(esc.Maker, esc.OrderHash)] = esc.Clone()
	return nil
}

func (m *mockState) EscrowGet(maker, orderHash [32]byte) (*Escrow, bool) {
	esc, ok := m.escrows[escrowMapKey(maker, orderHash)]
	if !ok {
		return nil, false
	}
	return esc.Clone(), true
}

func (m *mockState) EscrowDelete(maker, orderHash [32]byte) error {
	delete(m.escrows, escrowMapKey(maker, orderHash))
	return nil
}

type mockLedger struct {
	balances map[[32]byte]map[Asset]uint64
}

func newMockLedger() *mockLedger {
	return &mockLedger{balances: make(map[[32]byte]map[Asset]uint64)}
}

func (m *mockLedger) fund(asset Asset, addr [32]byte, amount uint64) {
	if m.balances[addr] == nil {
		m.balances[addr] = make(map[Asset]uint64)
	}
	m.balances[addr][asset] += amount
}

func (m *mockLedger) balance(asset Asset, addr [32]byte) uint64 {
	return m.balances[addr][asset]
}

func (m *mockLedger) Apply(movements []Movement) error {
	staged := make(map[[32]byte]map[Asset]uint64, len(m.balances))
	for addr, assets := range m.balances {
		clone := make(map[Asset]uint64, len(assets))
		for asset, amount := range assets {
			clone[asset] = amount
		}
		staged[addr] = clone
	}
	for _, movement := range movements {
		if movement.Amount == 0 {
			continue
		}
		if staged[movement.From][movement.Asset] < movement.Amount {
			return ErrInsufficientFunds
		}
		staged[movement.From][movement.Asset] -= movement.Amount
		if staged[movement.To] == nil {
			staged[movement.To] = make(map[Asset]uint64)
		}
		staged[movement.To][movement.Asset] += movement.Amount
	}
	m.balances = staged
	return nil
}

type recordingEmitter struct {
	types []string
}

func (r *recordingEmitter) Emit(event events.Event) {
	r.types = append(r.types, event.Type)
}

const testNow = int64(20_000)

func newTestEngine() (*Engine, *mockState, *mockLedger) {
	state := newMockState()
	ledger := newMockLedger()
	engine := NewEngine(state, ledger)
	engine.SetNowFunc(func() int64 { return testNow })
	return engine, state, ledger
}

// plainOrder returns an order whose auction has already finished at testNow,
// so fills price at a zero rate bump.
func plainOrder(srcAmount, minDstAmount uint64) ReducedOrderConfig {
	return ReducedOrderConfig{
		ID:                 1,
		SrcAmount:          srcAmount,
		MinDstAmount:       minDstAmount,
		EstimatedDstAmount: minDstAmount,
		ExpirationTime:     50_000,
		DutchAuctionData: AuctionData{
			StartTime:       10_000,
			Duration:        600,
			InitialRateBump: 50_000,
		},
	}
}

func plainAccounts() OrderAccounts {
	return OrderAccounts{
		SrcMint:       fillIdentity(0x01),
		DstMint:       fillIdentity(0x02),
		MakerReceiver: fillIdentity(0x03),
	}
}

func fundedCreate(t *testing.T, engine *Engine, ledger *mockLedger, maker [32]byte, order ReducedOrderConfig, accounts OrderAccounts) *Escrow {
	t.Helper()
	ledger.fund(TokenAsset(accounts.SrcMint), maker, order.SrcAmount)
	esc, err := engine.Create(maker, order, accounts)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return esc
}

func TestCreateLocksSourceAmount(t *testing.T) {
	engine, state, ledger := newTestEngine()
	maker := fillIdentity(0xAA)
	order := plainOrder(100, 200)
	accounts := plainAccounts()

	esc := fundedCreate(t, engine, ledger, maker, order, accounts)

	if esc.RemainingAmount != 100 || esc.SrcAmount != 100 {
		t.Fatalf("escrow amounts: got remaining=%d src=%d", esc.RemainingAmount, esc.SrcAmount)
	}
	srcAsset := TokenAsset(accounts.SrcMint)
	if got := ledger.balance(srcAsset, maker); got != 0 {
		t.Fatalf("maker balance after lock: got %d, want 0", got)
	}
	vault := EscrowVaultAddress(maker, esc.OrderHash)
	if got := ledger.balance(srcAsset, vault); got != 100 {
		t.Fatalf("vault balance: got %d, want 100", got)
	}
	if _, ok := state.EscrowGet(maker, esc.OrderHash); !ok {
		t.Fatal("escrow not persisted")
	}

	// Same terms again must be rejected, not silently re-created.
	ledger.fund(srcAsset, maker, 100)
	if _, err := engine.Create(maker, order, accounts); !errors.Is(err, ErrEscrowExists) {
		t.Fatalf("duplicate create: got %v, want ErrEscrowExists", err)
	}
}

func TestCreateValidation(t *testing.T) {
	engine, _, _ := newTestEngine()
	maker := fillIdentity(0xAA)
	protocolDst := fillIdentity(0x0A)
	integratorDst := fillIdentity(0x0B)

	cases := []struct {
		name     string
		mutate   func(*ReducedOrderConfig, *OrderAccounts)
		expected error
	}{
		{"zero src amount", func(o *ReducedOrderConfig, _ *OrderAccounts) { o.SrcAmount = 0 }, ErrInvalidAmount},
		{"zero min dst amount", func(o *ReducedOrderConfig, _ *OrderAccounts) { o.MinDstAmount = 0 }, ErrInvalidAmount},
		{"estimate below minimum", func(o *ReducedOrderConfig, _ *OrderAccounts) { o.EstimatedDstAmount = o.MinDstAmount - 1 }, ErrInvalidEstimatedDstAmount},
		{"surplus over 100", func(o *ReducedOrderConfig, _ *OrderAccounts) {
			o.Fee.SurplusPercentage = 101
		}, ErrInvalidProtocolSurplusFee},
		{"expired", func(o *ReducedOrderConfig, _ *OrderAccounts) { o.ExpirationTime = uint32(testNow) - 1 }, ErrOrderExpired},
		{"native flag without native mint", func(o *ReducedOrderConfig, _ *OrderAccounts) { o.NativeDstAsset = true }, ErrInconsistentNativeDstTrait},
		{"protocol fee without destination", func(o *ReducedOrderConfig, _ *OrderAccounts) { o.Fee.ProtocolFee = 100 }, ErrInconsistentProtocolFeeConfig},
		{"surplus without destination", func(o *ReducedOrderConfig, _ *OrderAccounts) { o.Fee.SurplusPercentage = 10 }, ErrInconsistentProtocolFeeConfig},
		{"protocol destination without fee", func(_ *ReducedOrderConfig, a *OrderAccounts) { a.ProtocolDstAcc = &protocolDst }, ErrInconsistentProtocolFeeConfig},
		{"integrator fee without destination", func(o *ReducedOrderConfig, _ *OrderAccounts) { o.Fee.IntegratorFee = 100 }, ErrInconsistentIntegratorFeeConfig},
		{"integrator destination without fee", func(_ *ReducedOrderConfig, a *OrderAccounts) { a.IntegratorDstAcc = &integratorDst }, ErrInconsistentIntegratorFeeConfig},
		{"zero auction duration", func(o *ReducedOrderConfig, _ *OrderAccounts) { o.DutchAuctionData.Duration = 0 }, ErrInvalidAuctionData},
	}

	for _, tc := range cases {
		order := plainOrder(100, 200)
		accounts := plainAccounts()
		tc.mutate(&order, &accounts)
		if _, err := engine.Create(maker, order, accounts); !errors.Is(err, tc.expected) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.expected)
		}
	}

	// A valid order from an unfunded maker fails on the lock.
	if _, err := engine.Create(maker, plainOrder(100, 200), plainAccounts()); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("unfunded create: got %v, want ErrInsufficientFunds", err)
	}
}

func TestFillLifecycle(t *testing.T) {
	engine, state, ledger := newTestEngine()
	emitter := &recordingEmitter{}
	engine.SetEmitter(emitter)

	maker := fillIdentity(0xAA)
	taker := fillIdentity(0xBB)
	order := plainOrder(100, 200)
	accounts := plainAccounts()
	esc := fundedCreate(t, engine, ledger, maker, order, accounts)

	dstAsset := TokenAsset(accounts.DstMint)
	ledger.fund(dstAsset, taker, 1_000)

	first, err := engine.Fill(taker, maker, order, accounts, 60)
	if err != nil {
		t.Fatalf("first fill: %v", err)
	}
	if first.DstAmount != 120 || first.MakerDstAmount != 120 || first.Closed {
		t.Fatalf("first fill: got dst=%d maker=%d closed=%v", first.DstAmount, first.MakerDstAmount, first.Closed)
	}
	if first.RemainingAmount != 40 {
		t.Fatalf("remaining after first fill: got %d, want 40", first.RemainingAmount)
	}

	second, err := engine.Fill(taker, maker, order, accounts, 40)
	if err != nil {
		t.Fatalf("second fill: %v", err)
	}
	if !second.Closed || second.RemainingAmount != 0 {
		t.Fatalf("second fill: got closed=%v remaining=%d", second.Closed, second.RemainingAmount)
	}
	if second.DstAmount != 80 {
		t.Fatalf("second fill dst: got %d, want 80", second.DstAmount)
	}

	if _, ok := state.EscrowGet(maker, esc.OrderHash); ok {
		t.Fatal("escrow still present after exhaustion")
	}
	srcAsset := TokenAsset(accounts.SrcMint)
	if got := ledger.balance(srcAsset, taker); got != 100 {
		t.Fatalf("taker src balance: got %d, want 100", got)
	}
	if got := ledger.balance(dstAsset, accounts.MakerReceiver); got != 200 {
		t.Fatalf("receiver dst balance: got %d, want 200", got)
	}
	vault := EscrowVaultAddress(maker, esc.OrderHash)
	if got := ledger.balance(srcAsset, vault); got != 0 {
		t.Fatalf("vault residual: got %d, want 0", got)
	}

	want := []string{
		EventTypeEscrowCreated,
		EventTypeEscrowFilled,
		EventTypeEscrowFilled,
		EventTypeEscrowClosed,
	}
	if len(emitter.types) != len(want) {
		t.Fatalf("events: got %v, want %v", emitter.types, want)
	}
	for i := range want {
		if emitter.types[i] != want[i] {
			t.Fatalf("events: got %v, want %v", emitter.types, want)
		}
	}
}

func TestFillPricingExample(t *testing.T) {
	engine, _, ledger := newTestEngine()
	maker := fillIdentity(0xAA)
	taker := fillIdentity(0xBB)
	order := plainOrder(1_000, 2_000)
	accounts := plainAccounts()
	fundedCreate(t, engine, ledger, maker, order, accounts)
	ledger.fund(TokenAsset(accounts.DstMint), taker, 2_000)

	result, err := engine.Fill(taker, maker, order, accounts, 500)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if result.DstAmount != 1_000 {
		t.Fatalf("dst amount: got %d, want 1000", result.DstAmount)
	}
}

func TestFillSurplusCapture(t *testing.T) {
	engine, _, ledger := newTestEngine()
	maker := fillIdentity(0xAA)
	taker := fillIdentity(0xBB)
	protocolDst := fillIdentity(0x0A)

	// Surplus comes from the auction bump: min=estimated=1000 and a 20% bump
	// still in effect at fill time yields a gross of 1200.
	order := plainOrder(1_000, 1_000)
	order.Fee.SurplusPercentage = 10
	accounts := plainAccounts()
	accounts.ProtocolDstAcc = &protocolDst
	order.DutchAuctionData = AuctionData{
		StartTime:       uint32(testNow), // bump still at initial value
		Duration:        600,
		InitialRateBump: 20_000,
	}

	fundedCreate(t, engine, ledger, maker, order, accounts)
	ledger.fund(TokenAsset(accounts.DstMint), taker, 2_000)

	result, err := engine.Fill(taker, maker, order, accounts, 1_000)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	// Gross 1200 against an estimate of 1000: 10% of the 200 surplus goes to
	// the protocol.
	if result.DstAmount != 1_200 {
		t.Fatalf("dst amount: got %d, want 1200", result.DstAmount)
	}
	if result.ProtocolFeeAmount != 20 {
		t.Fatalf("protocol fee: got %d, want 20", result.ProtocolFeeAmount)
	}
	if result.MakerDstAmount != 1_180 {
		t.Fatalf("maker amount: got %d, want 1180", result.MakerDstAmount)
	}
	if got := ledger.balance(TokenAsset(accounts.DstMint), protocolDst); got != 20 {
		t.Fatalf("protocol destination balance: got %d, want 20", got)
	}
	if result.ProtocolFeeAmount+result.IntegratorFeeAmount+result.MakerDstAmount != result.DstAmount {
		t.Fatal("fee split does not conserve the gross amount")
	}
}

func TestFillNativeDstAsset(t *testing.T) {
	engine, _, ledger := newTestEngine()
	maker := fillIdentity(0xAA)
	taker := fillIdentity(0xBB)

	order := plainOrder(100, 200)
	order.NativeDstAsset = true
	accounts := plainAccounts()
	accounts.DstMint = NativeMint

	fundedCreate(t, engine, ledger, maker, order, accounts)
	ledger.fund(NativeAsset(), taker, 1_000)

	result, err := engine.Fill(taker, maker, order, accounts, 100)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if !result.Closed {
		t.Fatal("expected closure on full fill")
	}
	if got := ledger.balance(NativeAsset(), accounts.MakerReceiver); got != 200 {
		t.Fatalf("receiver native balance: got %d, want 200", got)
	}
}

func TestFillRejections(t *testing.T) {
	engine, _, ledger := newTestEngine()
	maker := fillIdentity(0xAA)
	taker := fillIdentity(0xBB)
	order := plainOrder(100, 200)
	accounts := plainAccounts()
	fundedCreate(t, engine, ledger, maker, order, accounts)
	ledger.fund(TokenAsset(accounts.DstMint), taker, 1_000)

	if _, err := engine.Fill(taker, maker, order, accounts, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v, want ErrInvalidAmount", err)
	}
	if _, err := engine.Fill(taker, maker, order, accounts, 101); !errors.Is(err, ErrNotEnoughTokensInEscrow) {
		t.Fatalf("over amount: got %v, want ErrNotEnoughTokensInEscrow", err)
	}

	// Tampered terms derive a different identity and must look nonexistent.
	tampered := order
	tampered.MinDstAmount++
	if _, err := engine.Fill(taker, maker, tampered, accounts, 10); !errors.Is(err, ErrEscrowNotFound) {
		t.Fatalf("tampered terms: got %v, want ErrEscrowNotFound", err)
	}

	engine.SetNowFunc(func() int64 { return int64(order.ExpirationTime) + 1 })
	if _, err := engine.Fill(taker, maker, order, accounts, 10); !errors.Is(err, ErrOrderExpired) {
		t.Fatalf("expired: got %v, want ErrOrderExpired", err)
	}
}

func TestFillWhitelist(t *testing.T) {
	engine, _, ledger := newTestEngine()
	maker := fillIdentity(0xAA)
	allowed := fillIdentity(0xBB)
	denied := fillIdentity(0xCC)
	order := plainOrder(100, 200)
	accounts := plainAccounts()
	fundedCreate(t, engine, ledger, maker, order, accounts)
	ledger.fund(TokenAsset(accounts.DstMint), allowed, 1_000)

	engine.SetResolverAccess(NewResolverSet(allowed))
	if _, err := engine.Fill(denied, maker, order, accounts, 10); !errors.Is(err, ErrResolverAccessDenied) {
		t.Fatalf("denied taker: got %v, want ErrResolverAccessDenied", err)
	}
	if _, err := engine.Fill(allowed, maker, order, accounts, 10); err != nil {
		t.Fatalf("allowed taker: %v", err)
	}
}

func TestFillAtomicOnLedgerFailure(t *testing.T) {
	engine, state, ledger := newTestEngine()
	maker := fillIdentity(0xAA)
	taker := fillIdentity(0xBB)
	order := plainOrder(100, 200)
	accounts := plainAccounts()
	esc := fundedCreate(t, engine, ledger, maker, order, accounts)

	// Taker has no dst funds: the fill must fail without moving the src leg.
	if _, err := engine.Fill(taker, maker, order, accounts, 50); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("unfunded taker: got %v, want ErrInsufficientFunds", err)
	}
	if got := ledger.balance(TokenAsset(accounts.SrcMint), taker); got != 0 {
		t.Fatalf("src leg applied despite failure: taker holds %d", got)
	}
	stored, ok := state.EscrowGet(maker, esc.OrderHash)
	if !ok || stored.RemainingAmount != 100 {
		t.Fatalf("remaining mutated despite failure: %+v", stored)
	}
}

func TestCancelReturnsRemaining(t *testing.T) {
	engine, state, ledger := newTestEngine()
	emitter := &recordingEmitter{}
	engine.SetEmitter(emitter)

	maker := fillIdentity(0xAA)
	taker := fillIdentity(0xBB)
	order := plainOrder(100, 200)
	accounts := plainAccounts()
	esc := fundedCreate(t, engine, ledger, maker, order, accounts)
	ledger.fund(TokenAsset(accounts.DstMint), taker, 1_000)

	if _, err := engine.Fill(taker, maker, order, accounts, 30); err != nil {
		t.Fatalf("fill: %v", err)
	}
	result, err := engine.Cancel(maker, esc.OrderHash)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.ReturnedAmount != 70 {
		t.Fatalf("returned: got %d, want 70", result.ReturnedAmount)
	}
	if got := ledger.balance(TokenAsset(accounts.SrcMint), maker); got != 70 {
		t.Fatalf("maker refund: got %d, want 70", got)
	}
	if _, ok := state.EscrowGet(maker, esc.OrderHash); ok {
		t.Fatal("escrow still present after cancel")
	}
	if _, err := engine.Cancel(maker, esc.OrderHash); !errors.Is(err, ErrEscrowNotFound) {
		t.Fatalf("double cancel: got %v, want ErrEscrowNotFound", err)
	}
}

func TestCancelByResolver(t *testing.T) {
	engine, state, ledger := newTestEngine()
	maker := fillIdentity(0xAA)
	resolver := fillIdentity(0xDD)

	order := plainOrder(100, 200)
	order.Fee.MinCancellationPremium = 10
	order.Fee.MaxCancellationMultiplier = 500
	order.CancellationAuctionDuration = 200
	accounts := plainAccounts()
	esc := fundedCreate(t, engine, ledger, maker, order, accounts)

	// Not yet expired.
	if _, err := engine.CancelByResolver(resolver, maker, order, accounts); !errors.Is(err, ErrOrderNotExpired) {
		t.Fatalf("before expiry: got %v, want ErrOrderNotExpired", err)
	}

	// Midpoint of the cancellation window: multiplier 250, premium 13.
	engine.SetNowFunc(func() int64 { return int64(order.ExpirationTime) + 100 })
	result, err := engine.CancelByResolver(resolver, maker, order, accounts)
	if err != nil {
		t.Fatalf("cancel by resolver: %v", err)
	}
	if result.Premium != 13 || result.ReturnedAmount != 87 {
		t.Fatalf("premium split: got premium=%d returned=%d, want 13 and 87", result.Premium, result.ReturnedAmount)
	}
	srcAsset := TokenAsset(accounts.SrcMint)
	if got := ledger.balance(srcAsset, resolver); got != 13 {
		t.Fatalf("resolver premium: got %d, want 13", got)
	}
	if got := ledger.balance(srcAsset, maker); got != 87 {
		t.Fatalf("maker remainder: got %d, want 87", got)
	}
	if _, ok := state.EscrowGet(maker, esc.OrderHash); ok {
		t.Fatal("escrow still present after resolver cancel")
	}
}

func TestCancelByResolverRejections(t *testing.T) {
	engine, _, ledger := newTestEngine()
	maker := fillIdentity(0xAA)
	resolver := fillIdentity(0xDD)

	// No premium configured: the order never opted in.
	optedOut := plainOrder(100, 200)
	accounts := plainAccounts()
	fundedCreate(t, engine, ledger, maker, optedOut, accounts)
	engine.SetNowFunc(func() int64 { return int64(optedOut.ExpirationTime) + 100 })
	if _, err := engine.CancelByResolver(resolver, maker, optedOut, accounts); !errors.Is(err, ErrResolverCancelForbidden) {
		t.Fatalf("opted out: got %v, want ErrResolverCancelForbidden", err)
	}

	// Premium above the remaining balance fails closed.
	engine.SetNowFunc(func() int64 { return testNow })
	small := plainOrder(5, 10)
	small.ID = 2
	small.Fee.MinCancellationPremium = 10
	small.Fee.MaxCancellationMultiplier = 500
	small.CancellationAuctionDuration = 200
	fundedCreate(t, engine, ledger, maker, small, accounts)
	engine.SetNowFunc(func() int64 { return int64(small.ExpirationTime) + 100 })
	if _, err := engine.CancelByResolver(resolver, maker, small, accounts); !errors.Is(err, ErrInvalidCancellationFee) {
		t.Fatalf("oversized premium: got %v, want ErrInvalidCancellationFee", err)
	}
}

func TestRemainingAmountConservation(t *testing.T) {
	engine, state, ledger := newTestEngine()
	maker := fillIdentity(0xAA)
	taker := fillIdentity(0xBB)
	order := plainOrder(1_000, 2_000)
	accounts := plainAccounts()
	esc := fundedCreate(t, engine, ledger, maker, order, accounts)
	ledger.fund(TokenAsset(accounts.DstMint), taker, 10_000)

	fills := []uint64{137, 263, 1, 599}
	var total uint64
	for _, amount := range fills {
		result, err := engine.Fill(taker, maker, order, accounts, amount)
		if err != nil {
			t.Fatalf("fill %d: %v", amount, err)
		}
		total += amount
		if result.RemainingAmount != order.SrcAmount-total {
			t.Fatalf("remaining after %d: got %d, want %d", total, result.RemainingAmount, order.SrcAmount-total)
		}
	}
	if total != order.SrcAmount {
		t.Fatalf("fills total %d, want %d", total, order.SrcAmount)
	}
	if _, ok := state.EscrowGet(maker, esc.OrderHash); ok {
		t.Fatal("escrow survived exhaustion")
	}
}
