package executor

import (
	"context"
	"time"

	"signal_trader/internal/helper"
	"signal_trader/internal/metrics"
	"signal_trader/internal/models"
	"signal_trader/internal/notify"
	"signal_trader/internal/storage"
	"signal_trader/pkg/logger"
	"signal_trader/pkg/tracing"

	"go.uber.org/multierr"
)

type Broker interface {
	PlaceOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error)
	SearchOpenOrders(ctx context.Context, accountID int64, contractID string) ([]models.Order, error)
	GetContractDetails(ctx context.Context, contractID string) (models.ContractDetails, error)
	CloseFullPosition(ctx context.Context, accountID int64, contractID string) error
	ClosePartialPosition(ctx context.Context, accountID int64, contractID string, size int) error
}

type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
}

type Resolver interface {
	Resolve(symbol string) string
}

type Deduper interface {
	TryAcquire(ctx context.Context, symbol string, accountID int64) (bool, error)
}

type Outcome string

const (
	OutcomePlaced    Outcome = "placed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeOpenOrder Outcome = "open_order"
	OutcomeFailed    Outcome = "failed"
	OutcomeClosed    Outcome = "closed"
)

type AccountResult struct {
	AccountID int64
	Outcome   Outcome
	OrderID   int64
	Err       error
}

// Report is what one Execute call did, account by account.
type Report struct {
	Symbol     string
	ContractID string
	Action     models.Action
	Accounts   []AccountResult
}

func (r *Report) add(res AccountResult) { r.Accounts = append(r.Accounts, res) }

type Executor struct {
	broker    Broker
	tokens    TokenProvider
	resolver  Resolver
	dedup     Deduper
	positions storage.Positions
	notifier  notify.Notifier
	metrics   metrics.Recorder
	policy    models.Policy
	now       func() time.Time
}

type Deps struct {
	Broker    Broker
	Tokens    TokenProvider
	Resolver  Resolver
	Dedup     Deduper
	Positions storage.Positions
	Notifier  notify.Notifier
	Metrics   metrics.Recorder
	Policy    models.Policy
}

func New(d Deps) *Executor {
	e := &Executor{
		broker:    d.Broker,
		tokens:    d.Tokens,
		resolver:  d.Resolver,
		dedup:     d.Dedup,
		positions: d.Positions,
		notifier:  d.Notifier,
		metrics:   d.Metrics,
		policy:    d.Policy,
		now:       time.Now,
	}
	if e.notifier == nil {
		e.notifier = notify.NewStdout()
	}
	if e.metrics == nil {
		e.metrics = metrics.Nop{}
	}
	return e
}

// Execute carries one signal through to the broker. The returned error joins
// every failure; accounts that failed never stop their siblings.
func (e *Executor) Execute(ctx context.Context, sig models.TradeSignal) (_ *Report, err error) {
	const op = "executor.execute"
	span, ctx := tracing.StartSpan(ctx, op)
	defer func() { tracing.Finish(span, err) }()

	rep := &Report{Symbol: sig.Symbol, Action: sig.Action}
	if sig.Symbol == "" {
		logger.Warn("executor: missing 'symbol' in payload")
		return rep, models.Errorf(models.KindValidation, op, "missing symbol")
	}
	span.SetTag("symbol", sig.Symbol)

	rep.ContractID = e.resolver.Resolve(sig.Symbol)
	if _, err := e.tokens.GetToken(ctx); err != nil {
		logger.Error("executor: %s token fetch failed: %v", sig.Symbol, err)
		return rep, err
	}
	e.metrics.Signal(sig.Action)

	switch sig.Action {
	case models.ActionClose:
		return rep, e.closeFull(ctx, sig, rep)
	case models.ActionPartialClose:
		return rep, e.closePartial(ctx, sig, rep)
	}
	return rep, e.open(ctx, sig, rep)
}

func (e *Executor) closeFull(ctx context.Context, sig models.TradeSignal, rep *Report) error {
	accountID, ok := sig.CloseAccount()
	if !ok {
		return models.Errorf(models.KindValidation, "executor.close", "%s: no account to close", sig.Symbol)
	}
	err := e.broker.CloseFullPosition(ctx, accountID, rep.ContractID)
	return e.closeResult(rep, accountID, "signal", err)
}

func (e *Executor) closePartial(ctx context.Context, sig models.TradeSignal, rep *Report) error {
	accountID, ok := sig.CloseAccount()
	if !ok {
		return models.Errorf(models.KindValidation, "executor.partial_close", "%s: no account to close", sig.Symbol)
	}
	size := e.policy.CloseSize
	switch {
	case sig.Size != nil:
		size = *sig.Size
	case sig.PartialCloseSize != nil:
		size = *sig.PartialCloseSize
	}
	err := e.broker.ClosePartialPosition(ctx, accountID, rep.ContractID, size)
	return e.closeResult(rep, accountID, "signal", err)
}

func (e *Executor) closeResult(rep *Report, accountID int64, stage string, err error) error {
	if err != nil {
		logger.Error("[%d] %s close %s failed: %v", accountID, rep.Action, rep.ContractID, err)
		e.metrics.Close(stage, "failed")
		e.metrics.Failure(err)
		rep.add(AccountResult{AccountID: accountID, Outcome: OutcomeFailed, Err: err})
		return err
	}
	logger.Info("[%d] %s %s done", accountID, rep.Action, rep.ContractID)
	e.metrics.Close(stage, "ok")
	rep.add(AccountResult{AccountID: accountID, Outcome: OutcomeClosed})
	e.notifier.Sendf("🔒 %s %s acc=%d", rep.Action, rep.Symbol, accountID)
	return nil
}

// contractInfo fetches contract details at most once per signal.
type contractInfo struct {
	e          *Executor
	contractID string
	fetched    bool
	details    models.ContractDetails
	err        error
}

func (c *contractInfo) get(ctx context.Context) (models.ContractDetails, error) {
	if !c.fetched {
		c.details, c.err = c.e.broker.GetContractDetails(ctx, c.contractID)
		c.fetched = true
	}
	return c.details, c.err
}

// plan is an open signal with every default resolved.
type plan struct {
	price     float64
	quantity  float64
	side      models.Side
	orderType models.OrderType
	targets   [5]float64
	partial   int
}

func (e *Executor) resolvePlan(ctx context.Context, sig models.TradeSignal, info *contractInfo) (plan, error) {
	const op = "executor.open"

	p := plan{
		quantity:  e.policy.Quantity,
		orderType: sig.OrderType,
		partial:   e.policy.PartialCloseSize,
	}
	if p.orderType == 0 {
		p.orderType = e.policy.OrderType
	}
	if sig.Quantity != nil {
		p.quantity = *sig.Quantity
	}
	if sig.PartialCloseSize != nil {
		p.partial = *sig.PartialCloseSize
	}
	direction := e.policy.Direction
	if sig.Direction != nil && *sig.Direction != "" {
		direction = *sig.Direction
	}
	p.side = models.SideFromDirection(direction)

	if sig.Price != nil {
		p.price = *sig.Price
	} else {
		d, err := info.get(ctx)
		if err != nil {
			return p, models.NewError(models.KindValidation, op, err)
		}
		if d.LastPrice <= 0 {
			return p, models.Errorf(models.KindValidation, op, "%s: no price in signal and no lastPrice upstream", info.contractID)
		}
		p.price = d.LastPrice
	}

	sign := p.side.Sign()
	for i, rr := range e.policy.RiskRewards(sig) {
		p.targets[i] = helper.TargetPrice(p.price, sign, rr)
	}
	return p, nil
}

// trailPrice is the tick-aligned trail for a trailing stop. A missing tick
// size is stale data and falls back to the default tick.
func (e *Executor) trailPrice(ctx context.Context, sig models.TradeSignal, p plan, info *contractInfo) float64 {
	d, err := info.get(ctx)
	if err != nil {
		logger.Warn("executor: %v", models.NewError(models.KindStaleData, "executor.trail", err))
	}

	trail := p.price
	switch {
	case sig.TrailPrice != nil:
		trail = *sig.TrailPrice
	case err == nil && d.LastPrice > 0:
		trail = d.LastPrice
	}
	tick := e.policy.TickSize
	if err == nil && d.TickSize > 0 {
		tick = d.TickSize
	}
	return helper.AlignToTick(trail, tick)
}

func (e *Executor) open(ctx context.Context, sig models.TradeSignal, rep *Report) error {
	info := &contractInfo{e: e, contractID: rep.ContractID}
	p, err := e.resolvePlan(ctx, sig, info)
	if err != nil {
		logger.Error("executor: %s: %v", sig.Symbol, err)
		e.metrics.Failure(err)
		return err
	}

	var errs error
	for _, acc := range sig.Accounts {
		res := e.openAccount(ctx, sig, rep.ContractID, acc, p, info)
		rep.add(res)
		if res.Err != nil {
			e.metrics.Failure(res.Err)
			errs = multierr.Append(errs, res.Err)
		}
	}
	return errs
}

func (e *Executor) openAccount(ctx context.Context, sig models.TradeSignal, contractID string, acc models.AccountTarget, p plan, info *contractInfo) AccountResult {
	const op = "executor.open_account"
	res := AccountResult{AccountID: acc.AccountID}

	qty := helper.FloorQty(p.quantity, acc.QuantityMultiplier)
	if qty < 1 {
		res.Outcome = OutcomeFailed
		res.Err = models.Errorf(models.KindValidation, op, "[%d] size %d after multiplier %.4g", acc.AccountID, qty, acc.QuantityMultiplier)
		logger.Warn("executor: %v", res.Err)
		return res
	}

	fresh, err := e.dedup.TryAcquire(ctx, contractID, acc.AccountID)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = models.NewError(models.KindNetwork, op, err)
		logger.Error("[%d] dedup check failed: %v", acc.AccountID, err)
		return res
	}
	if !fresh {
		logger.Info("[%d] duplicate signal for %s within window, skipped", acc.AccountID, contractID)
		e.metrics.Order("skipped")
		res.Outcome = OutcomeDuplicate
		return res
	}

	orders, err := e.broker.SearchOpenOrders(ctx, acc.AccountID, contractID)
	if err != nil {
		logger.Warn("[%d] open order search failed, placing anyway: %v", acc.AccountID, err)
	} else if len(orders) > 0 {
		logger.Info("[%d] %d open order(s) on %s, skipped", acc.AccountID, len(orders), contractID)
		e.metrics.Order("skipped")
		res.Outcome = OutcomeOpenOrder
		return res
	}

	req := models.OrderRequest{
		AccountID:  acc.AccountID,
		ContractID: contractID,
		Type:       int(p.orderType),
		Side:       int(p.side),
		Size:       qty,
	}
	if p.orderType.IsTrailing() {
		trail := e.trailPrice(ctx, sig, p, info)
		req.TrailPrice = &trail
	}

	out, err := e.broker.PlaceOrder(ctx, req)
	if err != nil {
		logger.Error("[%d] place order (type %d) failed: %v", acc.AccountID, req.Type, err)
		e.metrics.Order("rejected")
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}
	logger.Info("[%d] order %d placed: %s %s x%d type %d", acc.AccountID, out.OrderID, contractID, p.side, qty, req.Type)
	e.metrics.Order("placed")
	res.Outcome = OutcomePlaced
	res.OrderID = out.OrderID

	// trailing stops manage their own exit
	if p.orderType.IsTrailing() {
		e.notifier.Sendf("✅ %s %s x%d acc=%d trailing @ %.2f", sig.Symbol, p.side, qty, acc.AccountID, *req.TrailPrice)
		return res
	}

	now := e.now()
	pos := models.Position{
		ContractID:       contractID,
		Symbol:           sig.Symbol,
		EntryPrice:       p.price,
		Side:             p.side,
		TP1:              p.targets[0],
		TP2:              p.targets[1],
		TP3:              p.targets[2],
		TP4:              p.targets[3],
		TP5:              p.targets[4],
		AccountID:        acc.AccountID,
		PartialCloseSize: p.partial,
		OpenedAt:         now,
		UpdatedAt:        now,
	}
	if err := e.positions.SavePosition(ctx, pos); err != nil {
		// the order is live; only the monitoring record is missing
		logger.Error("[%d] save position %s: %v", acc.AccountID, contractID, err)
		res.Err = err
		return res
	}
	logger.Info("order placed and targets set for %s - %d", contractID, acc.AccountID)
	e.notifier.Sendf("✅ %s %s x%d acc=%d @ %.2f tp1=%.2f tp2=%.2f tp3=%.2f",
		sig.Symbol, p.side, qty, acc.AccountID, p.price, pos.TP1, pos.TP2, pos.TP3)
	return res
}
