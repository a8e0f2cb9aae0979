package execution

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/strongca22-cpu/dexarb-sub003/internal/cooldown"
	"github.com/strongca22-cpu/dexarb-sub003/pkg/contractclient"
)

// Config is the execution pipeline's slice of the configuration surface
// (spec §6 table): gas floors/caps, the mempool path's fixed gas limit,
// and the live/dry-run switch.
type Config struct {
	// PriorityFeeFloor is the block-reactive path's configured tip floor.
	PriorityFeeFloor *big.Int
	// MempoolPriorityFeeFloor is the mempool/hybrid path's own floor
	// (`mempool_min_priority_gwei`).
	MempoolPriorityFeeFloor *big.Int
	// MempoolGasLimit is the fixed safe gas limit used in place of
	// estimation on the mempool/hybrid path (`mempool_gas_limit`).
	MempoolGasLimit uint64
	// ProfitCapFraction bounds priority-fee spend as a share of estimated
	// profit (`mempool_gas_profit_cap`, default 0.5).
	ProfitCapFraction *big.Float
	// MaxMempoolSignalAge is the staleness cutoff (spec §4.H step 1, 10s).
	MaxMempoolSignalAge time.Duration
	// LiveMode false is dry-run (`live_mode`): the pipeline runs its
	// pre-flight checks and reports success without signing or submitting
	// a transaction.
	LiveMode bool
}

type receiptWaitFunc func(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

// Pipeline implements spec component H against a single ArbExecutor
// contract, wrapping pkg/contractclient's Send pattern with the cached
// nonce/base-fee fields and receipt classification spec §4.H/§9 call for.
// Single-writer over the wallet's nonce (spec §5): callers must serialize
// ExecuteBlockReactive/ExecuteMempoolSignal through the main loop.
type Pipeline struct {
	client     contractclient.ContractClient
	quoter     Quoter
	signer     *ecdsa.PrivateKey
	signerAddr common.Address
	nonce      *NonceCache
	baseFee    *BaseFeeCache
	cooldown   *cooldown.Tracker
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
	waitReceipt receiptWaitFunc
}

// New wires a Pipeline. client must already be bound to the executor's
// address and ABI (see NewExecutorClient).
func New(client contractclient.ContractClient, quoter Quoter, signer *ecdsa.PrivateKey, nonce *NonceCache, baseFee *BaseFeeCache, cd *cooldown.Tracker, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		client:     client,
		quoter:     quoter,
		signer:     signer,
		signerAddr: crypto.PubkeyToAddress(signer.PublicKey),
		nonce:      nonce,
		baseFee:    baseFee,
		cooldown:   cd,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
	p.waitReceipt = p.pollReceipt
	return p
}

// ExecuteBlockReactive runs the block-reactive path (spec §4.H steps 1-5):
// pre-flight re-quote, cached nonce/base-fee prefill, gas estimation with
// fast-failure on revert, sign+submit, receipt classification.
func (p *Pipeline) ExecuteBlockReactive(ctx context.Context, req Request) Result {
	feeBuy, feeSell, ok := p.encodeFees(req)
	if !ok {
		p.recordFailure(req)
		return Result{Outcome: OutcomePreflightRejected, Err: errors.New("execution: fee sentinel encoding failed")}
	}
	if !p.preflightViable(ctx, req, feeBuy, feeSell) {
		p.recordFailure(req)
		return Result{Outcome: OutcomePreflightRejected}
	}

	gasLimit, err := p.client.EstimateGas(ctx, p.signerAddr, nil, "executeArb",
		req.Token0, req.Token1, req.RouterBuy, req.RouterSell, feeBuy, feeSell, req.AmountIn, req.MinProfit)
	if err != nil {
		p.recordFailure(req)
		return Result{Outcome: OutcomeGasEstimationReverted, Err: err}
	}

	return p.signSubmitAndClassify(ctx, req, feeBuy, feeSell, p.cfg.PriorityFeeFloor, gasLimit)
}

// ExecuteMempoolSignal runs the mempool/hybrid path (spec §4.H steps 1,
// 4-5): staleness drop, pre-flight re-quote, fixed gas limit instead of
// estimation, dynamic priority-fee pricing anchored to the trigger tx.
func (p *Pipeline) ExecuteMempoolSignal(ctx context.Context, req Request, trigger TriggerInfo) Result {
	if p.now().Sub(trigger.SeenAt) > p.cfg.MaxMempoolSignalAge {
		return Result{Outcome: OutcomeStaleSignal}
	}

	feeBuy, feeSell, ok := p.encodeFees(req)
	if !ok {
		p.recordFailure(req)
		return Result{Outcome: OutcomePreflightRejected, Err: errors.New("execution: fee sentinel encoding failed")}
	}
	if !p.preflightViable(ctx, req, feeBuy, feeSell) {
		p.recordFailure(req)
		return Result{Outcome: OutcomePreflightRejected}
	}

	tipCap := DynamicPriorityFee(req.EstimatedProfitWei, p.cfg.ProfitCapFraction, trigger.PriorityFeeWei, p.cfg.MempoolPriorityFeeFloor)
	return p.signSubmitAndClassify(ctx, req, feeBuy, feeSell, tipCap, p.cfg.MempoolGasLimit)
}

func (p *Pipeline) encodeFees(req Request) (feeBuy, feeSell *big.Int, ok bool) {
	fb, err := EncodeFee(req.FamilyBuy, req.FeeTierBuy)
	if err != nil {
		p.logger.Warn("execution: encode buy-leg fee", zap.Error(err))
		return nil, nil, false
	}
	fs, err := EncodeFee(req.FamilySell, req.FeeTierSell)
	if err != nil {
		p.logger.Warn("execution: encode sell-leg fee", zap.Error(err))
		return nil, nil, false
	}
	return fb, fs, true
}

func (p *Pipeline) preflightViable(ctx context.Context, req Request, feeBuy, feeSell *big.Int) bool {
	intermediateOut, err := p.quoter.QuoteExactIn(ctx, req.RouterBuy, req.Token0, req.Token1, feeBuy, req.AmountIn)
	if err != nil {
		p.logger.Debug("execution: buy-leg pre-flight quote failed", zap.Error(err))
		return false
	}
	finalOut, err := p.quoter.QuoteExactIn(ctx, req.RouterSell, req.Token1, req.Token0, feeSell, intermediateOut)
	if err != nil {
		p.logger.Debug("execution: sell-leg pre-flight quote failed", zap.Error(err))
		return false
	}
	profit := new(big.Int).Sub(finalOut, req.AmountIn)
	return profit.Cmp(req.MinProfit) >= 0
}

func (p *Pipeline) signSubmitAndClassify(ctx context.Context, req Request, feeBuy, feeSell, tipCap *big.Int, gasLimit uint64) Result {
	nonce, ready := p.nonce.Current()
	if !ready {
		return Result{Outcome: OutcomeTransportFailure, Err: errors.New("execution: nonce cache not initialized")}
	}
	feeCap := p.baseFee.FeeCap(tipCap)

	if !p.cfg.LiveMode {
		p.logger.Info("execution: dry-run, submission skipped", zap.String("route", string(req.Route.Pair)))
		return Result{Outcome: OutcomeSuccess}
	}

	txHash, err := p.client.SendRaw(ctx, p.signer, "executeArb", nil,
		contractclient.TxParams{Nonce: nonce, GasTipCap: tipCap, GasFeeCap: feeCap, GasLimit: gasLimit},
		req.Token0, req.Token1, req.RouterBuy, req.RouterSell, feeBuy, feeSell, req.AmountIn, req.MinProfit)
	if err != nil {
		// Nonce deliberately left unchanged: a failed submit is not a
		// successful send (spec §5 "Nonce is strictly monotonic").
		return Result{Outcome: OutcomeTransportFailure, Err: err}
	}
	p.nonce.Advance()

	receipt, err := p.waitReceipt(ctx, txHash)
	if err != nil {
		return Result{Outcome: OutcomeTransportFailure, TxHash: txHash, Err: err}
	}
	return p.classify(ctx, req, txHash, receipt, feeBuy, feeSell)
}

func (p *Pipeline) classify(ctx context.Context, req Request, txHash common.Hash, receipt *types.Receipt, feeBuy, feeSell *big.Int) Result {
	if receipt.Status == types.ReceiptStatusSuccessful {
		p.cooldown.RecordSuccess(req.Route)
		return Result{Outcome: OutcomeSuccess, TxHash: txHash}
	}

	var blockNumber *big.Int
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber
	}
	p.cooldown.RecordFailure(req.Route, req.DetectedAtBlock)

	data, replayErr := p.client.ReplayAt(ctx, &p.signerAddr, blockNumber, "executeArb",
		req.Token0, req.Token1, req.RouterBuy, req.RouterSell, feeBuy, feeSell, req.AmountIn, req.MinProfit)
	if replayErr == nil {
		if actual, required, isInsufficientProfit := classifyRevert(p.client.Abi(), data); isInsufficientProfit {
			// Expected most common failure under competition (spec §7):
			// recorded but not escalated beyond the normal cooldown bump.
			p.logger.Debug("execution: insufficient profit", zap.String("tx", txHash.Hex()))
			return Result{Outcome: OutcomeInsufficientProfit, TxHash: txHash, InsufficientActual: actual, InsufficientRequired: required}
		}
	}
	p.logger.Warn("execution: other revert", zap.String("tx", txHash.Hex()))
	return Result{Outcome: OutcomeOtherRevert, TxHash: txHash}
}

func (p *Pipeline) recordFailure(req Request) {
	p.cooldown.RecordFailure(req.Route, req.DetectedAtBlock)
}

// pollReceipt is the production receipt wait: poll at a fixed interval
// until the context is done or a receipt appears.
func (p *Pipeline) pollReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		receipt, err := p.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
