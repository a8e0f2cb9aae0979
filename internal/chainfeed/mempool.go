package chainfeed

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/strongca22-cpu/dexarb-sub003/internal/mempool"
)

// MempoolFeed subscribes to full pending transaction bodies over a
// websocket connection (spec §4.E step 1: "subscribe to the pending
// transaction pool").
type MempoolFeed struct {
	geth *gethclient.Client
}

// NewMempoolFeed wraps rpcClient, the same websocket rpc.Client the
// *ethclient.Client passed to NewBlockFeed was built from.
func NewMempoolFeed(rpcClient *rpc.Client) *MempoolFeed {
	return &MempoolFeed{geth: gethclient.New(rpcClient)}
}

// Subscribe implements engine.MempoolSubscriber. Transactions missing a
// "to" address (contract creations) are skipped: spec §4.E only concerns
// calls into a known router.
func (f *MempoolFeed) Subscribe(ctx context.Context) (<-chan mempool.PendingTx, error) {
	txs := make(chan *types.Transaction)
	sub, err := f.geth.SubscribeFullPendingTransactions(ctx, txs)
	if err != nil {
		return nil, fmt.Errorf("chainfeed: subscribe pending transactions: %w", err)
	}

	out := make(chan mempool.PendingTx)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				if err != nil {
					return
				}
			case tx := <-txs:
				if tx == nil || tx.To() == nil {
					continue
				}
				pending := mempool.PendingTx{
					Hash:        tx.Hash(),
					To:          *tx.To(),
					Data:        tx.Data(),
					Value:       tx.Value(),
					GasPrice:    tx.GasPrice(),
					PriorityFee: tx.GasTipCap(),
					SeenAt:      time.Now(),
				}
				select {
				case out <- pending:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
