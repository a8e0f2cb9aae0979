// Package chainfeed adapts *ethclient.Client's websocket subscriptions to
// internal/engine's narrow BlockSubscriber/MempoolSubscriber interfaces,
// the way pkg/contractclient adapts it to the chain-call interfaces the
// rest of this repo depends on instead of *ethclient.Client directly.
package chainfeed

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/strongca22-cpu/dexarb-sub003/internal/engine"
)

// BlockFeed subscribes to new chain heads over a websocket connection.
type BlockFeed struct {
	client *ethclient.Client
}

// NewBlockFeed wraps client, which must be dialed over a websocket (ws://
// or wss://) endpoint for eth_subscribe support.
func NewBlockFeed(client *ethclient.Client) *BlockFeed {
	return &BlockFeed{client: client}
}

// Subscribe implements engine.BlockSubscriber. The returned channel is
// closed, and the subscription torn down, when ctx is cancelled or the
// underlying subscription errors.
func (f *BlockFeed) Subscribe(ctx context.Context) (<-chan engine.BlockHeader, error) {
	headers := make(chan *types.Header)
	sub, err := f.client.SubscribeNewHead(ctx, headers)
	if err != nil {
		return nil, fmt.Errorf("chainfeed: subscribe new head: %w", err)
	}

	out := make(chan engine.BlockHeader)
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
			case header := <-headers:
				if header == nil {
					return
				}
				select {
				case out <- engine.BlockHeader{Number: header.Number.Uint64(), BaseFee: header.BaseFee}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
