package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrReverted is returned when a mined transaction did not succeed.
var ErrReverted = errors.New("transaction reverted")

// WaitMined polls for the transaction receipt at the specified interval
// until it is available or the context is done.
func WaitMined(ctx context.Context, p Provider, hash common.Hash, interval time.Duration) (Receipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := TransactionReceipt(ctx, p, hash)
		if err != nil {
			return Receipt{}, err
		}

		if receipt != nil {
			if !receipt.Successful() {
				return *receipt, fmt.Errorf("tx %s: %w", hash, ErrReverted)
			}
			return *receipt, nil
		}

		select {
		case <-ctx.Done():
			return Receipt{}, fmt.Errorf("waiting for tx %s: %w", hash, ctx.Err())
		case <-ticker.C:
		}
	}
}
