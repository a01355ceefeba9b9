// Package txbuilder turns resolved transfer intents into unsigned calls.
// It never touches the queue or the multisig manager.
package txbuilder

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tranvictor/safetx/chain"
	safetxcommon "github.com/tranvictor/safetx/common"
	"github.com/tranvictor/safetx/logger"
	"github.com/tranvictor/safetx/util/cache"
)

const decimalsCacheSize = 256

type Builder struct {
	client   chain.Client
	decimals *cache.Cache[common.Address, int32]
	l        *zap.Logger
}

func New(client chain.Client, l *zap.Logger) *Builder {
	return &Builder{
		client:   client,
		decimals: cache.NewLRUCache[common.Address, int32](decimalsCacheSize, "token_decimals"),
		l:        logger.OrNop(l).With(zap.String("component", "txbuilder")),
	}
}

// BuildNativeTransfer sends quantity of the native asset to `to`.
func (b *Builder) BuildNativeTransfer(to common.Address, quantity decimal.Decimal) (safetxcommon.UnsignedTransaction, error) {
	value, err := safetxcommon.NewAmount(quantity, safetxcommon.NativeDecimals).BaseUnits()
	if err != nil {
		return safetxcommon.UnsignedTransaction{}, err
	}
	return safetxcommon.NewUnsignedTransaction(to, nil, value, 0), nil
}

// BuildTokenTransfer calls transfer(to, amount) on the ERC20 at token,
// scaling quantity with the token's own decimals.
func (b *Builder) BuildTokenTransfer(
	ctx context.Context,
	token common.Address,
	to common.Address,
	quantity decimal.Decimal,
) (safetxcommon.UnsignedTransaction, error) {
	decimals, err := b.Decimals(ctx, token)
	if err != nil {
		return safetxcommon.UnsignedTransaction{}, err
	}
	amount, err := safetxcommon.NewAmount(quantity, decimals).BaseUnits()
	if err != nil {
		return safetxcommon.UnsignedTransaction{}, err
	}
	data, err := safetxcommon.PackERC20Data("transfer", to, amount)
	if err != nil {
		return safetxcommon.UnsignedTransaction{}, fmt.Errorf("couldn't encode transfer: %w", err)
	}
	return safetxcommon.NewUnsignedTransaction(token, data, big.NewInt(0), 0), nil
}

// Decimals reads decimals() once per token for the life of the builder.
func (b *Builder) Decimals(ctx context.Context, token common.Address) (int32, error) {
	if d, found := b.decimals.Get(token); found {
		return d, nil
	}
	out, err := chain.Call(ctx, b.client, token, safetxcommon.GetERC20ABI(), "decimals")
	if err != nil {
		return 0, fmt.Errorf("couldn't read decimals of %s: %w", token.Hex(), err)
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, safetxcommon.NewTransportError("decimals", fmt.Errorf("unexpected output type %T", out[0]))
	}
	b.decimals.Set(token, int32(d))
	b.l.Debug("cached token decimals", zap.Stringer("token", token), zap.Uint8("decimals", d))
	return int32(d), nil
}

// TokenBalance is owner's balance of token in whole token units.
func (b *Builder) TokenBalance(ctx context.Context, token, owner common.Address) (decimal.Decimal, error) {
	decimals, err := b.Decimals(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := chain.CallBigInt(ctx, b.client, token, safetxcommon.GetERC20ABI(), "balanceOf", owner)
	if err != nil {
		return decimal.Zero, fmt.Errorf("couldn't read balance of %s: %w", owner.Hex(), err)
	}
	return safetxcommon.BaseUnitsToDecimal(balance, decimals), nil
}

// NativeBalance is owner's balance of the native asset in whole units.
func (b *Builder) NativeBalance(ctx context.Context, owner common.Address) (decimal.Decimal, error) {
	balance, err := b.client.Balance(ctx, owner)
	if err != nil {
		return decimal.Zero, fmt.Errorf("couldn't read balance of %s: %w", owner.Hex(), err)
	}
	return safetxcommon.BaseUnitsToDecimal(balance, safetxcommon.NativeDecimals), nil
}
