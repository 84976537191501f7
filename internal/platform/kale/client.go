// Package kale is the on-chain client for the KALE staking token. It speaks
// the fungible-token ABI directly over JSON-RPC: balanceOf for stake checks
// and transferFrom, submitted by the relayer, for treasury transfers.
package kale

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	kcrypto "github.com/collabkale/kaledao/internal/crypto"
	"github.com/collabkale/kaledao/internal/domain"
)

// 4-byte ABI selectors, keccak256 of the canonical signatures.
var (
	selBalanceOf    = ethcrypto.Keccak256([]byte("balanceOf(address)"))[:4]
	selTransferFrom = ethcrypto.Keccak256([]byte("transferFrom(address,address,uint256)"))[:4]
)

// ClientConfig holds chain connection parameters.
type ClientConfig struct {
	RPCURL      string
	ChainID     int64
	CallTimeout time.Duration
}

// Client implements domain.TokenClient against an EVM JSON-RPC endpoint.
// Transfers are signed by the relayer key and use the allowance the stakers
// granted the treasury relayer.
type Client struct {
	eth         *ethclient.Client
	signer      *kcrypto.Signer
	chainID     *big.Int
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewClient dials the RPC endpoint and returns a token client.
func NewClient(cfg ClientConfig, signer *kcrypto.Signer, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("kale: dial rpc %s: %w", cfg.RPCURL, err)
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		eth:         eth,
		signer:      signer,
		chainID:     big.NewInt(cfg.ChainID),
		callTimeout: timeout,
		logger:      logger.With("component", "kale_token"),
	}, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// BalanceOf reads the holder's token balance with an eth_call. Balances are
// returned in base units and must fit int64; KALE's supply keeps them well
// inside that range.
func (c *Client) BalanceOf(ctx context.Context, token, holder string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	tokenAddr := common.HexToAddress(token)
	data := append([]byte{}, selBalanceOf...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(holder).Bytes(), 32)...)

	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &tokenAddr,
		Data: data,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("kale: balanceOf %s: %w", holder, err)
	}

	bal := new(big.Int).SetBytes(out)
	if !bal.IsInt64() {
		return 0, fmt.Errorf("kale: balance of %s overflows int64", holder)
	}
	return bal.Int64(), nil
}

// Transfer moves amount base units from holder to recipient via
// transferFrom, signed and submitted by the relayer. It waits for the
// transaction receipt so a failed transfer surfaces as an error and aborts
// the caller's unit of work.
func (c *Client) Transfer(ctx context.Context, token, from, to string, amount int64) error {
	tokenAddr := common.HexToAddress(token)

	data := append([]byte{}, selTransferFrom...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(from).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(to).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(big.NewInt(amount).Bytes(), 32)...)

	relayer := common.HexToAddress(c.signer.Address())

	nonce, err := c.eth.PendingNonceAt(ctx, relayer)
	if err != nil {
		return fmt.Errorf("kale: pending nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("kale: suggest gas price: %w", err)
	}
	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: relayer,
		To:   &tokenAddr,
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("kale: estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &tokenAddr,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.signer.PrivateKey())
	if err != nil {
		return fmt.Errorf("kale: sign transfer tx: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("kale: send transfer tx: %w", err)
	}

	c.logger.Info("transfer submitted",
		"tx", signed.Hash().Hex(), "from", from, "to", to, "amount", amount)

	receipt, err := c.waitMined(ctx, signed.Hash())
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("kale: transfer tx %s reverted", signed.Hash().Hex())
	}
	return nil
}

// waitMined polls for the transaction receipt until the context expires.
func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("kale: wait for tx %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Compile-time interface check.
var _ domain.TokenClient = (*Client)(nil)
