// Package chain reads network state from an Ethereum-compatible JSON-RPC
// endpoint.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Config holds connection settings for the RPC endpoint.
type Config struct {
	RPCURL  string
	ChainID int64
	Network string
	Timeout time.Duration
}

// Client is a read-only view of the chain.
type Client struct {
	eth    *ethclient.Client
	cfg    Config
	logger *slog.Logger
}

// Dial connects to cfg.RPCURL. The connection is lazy for HTTP endpoints, so
// a successful Dial does not prove the node is reachable.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.Network, err)
	}
	return &Client{
		eth:    eth,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "chain")),
	}, nil
}

// BlockNumber returns the latest block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: block number: %w", err)
	}
	return n, nil
}

// ChainID returns the id reported by the node.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: chain id: %w", err)
	}
	return id, nil
}

// VerifyNetwork compares the node's chain id with the configured one.
func (c *Client) VerifyNetwork(ctx context.Context) error {
	id, err := c.ChainID(ctx)
	if err != nil {
		return err
	}
	if c.cfg.ChainID != 0 && id.Cmp(big.NewInt(c.cfg.ChainID)) != 0 {
		return fmt.Errorf("chain: node reports chain id %s, configured %d (%s)", id, c.cfg.ChainID, c.cfg.Network)
	}
	c.logger.InfoContext(ctx, "chain: connected",
		slog.String("network", c.cfg.Network),
		slog.String("chain_id", id.String()),
	)
	return nil
}

// Ping checks that the node answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.BlockNumber(ctx)
	return err
}

// Network returns the configured network name.
func (c *Client) Network() string {
	return c.cfg.Network
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}
