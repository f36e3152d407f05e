// Package chain wraps the read-only JSON-RPC surface the pipeline
// needs: block height, chunked getLogs, and the two eth_calls behind
// the token metadata cache. A thin struct around *ethclient.Client;
// nothing here signs or sends.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// LogChunkSize bounds a single getLogs request; most public RPC
// providers reject wider ranges.
const LogChunkSize = 1000

// erc20InfoABI is the minimal ABI needed for the two read calls
// MetadataCache performs on a collateral token contract.
const erc20InfoABI = `[
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"}
]`

// Client wraps *ethclient.Client with the narrow surface this pipeline
// consumes.
type Client struct {
	eth      *ethclient.Client
	erc20ABI abi.ABI
}

// Dial connects to the given JSON-RPC endpoint.
func Dial(rpcURL string) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC %s: %w", rpcURL, err)
	}

	parsed, err := abi.JSON(strings.NewReader(erc20InfoABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 info ABI: %w", err)
	}

	return &Client{eth: eth, erc20ABI: parsed}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// BlockNumber returns the current chain head.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	head, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to query block number: %w", err)
	}
	return head, nil
}

// FilterLogsChunked requests getLogs for [fromBlock, toBlock] in
// sub-chunks of at most LogChunkSize blocks, filtered to a single
// emitter address and a single topic0, preserving provider order
// across chunks (Analytics' weighted-average fold depends on it).
func (c *Client) FilterLogsChunked(ctx context.Context, emitter common.Address, eventSig common.Hash, fromBlock, toBlock uint64) ([]types.Log, error) {
	if toBlock < fromBlock {
		return nil, nil
	}

	var all []types.Log
	for chunkStart := fromBlock; chunkStart <= toBlock; chunkStart += LogChunkSize {
		chunkEnd := chunkStart + LogChunkSize - 1
		if chunkEnd > toBlock {
			chunkEnd = toBlock
		}

		query := ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(chunkStart),
			ToBlock:   new(big.Int).SetUint64(chunkEnd),
			Addresses: []common.Address{emitter},
			Topics:    [][]common.Hash{{eventSig}},
		}

		logs, err := c.eth.FilterLogs(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("getLogs failed for blocks %d-%d: %w", chunkStart, chunkEnd, err)
		}
		all = append(all, logs...)
	}

	return all, nil
}

// DecimalsAndSymbol performs the two eth_calls MetadataCache needs on
// a token contract. Either call failing (non-standard token) is
// reported as a single error; the caller applies the {18, "UNKNOWN"}
// fallback.
func (c *Client) DecimalsAndSymbol(ctx context.Context, token common.Address) (uint8, string, error) {
	decimalsData, err := c.erc20ABI.Pack("decimals")
	if err != nil {
		return 0, "", fmt.Errorf("failed to pack decimals() call: %w", err)
	}
	symbolData, err := c.erc20ABI.Pack("symbol")
	if err != nil {
		return 0, "", fmt.Errorf("failed to pack symbol() call: %w", err)
	}

	decimalsOut, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: decimalsData}, nil)
	if err != nil {
		return 0, "", fmt.Errorf("decimals() call failed for %s: %w", token.Hex(), err)
	}
	symbolOut, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: symbolData}, nil)
	if err != nil {
		return 0, "", fmt.Errorf("symbol() call failed for %s: %w", token.Hex(), err)
	}

	decVals, err := c.erc20ABI.Unpack("decimals", decimalsOut)
	if err != nil || len(decVals) != 1 {
		return 0, "", fmt.Errorf("failed to unpack decimals() result for %s: %w", token.Hex(), err)
	}
	symVals, err := c.erc20ABI.Unpack("symbol", symbolOut)
	if err != nil || len(symVals) != 1 {
		return 0, "", fmt.Errorf("failed to unpack symbol() result for %s: %w", token.Hex(), err)
	}

	decimals, ok := decVals[0].(uint8)
	if !ok {
		return 0, "", fmt.Errorf("unexpected decimals() return type for %s", token.Hex())
	}
	symbol, ok := symVals[0].(string)
	if !ok {
		return 0, "", fmt.Errorf("unexpected symbol() return type for %s", token.Hex())
	}

	return decimals, symbol, nil
}
