// Package evm implements the ledger interfaces against a ToDo contract
// deployed on an EVM chain.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"chaintodo/internal/ledger"
)

const (
	// APITimeout is the timeout for read calls.
	APITimeout = 10 * time.Second
)

// Backend is the chain access a Contract needs. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

var parseABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(todoABI))
})

// contractTask mirrors the tuple returned by getTasks.
type contractTask struct {
	Id          *big.Int
	Description string
	Completed   bool
}

// Contract implements ledger.Handle on a deployed ToDo contract.
type Contract struct {
	address common.Address
	backend Backend
	bound   *bind.BoundContract
	auth    *bind.TransactOpts

	// sendMu serializes submissions so two tracks never race for a nonce.
	sendMu sync.Mutex
}

// NewContract binds the contract at address. auth signs every write and its
// From is used for reads.
func NewContract(address common.Address, backend Backend, auth *bind.TransactOpts) (*Contract, error) {
	parsed, err := parseABI()
	if err != nil {
		return nil, fmt.Errorf("invalid contract abi: %w", err)
	}
	return &Contract{
		address: address,
		backend: backend,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
		auth:    auth,
	}, nil
}

// Address returns the contract address.
func (c *Contract) Address() common.Address {
	return c.address
}

// GetTasks returns the task set in contract order.
func (c *Contract) GetTasks(ctx context.Context) ([]ledger.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var out []interface{}
	err := c.bound.Call(&bind.CallOpts{Context: ctx, From: c.auth.From}, &out, "getTasks")
	if err != nil {
		return nil, wrapError(err)
	}
	return decodeTasks(out)
}

// AddTask submits addTask(description).
func (c *Contract) AddTask(ctx context.Context, description string) (ledger.Tx, error) {
	return c.transact(ctx, "addTask", description)
}

// CompleteTask submits completeTask(id).
func (c *Contract) CompleteTask(ctx context.Context, id ledger.TaskID) (ledger.Tx, error) {
	return c.transact(ctx, "completeTask", new(big.Int).SetUint64(uint64(id)))
}

func (c *Contract) transact(ctx context.Context, method string, params ...interface{}) (ledger.Tx, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	opts := *c.auth
	opts.Context = ctx
	tx, err := c.bound.Transact(&opts, method, params...)
	if err != nil {
		return nil, wrapError(err)
	}
	return &transaction{tx: tx, backend: c.backend}, nil
}

func decodeTasks(out []interface{}) ([]ledger.Task, error) {
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected getTasks output: %d values", len(out))
	}
	raw := *abi.ConvertType(out[0], new([]contractTask)).(*[]contractTask)

	tasks := make([]ledger.Task, 0, len(raw))
	for _, t := range raw {
		if t.Id == nil || !t.Id.IsUint64() {
			return nil, fmt.Errorf("task id %v out of range", t.Id)
		}
		tasks = append(tasks, ledger.Task{
			ID:          ledger.TaskID(t.Id.Uint64()),
			Description: t.Description,
			Completed:   t.Completed,
		})
	}
	return tasks, nil
}

// transaction implements ledger.Tx.
type transaction struct {
	tx      *types.Transaction
	backend bind.DeployBackend
}

func (t *transaction) Hash() string {
	return t.tx.Hash().Hex()
}

// Wait blocks until the transaction is mined. A reverted receipt is an error.
func (t *transaction) Wait(ctx context.Context) error {
	receipt, err := bind.WaitMined(ctx, t.backend, t.tx)
	if err != nil {
		return wrapError(err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted in block %v", t.Hash(), receipt.BlockNumber)
	}
	return nil
}

// wrapError wraps RPC errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	// Check for timeout
	if strings.Contains(errStr, "context deadline exceeded") {
		return fmt.Errorf("request timed out: %w", err)
	}

	// Check for auth errors from gated providers
	if strings.Contains(errStr, "401") || strings.Contains(errStr, "403") {
		return fmt.Errorf("rpc provider rejected credentials (check [rpc_oauth] or run: chaintodo login): %w", err)
	}

	if strings.Contains(errStr, "insufficient funds") {
		return fmt.Errorf("account cannot pay for gas: %w", err)
	}

	return err
}
