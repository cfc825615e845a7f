package evm

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaintodo/internal/ledger"
)

func packTasks(t *testing.T, tasks []contractTask) []byte {
	t.Helper()
	parsed, err := parseABI()
	require.NoError(t, err)
	data, err := parsed.Methods["getTasks"].Outputs.Pack(tasks)
	require.NoError(t, err)
	return data
}

func TestDecodeTasks(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 64)

	tests := map[string]struct {
		tasks    []contractTask
		expTasks []ledger.Task
		expErr   bool
	}{
		"Empty list": {
			tasks:    []contractTask{},
			expTasks: []ledger.Task{},
		},
		"Contract order is kept": {
			tasks: []contractTask{
				{Id: big.NewInt(1), Description: "a", Completed: true},
				{Id: big.NewInt(0), Description: "b"},
				{Id: big.NewInt(7), Description: "c"},
			},
			expTasks: []ledger.Task{
				{ID: 1, Description: "a", Completed: true},
				{ID: 0, Description: "b"},
				{ID: 7, Description: "c"},
			},
		},
		"Ids above uint64 are rejected": {
			tasks:  []contractTask{{Id: tooBig, Description: "x"}},
			expErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			parsed, err := parseABI()
			require.NoError(t, err)
			out, err := parsed.Unpack("getTasks", packTasks(t, tt.tasks))
			require.NoError(t, err)

			got, err := decodeTasks(out)
			if tt.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expTasks, got)
		})
	}
}

func TestDecodeTasksWrongArity(t *testing.T) {
	_, err := decodeTasks(nil)
	assert.Error(t, err)
}

func TestWrapError(t *testing.T) {
	tests := map[string]struct {
		err      error
		contains string
	}{
		"Timeout":      {err: errors.New("Post: context deadline exceeded"), contains: "timed out"},
		"Unauthorized": {err: errors.New("401 Unauthorized"), contains: "rejected credentials"},
		"No gas":       {err: errors.New("insufficient funds for gas * price + value"), contains: "cannot pay for gas"},
		"Passthrough":  {err: errors.New("execution reverted"), contains: "execution reverted"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := wrapError(tt.err)
			assert.Contains(t, got.Error(), tt.contains)
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.NoError(t, wrapError(nil))
}

// rpcServer answers JSON-RPC calls with canned results keyed by method.
func rpcServer(t *testing.T, results map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if res, ok := results[req.Method]; ok {
			resp["result"] = res
		} else {
			resp["error"] = map[string]any{"code": -32601, "message": "method not found: " + req.Method}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestContractGetTasksOverRPC(t *testing.T) {
	data := packTasks(t, []contractTask{
		{Id: big.NewInt(1), Description: "buy milk"},
		{Id: big.NewInt(2), Description: "walk dog", Completed: true},
	})
	srv := rpcServer(t, map[string]any{
		"eth_chainId": "0x7a69",
		"eth_call":    hexutil.Encode(data),
	})

	w, err := NewWallet(Config{
		RPCURL:          srv.URL,
		ContractAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		PrivateKey:      testKey,
	})
	require.NoError(t, err)
	defer w.Close()

	conn, err := w.RequestAccess(t.Context())
	require.NoError(t, err)
	assert.Equal(t, testAddress, conn.Address)

	tasks, err := conn.Handle.GetTasks(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []ledger.Task{
		{ID: 1, Description: "buy milk"},
		{ID: 2, Description: "walk dog", Completed: true},
	}, tasks)
}
