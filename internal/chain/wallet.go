package chain

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/camuig/agentfi/internal/config"
)

// Wallet is a signing session the user controls. Every call that changes
// session state or signs may block until the user answers.
type Wallet interface {
	// Accounts returns the connected accounts without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)
	// RequestAccounts asks the user to connect.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	// SwitchChain fails with ErrUnrecognizedChain for networks the wallet does not know.
	SwitchChain(ctx context.Context, chainID *big.Int) error
	AddChain(ctx context.Context, network Network) error
	SignTx(ctx context.Context, account common.Address, tx *types.Transaction) (*types.Transaction, error)
}

// Network is a chain definition a wallet can switch to.
type Network struct {
	ChainID        *big.Int
	Name           string
	RPCURL         string
	CurrencySymbol string
	ExplorerURL    string
}

func NetworkFromConfig(n config.NetworkConfig) Network {
	return Network{
		ChainID:        big.NewInt(n.ChainID),
		Name:           n.Name,
		RPCURL:         n.RPCURL,
		CurrencySymbol: n.CurrencySymbol,
		ExplorerURL:    n.ExplorerURL,
	}
}

// ApprovalRequest describes what the user is asked to approve.
type ApprovalRequest struct {
	Action  string // connect, switch_chain, add_chain, sign
	Message string
}

// Approver answers an approval request. A nil error approves; anything else
// is treated as a rejection.
type Approver func(ctx context.Context, req ApprovalRequest) error

// AutoApprove approves everything until ctx is done.
func AutoApprove(ctx context.Context, _ ApprovalRequest) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUserRejected, err)
	}
	return nil
}

// PromptApprover asks on out and reads a y/N answer from in.
// Cancelling ctx while waiting counts as a rejection.
func PromptApprover(in io.Reader, out io.Writer) Approver {
	reader := bufio.NewReader(in)
	var mu sync.Mutex

	return func(ctx context.Context, req ApprovalRequest) error {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(out, "[wallet] %s\nApprove? [y/N]: ", req.Message)

		answer := make(chan string, 1)
		go func() {
			line, _ := reader.ReadString('\n')
			answer <- strings.ToLower(strings.TrimSpace(line))
		}()

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrUserRejected, ctx.Err())
		case a := <-answer:
			if a == "y" || a == "yes" {
				return nil
			}
			return ErrUserRejected
		}
	}
}

var mainnet = Network{
	ChainID:        big.NewInt(1),
	Name:           "Ethereum Mainnet",
	CurrencySymbol: "ETH",
}

// KeyWallet is a Wallet backed by a local private key.
type KeyWallet struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	approve  Approver
	mu       sync.Mutex
	networks map[string]Network
	active   *big.Int
	accounts []common.Address
}

// NewKeyWallet starts disconnected on the first known network, or on
// Ethereum mainnet when none are given.
func NewKeyWallet(key *ecdsa.PrivateKey, approve Approver, networks ...Network) *KeyWallet {
	if approve == nil {
		approve = AutoApprove
	}
	if len(networks) == 0 {
		networks = []Network{mainnet}
	}
	w := &KeyWallet{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		approve:  approve,
		networks: make(map[string]Network, len(networks)),
		active:   new(big.Int).Set(networks[0].ChainID),
	}
	for _, n := range networks {
		w.networks[n.ChainID.String()] = n
	}
	return w
}

// ParsePrivateKey accepts a hex key with or without the 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

func (w *KeyWallet) Address() common.Address {
	return w.address
}

func (w *KeyWallet) ask(ctx context.Context, action, message string) error {
	err := w.approve(ctx, ApprovalRequest{Action: action, Message: message})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUserRejected):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrUserRejected, err)
	}
}

func (w *KeyWallet) Accounts(ctx context.Context) ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]common.Address(nil), w.accounts...), nil
}

func (w *KeyWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.accounts) > 0 {
		return append([]common.Address(nil), w.accounts...), nil
	}
	if err := w.ask(ctx, "connect", fmt.Sprintf("Connect account %s", w.address.Hex())); err != nil {
		return nil, err
	}
	w.accounts = []common.Address{w.address}
	return append([]common.Address(nil), w.accounts...), nil
}

func (w *KeyWallet) ChainID(ctx context.Context) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return new(big.Int).Set(w.active), nil
}

func (w *KeyWallet) SwitchChain(ctx context.Context, chainID *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.active.Cmp(chainID) == 0 {
		return nil
	}
	n, ok := w.networks[chainID.String()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnrecognizedChain, chainID)
	}
	if err := w.ask(ctx, "switch_chain", fmt.Sprintf("Switch to %s (chain %s)", n.Name, chainID)); err != nil {
		return err
	}
	w.active = new(big.Int).Set(chainID)
	return nil
}

func (w *KeyWallet) AddChain(ctx context.Context, n Network) error {
	if n.ChainID == nil || n.ChainID.Sign() <= 0 {
		return fmt.Errorf("add chain: invalid chain id")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.networks[n.ChainID.String()]; ok {
		return nil
	}
	msg := fmt.Sprintf("Add network %s (chain %s, rpc %s)", n.Name, n.ChainID, n.RPCURL)
	if err := w.ask(ctx, "add_chain", msg); err != nil {
		return err
	}
	w.networks[n.ChainID.String()] = n
	return nil
}

func (w *KeyWallet) SignTx(ctx context.Context, account common.Address, tx *types.Transaction) (*types.Transaction, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.accounts) == 0 {
		return nil, ErrNoAccount
	}
	if account != w.address {
		return nil, fmt.Errorf("%w: %s", ErrAccountMismatch, account.Hex())
	}
	if tx.ChainId().Cmp(w.active) != 0 {
		return nil, fmt.Errorf("%w: tx for chain %s, wallet on %s", ErrWrongNetwork, tx.ChainId(), w.active)
	}

	to := "contract creation"
	if tx.To() != nil {
		to = tx.To().Hex()
	}
	msg := fmt.Sprintf("Sign transaction to %s (nonce %d, gas %d)", to, tx.Nonce(), tx.Gas())
	if err := w.ask(ctx, "sign", msg); err != nil {
		return nil, err
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(w.active), w.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx: %w", err)
	}
	return signed, nil
}
