package client

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/mezonai/simplewallet/config"
	werrors "github.com/mezonai/simplewallet/errors"
	"github.com/mezonai/simplewallet/keystore"
	"github.com/mezonai/simplewallet/logx"
	"github.com/mezonai/simplewallet/payload"
	"github.com/mezonai/simplewallet/transaction"
	"github.com/mezonai/simplewallet/utils"
)

const DefaultPollInterval = 500 * time.Millisecond

// WalletClient signs wallet actions for named users and submits them.
// It holds no per-request state and is safe for concurrent use.
type WalletClient struct {
	family  config.Family
	keys    keystore.KeyStore
	builder *transaction.Builder
	gateway LedgerGateway
}

func NewWalletClient(family config.Family, keys keystore.KeyStore, gateway LedgerGateway) *WalletClient {
	return &WalletClient{
		family:  family,
		keys:    keys,
		builder: transaction.NewBuilder(family, keys),
		gateway: gateway,
	}
}

func (w *WalletClient) Deposit(ctx context.Context, user string, amount *uint256.Int) (*SubmitResult, error) {
	return w.submit(ctx, user, payload.ActionDeposit, amount, "")
}

func (w *WalletClient) Withdraw(ctx context.Context, user string, amount *uint256.Int) (*SubmitResult, error) {
	return w.submit(ctx, user, payload.ActionWithdraw, amount, "")
}

// Transfer moves amount from user to toUser, whose public key comes from the key store
func (w *WalletClient) Transfer(ctx context.Context, user, toUser string, amount *uint256.Int) (*SubmitResult, error) {
	return w.submit(ctx, user, payload.ActionTransfer, amount, toUser)
}

func (w *WalletClient) submit(ctx context.Context, user string, action payload.Action, amount *uint256.Int, toUser string) (*SubmitResult, error) {
	signer, err := keystore.LoadSigner(ctx, w.keys, user)
	if err != nil {
		return nil, err
	}
	list, err := w.builder.Build(ctx, signer, action, amount, toUser)
	if err != nil {
		return nil, err
	}
	raw := list.Marshal()
	result, err := w.gateway.SubmitBatches(ctx, raw)
	if err != nil {
		return nil, err
	}
	if len(result.BatchIDs) == 0 {
		result.BatchIDs = list.IDs()
	}
	logx.Info("WALLET_CLIENT", fmt.Sprintf("%s of %s by %s accepted as %v", action, amount.Dec(), user, result.BatchIDs))
	return result, nil
}

// Balance reads the user's balance from committed state; no record means 0
func (w *WalletClient) Balance(ctx context.Context, user string) (*uint256.Int, error) {
	pub, err := w.keys.PublicKey(ctx, user)
	if err != nil {
		return nil, err
	}
	return w.BalanceOf(ctx, w.family.Address(pub))
}

func (w *WalletClient) BalanceOf(ctx context.Context, addr string) (*uint256.Int, error) {
	data, err := w.gateway.GetState(ctx, addr)
	if err != nil {
		return nil, err
	}
	balance, err := utils.DecodeBalance(data)
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeInternal, "ledger holds a corrupt balance at "+addr, err)
	}
	return balance, nil
}

// WaitForCommit polls until every batch reaches a final status or ctx ends.
// A batch still UNKNOWN when ctx ends is a not-found error.
func (w *WalletClient) WaitForCommit(ctx context.Context, ids []string, poll time.Duration) ([]BatchStatus, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var last []BatchStatus
	for {
		statuses, err := w.gateway.BatchStatuses(ctx, ids)
		if err != nil {
			if ctx.Err() != nil && last != nil {
				return gaveUp(ctx, last)
			}
			return nil, err
		}
		last = statuses
		if allFinal(statuses) {
			return statuses, nil
		}
		select {
		case <-ctx.Done():
			return gaveUp(ctx, last)
		case <-ticker.C:
		}
	}
}

func gaveUp(ctx context.Context, statuses []BatchStatus) ([]BatchStatus, error) {
	if id, ok := firstUnknown(statuses); ok {
		return statuses, werrors.Wrap(werrors.ErrCodeNotFound, "ledger has no record of batch "+id, ctx.Err())
	}
	return statuses, werrors.Wrap(werrors.ErrCodeTransport, "gave up waiting for commit", ctx.Err())
}

func allFinal(statuses []BatchStatus) bool {
	if len(statuses) == 0 {
		return false
	}
	for _, s := range statuses {
		if !s.Final() {
			return false
		}
	}
	return true
}

func firstUnknown(statuses []BatchStatus) (string, bool) {
	for _, s := range statuses {
		if s.Status == StatusUnknown {
			return s.ID, true
		}
	}
	return "", false
}

// AllCommitted is true only when every batch is COMMITTED
func AllCommitted(statuses []BatchStatus) bool {
	if len(statuses) == 0 {
		return false
	}
	for _, s := range statuses {
		if s.Status != StatusCommitted {
			return false
		}
	}
	return true
}

// FirstRejection returns the first invalid transaction message, if any
func FirstRejection(statuses []BatchStatus) (string, bool) {
	for _, s := range statuses {
		if s.Status != StatusInvalid {
			continue
		}
		if len(s.InvalidTransactions) > 0 {
			return s.InvalidTransactions[0].Message, true
		}
		return "batch " + s.ID + " is invalid", true
	}
	return "", false
}
