package processor

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/mezonai/simplewallet/address"
	"github.com/mezonai/simplewallet/config"
	werrors "github.com/mezonai/simplewallet/errors"
	"github.com/mezonai/simplewallet/logx"
	"github.com/mezonai/simplewallet/payload"
	"github.com/mezonai/simplewallet/signing"
	"github.com/mezonai/simplewallet/utils"
)

// Wallet applies deposit, withdraw and transfer requests to balances
type Wallet struct {
	family config.Family
}

func NewWallet(family config.Family) *Wallet {
	return &Wallet{family: family}
}

// Handler returns the descriptor to register with a ledger
func (w *Wallet) Handler() TransactionHandler {
	return TransactionHandler{
		FamilyName:     w.family.Name(),
		FamilyVersions: []string{w.family.Version()},
		Namespaces:     []string{w.family.Namespace()},
		Apply:          w.ApplyTransaction,
	}
}

// ApplyTransaction decodes the payload and derives the signer address from the header
func (w *Wallet) ApplyTransaction(req *Request, state StateAccessor) error {
	if req == nil || req.Header == nil {
		return werrors.NewError(werrors.ErrCodeMalformedRequest, "transaction header is missing")
	}
	decoded, err := payload.Decode(req.Payload)
	if err != nil {
		return err
	}
	if req.Header.SignerPublicKey == "" {
		return werrors.NewError(werrors.ErrCodeMalformedRequest, "transaction has no signer public key")
	}
	signerAddress := w.family.Address(req.Header.SignerPublicKey)
	return w.Apply(decoded, signerAddress, state)
}

// Apply validates req before touching state, then applies it.
// A failed call never mutates state.
func (w *Wallet) Apply(req *payload.Request, signerAddress string, state StateAccessor) error {
	amount, counterparty, err := w.validate(req, signerAddress)
	if err != nil {
		logx.Warn("WALLET", fmt.Sprintf("Rejected request from %s: %v", signerAddress, werrors.ReasonOf(err)))
		return err
	}

	switch req.Action {
	case payload.ActionDeposit:
		return w.deposit(state, signerAddress, amount)
	case payload.ActionWithdraw:
		return w.withdraw(state, signerAddress, amount)
	case payload.ActionTransfer:
		return w.transfer(state, signerAddress, counterparty, amount)
	case payload.ActionBalance:
		balance, err := w.Balance(signerAddress, state)
		if err != nil {
			return err
		}
		logx.Debug("WALLET", fmt.Sprintf("Balance of %s is %s", signerAddress, balance.Dec()))
		return nil
	}
	// validate rejects unknown actions
	return werrors.NewError(werrors.ErrCodeMalformedRequest, werrors.ErrMsgUnknownAction)
}

// validate checks action, then amount, then the transfer counterparty
func (w *Wallet) validate(req *payload.Request, signerAddress string) (*uint256.Int, string, error) {
	if req == nil {
		return nil, "", werrors.NewError(werrors.ErrCodeMalformedRequest, werrors.ErrMsgMalformedPayload)
	}
	if !req.Action.Known() {
		return nil, "", werrors.NewError(werrors.ErrCodeMalformedRequest,
			fmt.Sprintf("%s: %q", werrors.ErrMsgUnknownAction, req.Action))
	}
	amount, err := req.ParseAmount()
	if err != nil {
		return nil, "", err
	}
	if err := address.Validate(signerAddress); err != nil {
		return nil, "", werrors.Wrap(werrors.ErrCodeMalformedRequest, "signer address is invalid", err)
	}

	if req.Action != payload.ActionTransfer {
		if req.HasCounterparty() {
			return nil, "", werrors.NewError(werrors.ErrCodeMalformedRequest,
				fmt.Sprintf("counterparty is only allowed for %s", payload.ActionTransfer))
		}
		return amount, "", nil
	}

	if !req.HasCounterparty() {
		return nil, "", werrors.NewError(werrors.ErrCodeMalformedRequest, werrors.ErrMsgInvalidCounterpart)
	}
	if _, err := signing.ParsePublicKey(req.Counterparty); err != nil {
		return nil, "", werrors.Wrap(werrors.ErrCodeMalformedRequest, werrors.ErrMsgInvalidCounterpart, err)
	}
	counterparty := w.family.Address(req.Counterparty)
	if counterparty == signerAddress {
		return nil, "", werrors.NewError(werrors.ErrCodeMalformedRequest, "cannot transfer to the signer's own account")
	}
	return amount, counterparty, nil
}

// Balance is the read-only query; an address with no record has balance 0
func (w *Wallet) Balance(addr string, state StateAccessor) (*uint256.Int, error) {
	entries, err := state.GetState([]string{addr})
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeInternal, "could not read state", err)
	}
	balance, err := utils.DecodeBalance(entries[addr])
	if err != nil {
		return nil, werrors.Wrap(werrors.ErrCodeInternal, "corrupt balance at "+addr, err)
	}
	return balance, nil
}

func (w *Wallet) deposit(state StateAccessor, addr string, amount *uint256.Int) error {
	balance, err := w.Balance(addr, state)
	if err != nil {
		return err
	}
	if balance.IsZero() {
		logx.Info("WALLET", "First deposit, creating account ", addr)
	}
	newBalance, overflow := new(uint256.Int).AddOverflow(balance, amount)
	if overflow {
		return werrors.NewError(werrors.ErrCodeMalformedRequest, "deposit would overflow the balance")
	}
	logx.Info("WALLET", fmt.Sprintf("Depositing %s to %s", amount.Dec(), addr))
	return w.commit(state, map[string][]byte{addr: utils.EncodeBalance(newBalance)})
}

func (w *Wallet) withdraw(state StateAccessor, addr string, amount *uint256.Int) error {
	balance, err := w.Balance(addr, state)
	if err != nil {
		return err
	}
	if amount.Gt(balance) {
		return werrors.NewError(werrors.ErrCodeInsufficientFunds,
			fmt.Sprintf("%s: withdraw amount %s exceeds balance %s", werrors.ErrMsgInsufficientFunds, amount.Dec(), balance.Dec()))
	}
	newBalance := new(uint256.Int).Sub(balance, amount)
	logx.Info("WALLET", fmt.Sprintf("Withdrawing %s from %s", amount.Dec(), addr))
	return w.commit(state, map[string][]byte{addr: utils.EncodeBalance(newBalance)})
}

// lenientBalance treats an unparseable stored value as 0, which is what a transfer expects
func lenientBalance(entries map[string][]byte, addr string) *uint256.Int {
	balance, err := utils.DecodeBalance(entries[addr])
	if err != nil {
		logx.Warn("WALLET", fmt.Sprintf("Unparseable balance at %s treated as 0: %v", addr, err))
		return uint256.NewInt(0)
	}
	return balance
}

func (w *Wallet) transfer(state StateAccessor, from, to string, amount *uint256.Int) error {
	if amount.IsZero() {
		return werrors.NewError(werrors.ErrCodeMalformedRequest, werrors.ErrMsgInvalidAmount)
	}
	entries, err := state.GetState([]string{from, to})
	if err != nil {
		return werrors.Wrap(werrors.ErrCodeInternal, "could not read state", err)
	}
	senderBalance := lenientBalance(entries, from)
	receiverBalance := lenientBalance(entries, to)

	if senderBalance.Lt(amount) {
		return werrors.NewError(werrors.ErrCodeInsufficientFunds,
			fmt.Sprintf("%s: transfer amount %s exceeds balance %s", werrors.ErrMsgInsufficientFunds, amount.Dec(), senderBalance.Dec()))
	}
	newReceiver, overflow := new(uint256.Int).AddOverflow(receiverBalance, amount)
	if overflow {
		return werrors.NewError(werrors.ErrCodeMalformedRequest, "transfer would overflow the receiver balance")
	}
	newSender := new(uint256.Int).Sub(senderBalance, amount)

	logx.Info("WALLET", fmt.Sprintf("Transferring %s from %s to %s", amount.Dec(), from, to))
	// both sides in one SetState so the ledger commits them together
	return w.commit(state, map[string][]byte{
		from: utils.EncodeBalance(newSender),
		to:   utils.EncodeBalance(newReceiver),
	})
}

func (w *Wallet) commit(state StateAccessor, entries map[string][]byte) error {
	written, err := state.SetState(entries)
	if err != nil {
		return werrors.Wrap(werrors.ErrCodeInternal, werrors.ErrMsgStateNotPersisted, err)
	}
	if len(written) == 0 {
		return werrors.NewError(werrors.ErrCodeInternal, werrors.ErrMsgStateNotPersisted)
	}
	return nil
}
