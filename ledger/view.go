package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mezonai/simplewallet/address"
	"github.com/mezonai/simplewallet/store"
)

var ErrUnauthorizedAddress = errors.New("address is not declared by the transaction")

// batchView is the state one batch sees: its own uncommitted writes over the store
type batchView struct {
	base    *store.StateStore
	overlay map[string][]byte
}

func newBatchView(base *store.StateStore) *batchView {
	return &batchView{base: base, overlay: make(map[string][]byte)}
}

func (v *batchView) read(addrs []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(addrs))
	missing := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if data, ok := v.overlay[addr]; ok {
			out[addr] = data
			continue
		}
		missing = append(missing, addr)
	}
	if len(missing) == 0 {
		return out, nil
	}
	fromBase, err := v.base.GetState(missing)
	if err != nil {
		return nil, err
	}
	for addr, data := range fromBase {
		out[addr] = data
	}
	return out, nil
}

func (v *batchView) merge(writes map[string][]byte) {
	for addr, data := range writes {
		v.overlay[addr] = data
	}
}

// txContext is the StateAccessor handed to a handler for one transaction.
// Reads must fall under the declared inputs and writes under the declared
// outputs; writes stay local until the transaction succeeds.
type txContext struct {
	view    *batchView
	inputs  []string
	outputs []string
	writes  map[string][]byte
}

func newTxContext(view *batchView, inputs, outputs []string) *txContext {
	return &txContext{
		view:    view,
		inputs:  inputs,
		outputs: outputs,
		writes:  make(map[string][]byte),
	}
}

func declared(addr string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(addr, p) {
			return true
		}
	}
	return false
}

func (c *txContext) GetState(addresses []string) (map[string][]byte, error) {
	pending := make([]string, 0, len(addresses))
	out := make(map[string][]byte, len(addresses))
	for _, addr := range addresses {
		if !declared(addr, c.inputs) {
			return nil, fmt.Errorf("read %s: %w", addr, ErrUnauthorizedAddress)
		}
		if data, ok := c.writes[addr]; ok {
			out[addr] = data
			continue
		}
		pending = append(pending, addr)
	}
	fromView, err := c.view.read(pending)
	if err != nil {
		return nil, err
	}
	for addr, data := range fromView {
		out[addr] = data
	}
	return out, nil
}

func (c *txContext) SetState(entries map[string][]byte) ([]string, error) {
	for addr := range entries {
		if err := address.Validate(addr); err != nil {
			return nil, fmt.Errorf("write %s: %w", addr, err)
		}
		if !declared(addr, c.outputs) {
			return nil, fmt.Errorf("write %s: %w", addr, ErrUnauthorizedAddress)
		}
	}
	written := make([]string, 0, len(entries))
	for addr, data := range entries {
		c.writes[addr] = data
		written = append(written, addr)
	}
	sort.Strings(written)
	return written, nil
}
