package transaction

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers follow the Sawtooth transaction.proto / batch.proto messages so the
// serialized headers are byte compatible with a Sawtooth validator.
const (
	thBatcherPublicKey protowire.Number = 1
	thDependencies     protowire.Number = 2
	thFamilyName       protowire.Number = 3
	thFamilyVersion    protowire.Number = 4
	thInputs           protowire.Number = 5
	thNonce            protowire.Number = 6
	thOutputs          protowire.Number = 7
	thPayloadSha512    protowire.Number = 9
	thSignerPublicKey  protowire.Number = 10

	txHeader          protowire.Number = 1
	txHeaderSignature protowire.Number = 2
	txPayload         protowire.Number = 3

	bhSignerPublicKey protowire.Number = 1
	bhTransactionIDs  protowire.Number = 2

	batchHeader          protowire.Number = 1
	batchHeaderSignature protowire.Number = 2
	batchTransactions    protowire.Number = 3
	batchTrace           protowire.Number = 4

	listBatches protowire.Number = 1
)

type TransactionHeader struct {
	BatcherPublicKey string
	Dependencies     []string
	FamilyName       string
	FamilyVersion    string
	Inputs           []string
	Nonce            string
	Outputs          []string
	PayloadSha512    string
	SignerPublicKey  string
}

// Transaction carries the serialized header so the signed bytes are never re-encoded
type Transaction struct {
	Header          []byte
	HeaderSignature string
	Payload         []byte
}

type BatchHeader struct {
	SignerPublicKey string
	TransactionIDs  []string
}

type Batch struct {
	Header          []byte
	HeaderSignature string
	Transactions    []*Transaction
	Trace           bool
}

// BatchList is the unit submitted to the ledger
type BatchList struct {
	Batches []*Batch
}

// ID of a transaction is its header signature
func (t *Transaction) ID() string { return t.HeaderSignature }

// ID of a batch is its header signature
func (b *Batch) ID() string { return b.HeaderSignature }

// IDs returns the batch ids in submission order
func (l *BatchList) IDs() []string {
	ids := make([]string, 0, len(l.Batches))
	for _, b := range l.Batches {
		ids = append(ids, b.ID())
	}
	return ids
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendRepeated(b []byte, num protowire.Number, ss []string) []byte {
	for _, s := range ss {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	return b
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// walkFields calls fn for every length-delimited field and skips anything else
// except the fields listed in varints, which are handed to onVarint.
func walkFields(b []byte, fn func(num protowire.Number, v []byte) error, onVarint func(num protowire.Number, v uint64)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			if err := fn(num, v); err != nil {
				return err
			}
			b = b[m:]
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			if onVarint != nil {
				onVarint(num, v)
			}
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
			b = b[m:]
		}
	}
	return nil
}

func (h *TransactionHeader) Marshal() []byte {
	var b []byte
	b = appendString(b, thBatcherPublicKey, h.BatcherPublicKey)
	b = appendRepeated(b, thDependencies, h.Dependencies)
	b = appendString(b, thFamilyName, h.FamilyName)
	b = appendString(b, thFamilyVersion, h.FamilyVersion)
	b = appendRepeated(b, thInputs, h.Inputs)
	b = appendString(b, thNonce, h.Nonce)
	b = appendRepeated(b, thOutputs, h.Outputs)
	b = appendString(b, thPayloadSha512, h.PayloadSha512)
	b = appendString(b, thSignerPublicKey, h.SignerPublicKey)
	return b
}

func ParseTransactionHeader(b []byte) (*TransactionHeader, error) {
	h := &TransactionHeader{}
	err := walkFields(b, func(num protowire.Number, v []byte) error {
		s := string(v)
		switch num {
		case thBatcherPublicKey:
			h.BatcherPublicKey = s
		case thDependencies:
			h.Dependencies = append(h.Dependencies, s)
		case thFamilyName:
			h.FamilyName = s
		case thFamilyVersion:
			h.FamilyVersion = s
		case thInputs:
			h.Inputs = append(h.Inputs, s)
		case thNonce:
			h.Nonce = s
		case thOutputs:
			h.Outputs = append(h.Outputs, s)
		case thPayloadSha512:
			h.PayloadSha512 = s
		case thSignerPublicKey:
			h.SignerPublicKey = s
		}
		return nil
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("parse transaction header: %w", err)
	}
	return h, nil
}

func (t *Transaction) Marshal() []byte {
	var b []byte
	b = appendBytes(b, txHeader, t.Header)
	b = appendString(b, txHeaderSignature, t.HeaderSignature)
	b = appendBytes(b, txPayload, t.Payload)
	return b
}

func ParseTransaction(b []byte) (*Transaction, error) {
	t := &Transaction{}
	err := walkFields(b, func(num protowire.Number, v []byte) error {
		switch num {
		case txHeader:
			t.Header = append([]byte(nil), v...)
		case txHeaderSignature:
			t.HeaderSignature = string(v)
		case txPayload:
			t.Payload = append([]byte(nil), v...)
		}
		return nil
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("parse transaction: %w", err)
	}
	return t, nil
}

func (h *BatchHeader) Marshal() []byte {
	var b []byte
	b = appendString(b, bhSignerPublicKey, h.SignerPublicKey)
	b = appendRepeated(b, bhTransactionIDs, h.TransactionIDs)
	return b
}

func ParseBatchHeader(b []byte) (*BatchHeader, error) {
	h := &BatchHeader{}
	err := walkFields(b, func(num protowire.Number, v []byte) error {
		switch num {
		case bhSignerPublicKey:
			h.SignerPublicKey = string(v)
		case bhTransactionIDs:
			h.TransactionIDs = append(h.TransactionIDs, string(v))
		}
		return nil
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("parse batch header: %w", err)
	}
	return h, nil
}

func (bt *Batch) Marshal() []byte {
	var b []byte
	b = appendBytes(b, batchHeader, bt.Header)
	b = appendString(b, batchHeaderSignature, bt.HeaderSignature)
	for _, tx := range bt.Transactions {
		b = protowire.AppendTag(b, batchTransactions, protowire.BytesType)
		b = protowire.AppendBytes(b, tx.Marshal())
	}
	if bt.Trace {
		b = protowire.AppendTag(b, batchTrace, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

func ParseBatch(b []byte) (*Batch, error) {
	bt := &Batch{}
	err := walkFields(b, func(num protowire.Number, v []byte) error {
		switch num {
		case batchHeader:
			bt.Header = append([]byte(nil), v...)
		case batchHeaderSignature:
			bt.HeaderSignature = string(v)
		case batchTransactions:
			tx, err := ParseTransaction(v)
			if err != nil {
				return err
			}
			bt.Transactions = append(bt.Transactions, tx)
		}
		return nil
	}, func(num protowire.Number, v uint64) {
		if num == batchTrace {
			bt.Trace = v != 0
		}
	})
	if err != nil {
		return nil, fmt.Errorf("parse batch: %w", err)
	}
	return bt, nil
}

func (l *BatchList) Marshal() []byte {
	var b []byte
	for _, bt := range l.Batches {
		b = protowire.AppendTag(b, listBatches, protowire.BytesType)
		b = protowire.AppendBytes(b, bt.Marshal())
	}
	return b
}

func ParseBatchList(b []byte) (*BatchList, error) {
	l := &BatchList{}
	err := walkFields(b, func(num protowire.Number, v []byte) error {
		if num != listBatches {
			return nil
		}
		bt, err := ParseBatch(v)
		if err != nil {
			return err
		}
		l.Batches = append(l.Batches, bt)
		return nil
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("parse batch list: %w", err)
	}
	return l, nil
}
