package transaction

import (
	"fmt"

	"github.com/mezonai/simplewallet/signing"
)

// VerifyTransaction checks the header signature and the payload digest, and returns the parsed header
func VerifyTransaction(tx *Transaction) (*TransactionHeader, error) {
	header, err := ParseTransactionHeader(tx.Header)
	if err != nil {
		return nil, err
	}
	if header.SignerPublicKey == "" {
		return nil, fmt.Errorf("transaction %s has no signer public key", tx.ID())
	}
	if !signing.Verify(header.SignerPublicKey, tx.HeaderSignature, tx.Header) {
		return nil, fmt.Errorf("transaction %s has an invalid header signature", tx.ID())
	}
	if sha512Hex(tx.Payload) != header.PayloadSha512 {
		return nil, fmt.Errorf("transaction %s payload does not match payload_sha512", tx.ID())
	}
	return header, nil
}

// VerifyBatch checks the batch signature, that transaction_ids lists exactly the
// contained transactions, and that every transaction names the batch signer as batcher.
func VerifyBatch(b *Batch) (*BatchHeader, []*TransactionHeader, error) {
	header, err := ParseBatchHeader(b.Header)
	if err != nil {
		return nil, nil, err
	}
	if !signing.Verify(header.SignerPublicKey, b.HeaderSignature, b.Header) {
		return nil, nil, fmt.Errorf("batch %s has an invalid header signature", b.ID())
	}
	if len(b.Transactions) == 0 {
		return nil, nil, fmt.Errorf("batch %s has no transactions", b.ID())
	}
	if len(header.TransactionIDs) != len(b.Transactions) {
		return nil, nil, fmt.Errorf("batch %s lists %d transaction ids but carries %d transactions",
			b.ID(), len(header.TransactionIDs), len(b.Transactions))
	}

	txHeaders := make([]*TransactionHeader, 0, len(b.Transactions))
	for i, tx := range b.Transactions {
		if header.TransactionIDs[i] != tx.ID() {
			return nil, nil, fmt.Errorf("batch %s transaction %d id mismatch", b.ID(), i)
		}
		txHeader, err := VerifyTransaction(tx)
		if err != nil {
			return nil, nil, err
		}
		if txHeader.BatcherPublicKey != header.SignerPublicKey {
			return nil, nil, fmt.Errorf("transaction %s batcher key does not match batch signer", tx.ID())
		}
		txHeaders = append(txHeaders, txHeader)
	}
	return header, txHeaders, nil
}
