package mongo

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	writeConflictCode = 112
	transientTxnLabel = "TransientTransactionError"
)

// isWriteConflict reports whether a transaction lost a write race on a
// document. The transaction is aborted and must be retried from the start.
func isWriteConflict(err error) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasErrorCode(writeConflictCode) || se.HasErrorLabel(transientTxnLabel)
}

// conflictAs maps a write conflict to the repository's concurrent update error
// and leaves every other error untouched.
func conflictAs(err, concurrent error) error {
	if isWriteConflict(err) {
		return concurrent
	}
	return err
}
