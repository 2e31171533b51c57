package mongo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	domainlistings "tinyhouse/internal/domain/listings"
)

func Test_ConflictAs_MapsWriteConflicts(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "command error code",
			err:  mongo.CommandError{Code: writeConflictCode, Name: "WriteConflict"},
			want: domainlistings.ErrConcurrentUpdate,
		},
		{
			name: "transient transaction label",
			err:  fmt.Errorf("update listing: %w", mongo.CommandError{Code: 251, Labels: []string{transientTxnLabel}}),
			want: domainlistings.ErrConcurrentUpdate,
		},
		{
			name: "write exception",
			err:  mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: writeConflictCode}}},
			want: domainlistings.ErrConcurrentUpdate,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, conflictAs(tc.err, domainlistings.ErrConcurrentUpdate), tc.want)
		})
	}

	other := mongo.CommandError{Code: 13, Name: "Unauthorized"}
	assert.Equal(t, error(other), conflictAs(other, domainlistings.ErrConcurrentUpdate))
	plain := errors.New("network down")
	assert.Equal(t, plain, conflictAs(plain, domainlistings.ErrConcurrentUpdate))
	assert.NoError(t, conflictAs(nil, domainlistings.ErrConcurrentUpdate))
}
