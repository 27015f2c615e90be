package escrow

import (
	"testing"

	weave "github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/weavetest/assert"
)

func TestEscrowValidate(t *testing.T) {
	cases := map[string]struct {
		model Escrow
		errs  map[string]*errors.Error
	}{
		"all good": {
			model: Escrow{
				Metadata:  &weave.Metadata{Schema: 1},
				Customer:  weavetest.NewCondition().Address(),
				Merchant:  weavetest.NewCondition().Address(),
				Amount:    coin.NewCoin(10, 0, "IOV"),
				Status:    Status_Pending,
				CreatedAt: 1572247483,
				Timeout:   100,
				Address:   EscrowAccount("sess-1"),
			},
			errs: map[string]*errors.Error{
				"Metadata":  nil,
				"Customer":  nil,
				"Merchant":  nil,
				"Amount":    nil,
				"Status":    nil,
				"CreatedAt": nil,
				"Timeout":   nil,
				"Address":   nil,
			},
		},
		"certain fields are required": {
			model: Escrow{},
			errs: map[string]*errors.Error{
				"Metadata":  errors.ErrMetadata,
				"Customer":  errors.ErrEmpty,
				"Merchant":  errors.ErrEmpty,
				"Status":    errors.ErrState,
				"CreatedAt": errors.ErrEmpty,
				"Timeout":   nil,
				"Address":   errors.ErrEmpty,
			},
		},
		"timeout cannot be negative": {
			model: Escrow{
				Metadata:  &weave.Metadata{Schema: 1},
				Customer:  weavetest.NewCondition().Address(),
				Merchant:  weavetest.NewCondition().Address(),
				Amount:    coin.NewCoin(10, 0, "IOV"),
				Status:    Status_Pending,
				CreatedAt: 1572247483,
				Timeout:   -1,
				Address:   EscrowAccount("sess-1"),
			},
			errs: map[string]*errors.Error{
				"Timeout": errors.ErrInput,
			},
		},
		"amount must be positive": {
			model: Escrow{
				Metadata:  &weave.Metadata{Schema: 1},
				Customer:  weavetest.NewCondition().Address(),
				Merchant:  weavetest.NewCondition().Address(),
				Amount:    coin.NewCoin(0, 0, "IOV"),
				Status:    Status_Pending,
				CreatedAt: 1572247483,
				Timeout:   100,
				Address:   EscrowAccount("sess-1"),
			},
			errs: map[string]*errors.Error{
				"Amount": errors.ErrAmount,
			},
		},
		"invalid status": {
			model: Escrow{
				Metadata:  &weave.Metadata{Schema: 1},
				Customer:  weavetest.NewCondition().Address(),
				Merchant:  weavetest.NewCondition().Address(),
				Amount:    coin.NewCoin(10, 0, "IOV"),
				Status:    Status(42),
				CreatedAt: 1572247483,
				Timeout:   100,
				Address:   EscrowAccount("sess-1"),
			},
			errs: map[string]*errors.Error{
				"Status": errors.ErrState,
			},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			err := tc.model.Validate()
			for field, wantErr := range tc.errs {
				assert.FieldError(t, err, field, wantErr)
			}
		})
	}
}

func TestEscrowAccount(t *testing.T) {
	// Derivation is deterministic, every session owns a unique account.
	a := EscrowAccount("sess-1")
	if err := a.Validate(); err != nil {
		t.Fatalf("invalid address: %s", err)
	}
	if !a.Equals(EscrowAccount("sess-1")) {
		t.Fatal("address derivation is not deterministic")
	}
	if a.Equals(EscrowAccount("sess-2")) {
		t.Fatal("different sessions must use different accounts")
	}
}
