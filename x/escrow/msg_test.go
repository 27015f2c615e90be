package escrow

import (
	"strings"
	"testing"

	weave "github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/weavetest"
	"github.com/iov-one/weave/weavetest/assert"
)

func TestCreateEscrowMsgValidate(t *testing.T) {
	cases := map[string]struct {
		msg  CreateEscrowMsg
		errs map[string]*errors.Error
	}{
		"all good": {
			msg: CreateEscrowMsg{
				Metadata:  &weave.Metadata{Schema: 1},
				Customer:  weavetest.NewCondition().Address(),
				Merchant:  weavetest.NewCondition().Address(),
				Amount:    coin.NewCoin(10, 0, "IOV"),
				SessionID: "sess-1",
				Timeout:   100,
			},
			errs: map[string]*errors.Error{
				"Metadata":  nil,
				"Customer":  nil,
				"Merchant":  nil,
				"Amount":    nil,
				"SessionID": nil,
				"Timeout":   nil,
			},
		},
		"certain fields are required": {
			msg: CreateEscrowMsg{},
			errs: map[string]*errors.Error{
				"Metadata":  errors.ErrMetadata,
				"Customer":  errors.ErrEmpty,
				"Merchant":  errors.ErrEmpty,
				"SessionID": errors.ErrEmpty,
				"Timeout":   nil,
			},
		},
		"zero timeout allows an immediate refund": {
			msg: CreateEscrowMsg{
				Metadata:  &weave.Metadata{Schema: 1},
				Customer:  weavetest.NewCondition().Address(),
				Merchant:  weavetest.NewCondition().Address(),
				Amount:    coin.NewCoin(10, 0, "IOV"),
				SessionID: "sess-1",
				Timeout:   0,
			},
			errs: map[string]*errors.Error{
				"Timeout": nil,
			},
		},
		"amount must be positive": {
			msg: CreateEscrowMsg{
				Metadata:  &weave.Metadata{Schema: 1},
				Customer:  weavetest.NewCondition().Address(),
				Merchant:  weavetest.NewCondition().Address(),
				Amount:    coin.NewCoin(0, 0, "IOV"),
				SessionID: "sess-1",
				Timeout:   100,
			},
			errs: map[string]*errors.Error{
				"Amount": errors.ErrAmount,
			},
		},
		"amount cannot be negative": {
			msg: CreateEscrowMsg{
				Metadata:  &weave.Metadata{Schema: 1},
				Customer:  weavetest.NewCondition().Address(),
				Merchant:  weavetest.NewCondition().Address(),
				Amount:    coin.NewCoin(-2, 0, "IOV"),
				SessionID: "sess-1",
				Timeout:   100,
			},
			errs: map[string]*errors.Error{
				"Amount": errors.ErrAmount,
			},
		},
		"session id with forbidden characters": {
			msg: CreateEscrowMsg{
				Metadata:  &weave.Metadata{Schema: 1},
				Customer:  weavetest.NewCondition().Address(),
				Merchant:  weavetest.NewCondition().Address(),
				Amount:    coin.NewCoin(10, 0, "IOV"),
				SessionID: "sess 1!",
				Timeout:   100,
			},
			errs: map[string]*errors.Error{
				"SessionID": errors.ErrInput,
			},
		},
		"session id too long": {
			msg: CreateEscrowMsg{
				Metadata:  &weave.Metadata{Schema: 1},
				Customer:  weavetest.NewCondition().Address(),
				Merchant:  weavetest.NewCondition().Address(),
				Amount:    coin.NewCoin(10, 0, "IOV"),
				SessionID: strings.Repeat("x", 65),
				Timeout:   100,
			},
			errs: map[string]*errors.Error{
				"SessionID": errors.ErrInput,
			},
		},
		"timeout cannot be negative": {
			msg: CreateEscrowMsg{
				Metadata:  &weave.Metadata{Schema: 1},
				Customer:  weavetest.NewCondition().Address(),
				Merchant:  weavetest.NewCondition().Address(),
				Amount:    coin.NewCoin(10, 0, "IOV"),
				SessionID: "sess-1",
				Timeout:   -1,
			},
			errs: map[string]*errors.Error{
				"Timeout": errors.ErrInput,
			},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			err := tc.msg.Validate()
			for field, wantErr := range tc.errs {
				assert.FieldError(t, err, field, wantErr)
			}
		})
	}
}

func TestInitializeMsgValidate(t *testing.T) {
	cases := map[string]struct {
		msg  InitializeMsg
		errs map[string]*errors.Error
	}{
		"all good": {
			msg: InitializeMsg{
				Metadata: &weave.Metadata{Schema: 1},
				Admin:    weavetest.NewCondition().Address(),
			},
			errs: map[string]*errors.Error{
				"Metadata": nil,
				"Admin":    nil,
			},
		},
		"certain fields are required": {
			msg: InitializeMsg{},
			errs: map[string]*errors.Error{
				"Metadata": errors.ErrMetadata,
				"Admin":    errors.ErrEmpty,
			},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			err := tc.msg.Validate()
			for field, wantErr := range tc.errs {
				assert.FieldError(t, err, field, wantErr)
			}
		})
	}
}

func TestSessionMsgValidate(t *testing.T) {
	// Release, refund and the admin refund messages share the same fields.
	msgs := map[string]weave.Msg{
		"release":      &ReleaseEscrowMsg{Metadata: &weave.Metadata{Schema: 1}, SessionID: "sess-1"},
		"refund":       &RefundEscrowMsg{Metadata: &weave.Metadata{Schema: 1}, SessionID: "sess-1"},
		"admin refund": &AdminRefundMsg{Metadata: &weave.Metadata{Schema: 1}, SessionID: "sess-1"},
	}
	for testName, msg := range msgs {
		t.Run(testName, func(t *testing.T) {
			if err := msg.Validate(); err != nil {
				t.Fatalf("unexpected validation error: %s", err)
			}
		})
	}

	empty := map[string]weave.Msg{
		"release":      &ReleaseEscrowMsg{},
		"refund":       &RefundEscrowMsg{},
		"admin refund": &AdminRefundMsg{},
	}
	for testName, msg := range empty {
		t.Run(testName+" empty", func(t *testing.T) {
			err := msg.Validate()
			assert.FieldError(t, err, "Metadata", errors.ErrMetadata)
			assert.FieldError(t, err, "SessionID", errors.ErrEmpty)
		})
	}
}
