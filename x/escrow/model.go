package escrow

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
)

func init() {
	migration.MustRegister(1, &Escrow{}, migration.NoModification)
}

var _ orm.Model = (*Escrow)(nil)

func (m *Escrow) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "Customer", m.Customer.Validate())
	errs = errors.AppendField(errs, "Merchant", m.Merchant.Validate())
	if err := m.Amount.Validate(); err != nil {
		errs = errors.AppendField(errs, "Amount", err)
	} else if !m.Amount.IsPositive() {
		errs = errors.AppendField(errs, "Amount", errors.Wrap(errors.ErrAmount, "must be greater than zero"))
	}
	switch m.Status {
	case Status_Pending, Status_Completed, Status_Refunded:
		// All good.
	default:
		errs = errors.AppendField(errs, "Status", errors.Wrap(errors.ErrState, "invalid status"))
	}
	errs = errors.AppendField(errs, "CreatedAt", m.CreatedAt.Validate())
	if m.CreatedAt == 0 {
		errs = errors.AppendField(errs, "CreatedAt", errors.ErrEmpty)
	}
	if m.Timeout < 0 {
		errs = errors.AppendField(errs, "Timeout", errors.Wrap(errors.ErrInput, "must not be negative"))
	}
	errs = errors.AppendField(errs, "Address", m.Address.Validate())
	return errs
}

// NewBucket returns a bucket for keeping escrows, indexed by the customer and
// the merchant address. An escrow is stored under its session id.
func NewBucket() orm.ModelBucket {
	b := orm.NewModelBucket("esc", &Escrow{},
		orm.WithNativeIndex("customer", escrowCustomer),
		orm.WithNativeIndex("merchant", escrowMerchant),
	)
	return migration.NewModelBucket("escrow", b)
}

func escrowCustomer(o orm.Object) ([][]byte, error) {
	esc, ok := o.Value().(*Escrow)
	if !ok {
		return nil, errors.Wrap(errors.ErrType, "not an Escrow")
	}
	return [][]byte{esc.Customer}, nil
}

func escrowMerchant(o orm.Object) ([][]byte, error) {
	esc, ok := o.Value().(*Escrow)
	if !ok {
		return nil, errors.Wrap(errors.ErrType, "not an Escrow")
	}
	return [][]byte{esc.Merchant}, nil
}

// EscrowAccount returns the address of the account that holds the funds of
// the escrow created under given session id. Each session custodies its funds
// under a separate account.
func EscrowAccount(sessionID string) weave.Address {
	return weave.NewCondition("escrow", "session", []byte(sessionID)).Address()
}
