package escrow

import (
	"regexp"

	"github.com/iov-one/weave"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/migration"
)

func init() {
	migration.MustRegister(1, &InitializeMsg{}, migration.NoModification)
	migration.MustRegister(1, &CreateEscrowMsg{}, migration.NoModification)
	migration.MustRegister(1, &ReleaseEscrowMsg{}, migration.NoModification)
	migration.MustRegister(1, &RefundEscrowMsg{}, migration.NoModification)
	migration.MustRegister(1, &AdminRefundMsg{}, migration.NoModification)
}

// validSessionID is a printable identifier that is safe to use as a store
// key. It is provided by the payment gateway when a session is opened.
var validSessionID = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]{4,64}$`)

func validateSessionID(sessionID string) error {
	if sessionID == "" {
		return errors.ErrEmpty
	}
	if !validSessionID.MatchString(sessionID) {
		return errors.Wrap(errors.ErrInput, "invalid session id")
	}
	return nil
}

var _ weave.Msg = (*InitializeMsg)(nil)

func (InitializeMsg) Path() string {
	return "escrow/initialize"
}

func (m *InitializeMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "Admin", m.Admin.Validate())
	return errs
}

var _ weave.Msg = (*CreateEscrowMsg)(nil)

func (CreateEscrowMsg) Path() string {
	return "escrow/create"
}

func (m *CreateEscrowMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "Customer", m.Customer.Validate())
	errs = errors.AppendField(errs, "Merchant", m.Merchant.Validate())
	if err := m.Amount.Validate(); err != nil {
		errs = errors.AppendField(errs, "Amount", err)
	} else if !m.Amount.IsPositive() {
		errs = errors.AppendField(errs, "Amount", errors.Wrap(errors.ErrAmount, "must be greater than zero"))
	}
	errs = errors.AppendField(errs, "SessionID", validateSessionID(m.SessionID))
	// A zero timeout creates an escrow that the customer may refund at
	// any time.
	if m.Timeout < 0 {
		errs = errors.AppendField(errs, "Timeout", errors.Wrap(errors.ErrInput, "must not be negative"))
	}
	return errs
}

var _ weave.Msg = (*ReleaseEscrowMsg)(nil)

func (ReleaseEscrowMsg) Path() string {
	return "escrow/release"
}

func (m *ReleaseEscrowMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "SessionID", validateSessionID(m.SessionID))
	return errs
}

var _ weave.Msg = (*RefundEscrowMsg)(nil)

func (RefundEscrowMsg) Path() string {
	return "escrow/refund"
}

func (m *RefundEscrowMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "SessionID", validateSessionID(m.SessionID))
	return errs
}

var _ weave.Msg = (*AdminRefundMsg)(nil)

func (AdminRefundMsg) Path() string {
	return "escrow/admin_refund"
}

func (m *AdminRefundMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Metadata", m.Metadata.Validate())
	errs = errors.AppendField(errs, "SessionID", validateSessionID(m.SessionID))
	return errs
}
