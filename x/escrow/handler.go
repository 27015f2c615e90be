package escrow

import (
	"github.com/iov-one/weave"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/errors"
	"github.com/iov-one/weave/gconf"
	"github.com/iov-one/weave/migration"
	"github.com/iov-one/weave/orm"
	"github.com/iov-one/weave/x"
	"github.com/iov-one/weave/x/cash"
	"github.com/tendermint/tendermint/libs/common"
)

const (
	tagAction    = "action"
	tagSessionID = "session-id"

	actionCreated     = "escrow_created"
	actionReleased    = "payment_released"
	actionRefunded    = "payment_refunded"
	actionAdminRefund = "admin_refund"
)

func RegisterQuery(qr weave.QueryRouter) {
	NewBucket().Register("escrows", qr)
}

func RegisterRoutes(r weave.Registry, auth x.Authenticator, cashctrl cash.Controller) {
	r = migration.SchemaMigratingRegistry("escrow", r)

	escrows := NewBucket()

	r.Handle(&InitializeMsg{}, &initializeHandler{})
	r.Handle(&CreateEscrowMsg{}, &createEscrowHandler{
		auth:     auth,
		escrows:  escrows,
		cashctrl: cashctrl,
	})
	r.Handle(&ReleaseEscrowMsg{}, &releaseEscrowHandler{
		auth:     auth,
		escrows:  escrows,
		cashctrl: cashctrl,
	})
	r.Handle(&RefundEscrowMsg{}, &refundEscrowHandler{
		auth:     auth,
		escrows:  escrows,
		cashctrl: cashctrl,
	})
	r.Handle(&AdminRefundMsg{}, &adminRefundHandler{
		auth:     auth,
		escrows:  escrows,
		cashctrl: cashctrl,
	})
}

// initializeHandler stores the configuration. It can succeed at most once,
// any further attempt fails regardless of the signer.
type initializeHandler struct {
}

func (h *initializeHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *initializeHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	conf := Configuration{
		Metadata: &weave.Metadata{Schema: 1},
		Admin:    msg.Admin,
	}
	if err := gconf.Save(db, "escrow", &conf); err != nil {
		return nil, errors.Wrap(err, "save configuration")
	}
	return &weave.DeliverResult{}, nil
}

func (h *initializeHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*InitializeMsg, error) {
	var msg InitializeMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	var conf Configuration
	switch err := gconf.Load(db, "escrow", &conf); {
	case err == nil:
		return nil, errors.Wrap(ErrAlreadyInitialized, "configuration exists")
	case errors.ErrNotFound.Is(err):
		// All good, this is the first initialization.
	default:
		return nil, errors.Wrap(err, "load configuration")
	}
	return &msg, nil
}

type createEscrowHandler struct {
	auth     x.Authenticator
	escrows  orm.ModelBucket
	cashctrl cash.Controller
}

func (h *createEscrowHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *createEscrowHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	now, err := weave.BlockTime(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "block time")
	}
	// Lock funds within the escrow account by moving them away from the
	// customer account.
	if err := cash.MoveCoins(db, h.cashctrl, msg.Customer, EscrowAccount(msg.SessionID), []*coin.Coin{&msg.Amount}); err != nil {
		return nil, errors.Wrap(err, "escrow funds")
	}
	esc := Escrow{
		Metadata:  &weave.Metadata{Schema: 1},
		Customer:  msg.Customer,
		Merchant:  msg.Merchant,
		Amount:    msg.Amount,
		Status:    Status_Pending,
		CreatedAt: weave.AsUnixTime(now),
		Timeout:   msg.Timeout,
		Address:   EscrowAccount(msg.SessionID),
	}
	key, err := h.escrows.Put(db, []byte(msg.SessionID), &esc)
	if err != nil {
		return nil, errors.Wrap(err, "store escrow")
	}
	res := weave.DeliverResult{
		Data: key,
		Tags: sessionTags(actionCreated, msg.SessionID),
	}
	return &res, nil
}

func (h *createEscrowHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*CreateEscrowMsg, error) {
	var msg CreateEscrowMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, errors.Wrap(err, "load msg")
	}
	if !h.auth.HasAddress(ctx, msg.Customer) {
		return nil, errors.Wrap(errors.ErrUnauthorized, "customer signature missing")
	}
	// A session id is never reused, not even after the escrow under it was
	// settled.
	switch err := h.escrows.Has(db, []byte(msg.SessionID)); {
	case err == nil:
		return nil, errors.Wrapf(errors.ErrDuplicate, "session %q", msg.SessionID)
	case errors.ErrNotFound.Is(err):
		// All good, session id is available.
	default:
		return nil, errors.Wrap(err, "session lookup")
	}
	return &msg, nil
}

type releaseEscrowHandler struct {
	auth     x.Authenticator
	escrows  orm.ModelBucket
	cashctrl cash.Controller
}

func (h *releaseEscrowHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *releaseEscrowHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, esc, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	if err := cash.MoveCoins(db, h.cashctrl, esc.Address, esc.Merchant, []*coin.Coin{&esc.Amount}); err != nil {
		return nil, errors.Wrap(err, "release funds")
	}
	esc.Status = Status_Completed
	if _, err := h.escrows.Put(db, []byte(msg.SessionID), esc); err != nil {
		return nil, errors.Wrap(err, "store escrow")
	}
	res := weave.DeliverResult{
		Tags: sessionTags(actionReleased, msg.SessionID),
	}
	return &res, nil
}

func (h *releaseEscrowHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*ReleaseEscrowMsg, *Escrow, error) {
	var msg ReleaseEscrowMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	var esc Escrow
	if err := h.escrows.One(db, []byte(msg.SessionID), &esc); err != nil {
		return nil, nil, errors.Wrapf(err, "session %q", msg.SessionID)
	}
	if !h.auth.HasAddress(ctx, esc.Merchant) {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "merchant signature missing")
	}
	if esc.Status != Status_Pending {
		return nil, nil, errors.Wrapf(ErrAlreadyCompleted, "status %s", esc.Status)
	}
	return &msg, &esc, nil
}

type refundEscrowHandler struct {
	auth     x.Authenticator
	escrows  orm.ModelBucket
	cashctrl cash.Controller
}

func (h *refundEscrowHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *refundEscrowHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, esc, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	if err := cash.MoveCoins(db, h.cashctrl, esc.Address, esc.Customer, []*coin.Coin{&esc.Amount}); err != nil {
		return nil, errors.Wrap(err, "refund funds")
	}
	esc.Status = Status_Refunded
	if _, err := h.escrows.Put(db, []byte(msg.SessionID), esc); err != nil {
		return nil, errors.Wrap(err, "store escrow")
	}
	res := weave.DeliverResult{
		Tags: sessionTags(actionRefunded, msg.SessionID),
	}
	return &res, nil
}

func (h *refundEscrowHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*RefundEscrowMsg, *Escrow, error) {
	var msg RefundEscrowMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	var esc Escrow
	if err := h.escrows.One(db, []byte(msg.SessionID), &esc); err != nil {
		return nil, nil, errors.Wrapf(err, "session %q", msg.SessionID)
	}
	if !h.auth.HasAddress(ctx, esc.Customer) {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "customer signature missing")
	}
	if esc.Status != Status_Pending {
		return nil, nil, errors.Wrapf(ErrInvalidStatus, "status %s", esc.Status)
	}
	now, err := weave.BlockTime(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "block time")
	}
	if now.Before(esc.CreatedAt.Add(esc.Timeout.Duration()).Time()) {
		return nil, nil, errors.Wrapf(ErrTimeoutNotReached, "refundable at %s", esc.CreatedAt.Add(esc.Timeout.Duration()))
	}
	return &msg, &esc, nil
}

type adminRefundHandler struct {
	auth     x.Authenticator
	escrows  orm.ModelBucket
	cashctrl cash.Controller
}

func (h *adminRefundHandler) Check(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.CheckResult, error) {
	if _, _, err := h.validate(ctx, db, tx); err != nil {
		return nil, err
	}
	return &weave.CheckResult{GasAllocated: 0}, nil
}

func (h *adminRefundHandler) Deliver(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*weave.DeliverResult, error) {
	msg, esc, err := h.validate(ctx, db, tx)
	if err != nil {
		return nil, err
	}
	if err := cash.MoveCoins(db, h.cashctrl, esc.Address, esc.Customer, []*coin.Coin{&esc.Amount}); err != nil {
		return nil, errors.Wrap(err, "refund funds")
	}
	esc.Status = Status_Refunded
	if _, err := h.escrows.Put(db, []byte(msg.SessionID), esc); err != nil {
		return nil, errors.Wrap(err, "store escrow")
	}
	res := weave.DeliverResult{
		Tags: sessionTags(actionAdminRefund, msg.SessionID),
	}
	return &res, nil
}

func (h *adminRefundHandler) validate(ctx weave.Context, db weave.KVStore, tx weave.Tx) (*AdminRefundMsg, *Escrow, error) {
	var msg AdminRefundMsg
	if err := weave.LoadMsg(tx, &msg); err != nil {
		return nil, nil, errors.Wrap(err, "load msg")
	}
	conf, err := loadConf(db)
	if err != nil {
		if errors.ErrNotFound.Is(err) {
			return nil, nil, errors.Wrap(errors.ErrUnauthorized, "not initialized")
		}
		return nil, nil, errors.Wrap(err, "load conf")
	}
	if !h.auth.HasAddress(ctx, conf.Admin) {
		return nil, nil, errors.Wrap(errors.ErrUnauthorized, "admin signature missing")
	}
	var esc Escrow
	if err := h.escrows.One(db, []byte(msg.SessionID), &esc); err != nil {
		return nil, nil, errors.Wrapf(err, "session %q", msg.SessionID)
	}
	// Timeout does not apply to the admin, only the status does.
	if esc.Status != Status_Pending {
		return nil, nil, errors.Wrapf(ErrInvalidStatus, "status %s", esc.Status)
	}
	return &msg, &esc, nil
}

func sessionTags(action, sessionID string) []common.KVPair {
	return []common.KVPair{
		{Key: []byte(tagAction), Value: []byte(action)},
		{Key: []byte(tagSessionID), Value: []byte(sessionID)},
	}
}
