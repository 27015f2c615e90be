package app

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/libs/common"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/chainpe/escrowd/x/escrow"
	"github.com/iov-one/weave"
	weaveapp "github.com/iov-one/weave/app"
	"github.com/iov-one/weave/coin"
	"github.com/iov-one/weave/commands/server"
	"github.com/iov-one/weave/crypto"
	"github.com/iov-one/weave/x/cash"
	"github.com/iov-one/weave/x/sigs"
)

func testInitChain(t *testing.T, myApp weaveapp.BaseApp, chainID, addr string) {
	appState := fmt.Sprintf(`{
		"cash": [{
			"address": "%s",
			"coins": [{"whole": 50000, "ticker": "IOV"}]
		}],
		"conf": {
			"cash": {
				"collector_address": "%s",
				"minimal_fee": {"whole": 0}
			},
			"escrow": {
				"admin": "%s"
			},
			"migration": {
				"admin": "%s"
			}
		},
		"initialize_schema": [
			{"pkg": "cash", "ver": 1},
			{"pkg": "sigs", "ver": 1},
			{"pkg": "validators", "ver": 1},
			{"pkg": "utils", "ver": 1},
			{"pkg": "escrow", "ver": 1}
		]
	}`, addr, addr, addr, addr)
	assert.Equal(t, "", myApp.GetChainID())
	myApp.InitChain(types.RequestInitChain{
		AppStateBytes: []byte(appState),
		ChainId:       chainID,
	})
}

// testCommit will commit at height h and return new hash
func testCommit(t *testing.T, myApp weaveapp.BaseApp, h int64, chainID string, when time.Time) []byte {
	header := types.Header{Height: h, ChainID: chainID, Time: when}
	myApp.BeginBlock(types.RequestBeginBlock{Header: header})
	assert.Equal(t, chainID, myApp.GetChainID())
	myApp.EndBlock(types.RequestEndBlock{})
	cres := myApp.Commit()
	hash := cres.Data
	assert.NotEmpty(t, hash)
	return hash
}

func testQuery(t *testing.T, myApp weaveapp.BaseApp, path string, key []byte, obj weave.Persistent) {
	query := types.RequestQuery{
		Path: path,
		Data: key,
	}
	qres := myApp.Query(query)
	require.Equal(t, uint32(0), qres.Code, "%#v", qres)
	require.NotEmpty(t, qres.Value)
	err := weaveapp.UnmarshalOneResult(qres.Value, obj)
	require.NoError(t, err)
}

// testDeliverTx signs the transaction, runs it through check and deliver and
// requires both to pass.
func testDeliverTx(t *testing.T, myApp weaveapp.BaseApp, h int64, when time.Time,
	tx *Tx, signer *crypto.PrivateKey, seq int64) types.ResponseDeliverTx {

	sig, err := sigs.SignTx(signer, tx, myApp.GetChainID(), seq)
	require.NoError(t, err)
	tx.Signatures = []*sigs.StdSignature{sig}
	txBytes, err := tx.Marshal()
	require.NoError(t, err)
	require.NotEmpty(t, txBytes)

	header := types.Header{Height: h, ChainID: myApp.GetChainID(), Time: when}
	myApp.BeginBlock(types.RequestBeginBlock{Header: header})
	chres := myApp.CheckTx(txBytes)
	require.Equal(t, uint32(0), chres.Code, chres.Log)
	dres := myApp.DeliverTx(txBytes)
	require.Equal(t, uint32(0), dres.Code, dres.Log)
	return dres
}

func TestApp(t *testing.T) {
	// no minimum fee, in-memory data-store
	chainID := "test-net-22"
	abciApp, err := GenerateApp(&server.Options{
		Home:   "",
		Logger: log.NewNopLogger(),
		Debug:  false,
	})
	require.NoError(t, err)
	myApp := abciApp.(weaveapp.BaseApp)

	// Customer account is declared in the genesis with funds. The same
	// account administrates the escrows.
	customer := crypto.GenPrivKeyEd25519()
	customerAddr := customer.PublicKey().Address()
	merchant := crypto.GenPrivKeyEd25519()
	merchantAddr := merchant.PublicKey().Address()

	genesisTime := time.Now().UTC()

	testInitChain(t, myApp, chainID, customerAddr.String())
	hash1 := testCommit(t, myApp, 1, chainID, genesisTime)

	var acct cash.Set
	key := cash.NewBucket().DBKey(customerAddr)
	testQuery(t, myApp, "/", key, &acct)
	require.Equal(t, 1, len(acct.Coins))
	assert.Equal(t, int64(50000), acct.Coins[0].Whole)

	// Customer locks funds for the merchant.
	amount := coin.NewCoin(1000, 0, "IOV")
	createTx := &Tx{
		Sum: &Tx_EscrowCreateMsg{&escrow.CreateEscrowMsg{
			Metadata:  &weave.Metadata{Schema: 1},
			Customer:  customerAddr,
			Merchant:  merchantAddr,
			Amount:    amount,
			SessionID: "sess-1",
			Timeout:   100,
		}},
	}
	dres := testDeliverTx(t, myApp, 2, genesisTime.Add(2*time.Second), createTx, customer, 0)
	hash2 := testCommit(t, myApp, 2, chainID, genesisTime.Add(2*time.Second))
	assert.NotEqual(t, hash1, hash2)
	assertTag(t, dres.Tags, "action", "escrow_created")
	assertTag(t, dres.Tags, "session-id", "sess-1")

	var esc escrow.Escrow
	testQuery(t, myApp, "/escrows", []byte("sess-1"), &esc)
	assert.Equal(t, escrow.Status_Pending, esc.Status)
	assert.True(t, esc.Amount.Equals(amount))

	// Funds are locked in the escrow account, away from the customer.
	// Proto unmarshal appends to repeated fields, so reset before reuse.
	acct = cash.Set{}
	testQuery(t, myApp, "/", key, &acct)
	require.Equal(t, 1, len(acct.Coins))
	assert.Equal(t, int64(49000), acct.Coins[0].Whole)

	// Merchant releases the payment.
	releaseTx := &Tx{
		Sum: &Tx_EscrowReleaseMsg{&escrow.ReleaseEscrowMsg{
			Metadata:  &weave.Metadata{Schema: 1},
			SessionID: "sess-1",
		}},
	}
	dres = testDeliverTx(t, myApp, 3, genesisTime.Add(3*time.Second), releaseTx, merchant, 0)
	testCommit(t, myApp, 3, chainID, genesisTime.Add(3*time.Second))
	assertTag(t, dres.Tags, "action", "payment_released")

	esc = escrow.Escrow{}
	testQuery(t, myApp, "/escrows", []byte("sess-1"), &esc)
	assert.Equal(t, escrow.Status_Completed, esc.Status)

	var merchantAcct cash.Set
	testQuery(t, myApp, "/wallets", merchantAddr, &merchantAcct)
	require.Equal(t, 1, len(merchantAcct.Coins))
	assert.Equal(t, int64(1000), merchantAcct.Coins[0].Whole)
}

func TestAppRefund(t *testing.T) {
	chainID := "test-net-23"
	abciApp, err := GenerateApp(&server.Options{
		Home:   "",
		Logger: log.NewNopLogger(),
		Debug:  false,
	})
	require.NoError(t, err)
	myApp := abciApp.(weaveapp.BaseApp)

	customer := crypto.GenPrivKeyEd25519()
	customerAddr := customer.PublicKey().Address()
	merchant := crypto.GenPrivKeyEd25519()
	merchantAddr := merchant.PublicKey().Address()

	genesisTime := time.Now().UTC()

	testInitChain(t, myApp, chainID, customerAddr.String())
	testCommit(t, myApp, 1, chainID, genesisTime)

	createTx := &Tx{
		Sum: &Tx_EscrowCreateMsg{&escrow.CreateEscrowMsg{
			Metadata:  &weave.Metadata{Schema: 1},
			Customer:  customerAddr,
			Merchant:  merchantAddr,
			Amount:    coin.NewCoin(1000, 0, "IOV"),
			SessionID: "sess-1",
			Timeout:   100,
		}},
	}
	testDeliverTx(t, myApp, 2, genesisTime.Add(2*time.Second), createTx, customer, 0)
	testCommit(t, myApp, 2, chainID, genesisTime.Add(2*time.Second))

	// Once the timeout elapsed the customer can claim the funds back.
	refundTx := &Tx{
		Sum: &Tx_EscrowRefundMsg{&escrow.RefundEscrowMsg{
			Metadata:  &weave.Metadata{Schema: 1},
			SessionID: "sess-1",
		}},
	}
	dres := testDeliverTx(t, myApp, 3, genesisTime.Add(200*time.Second), refundTx, customer, 1)
	testCommit(t, myApp, 3, chainID, genesisTime.Add(200*time.Second))
	assertTag(t, dres.Tags, "action", "payment_refunded")

	var acct cash.Set
	testQuery(t, myApp, "/wallets", customerAddr, &acct)
	require.Equal(t, 1, len(acct.Coins))
	assert.Equal(t, int64(50000), acct.Coins[0].Whole)
}

func TestAppAdminRefund(t *testing.T) {
	chainID := "test-net-24"
	abciApp, err := GenerateApp(&server.Options{
		Home:   "",
		Logger: log.NewNopLogger(),
		Debug:  false,
	})
	require.NoError(t, err)
	myApp := abciApp.(weaveapp.BaseApp)

	// The customer account from the genesis is also the escrow admin.
	customer := crypto.GenPrivKeyEd25519()
	customerAddr := customer.PublicKey().Address()
	merchant := crypto.GenPrivKeyEd25519()
	merchantAddr := merchant.PublicKey().Address()

	genesisTime := time.Now().UTC()

	testInitChain(t, myApp, chainID, customerAddr.String())
	testCommit(t, myApp, 1, chainID, genesisTime)

	createTx := &Tx{
		Sum: &Tx_EscrowCreateMsg{&escrow.CreateEscrowMsg{
			Metadata:  &weave.Metadata{Schema: 1},
			Customer:  customerAddr,
			Merchant:  merchantAddr,
			Amount:    coin.NewCoin(1000, 0, "IOV"),
			SessionID: "sess-1",
			Timeout:   100,
		}},
	}
	testDeliverTx(t, myApp, 2, genesisTime.Add(2*time.Second), createTx, customer, 0)
	testCommit(t, myApp, 2, chainID, genesisTime.Add(2*time.Second))

	// The merchant is not the admin and cannot force a refund.
	adminRefundTx := &Tx{
		Sum: &Tx_EscrowAdminRefundMsg{&escrow.AdminRefundMsg{
			Metadata:  &weave.Metadata{Schema: 1},
			SessionID: "sess-1",
		}},
	}
	sig, err := sigs.SignTx(merchant, adminRefundTx, chainID, 0)
	require.NoError(t, err)
	adminRefundTx.Signatures = []*sigs.StdSignature{sig}
	txBytes, err := adminRefundTx.Marshal()
	require.NoError(t, err)
	header := types.Header{Height: 3, ChainID: chainID, Time: genesisTime.Add(3 * time.Second)}
	myApp.BeginBlock(types.RequestBeginBlock{Header: header})
	dres := myApp.DeliverTx(txBytes)
	require.NotEqual(t, uint32(0), dres.Code)
	myApp.EndBlock(types.RequestEndBlock{})
	myApp.Commit()

	// The admin does not have to wait for the timeout.
	adminRefundTx.Signatures = nil
	dres = testDeliverTx(t, myApp, 4, genesisTime.Add(10*time.Second), adminRefundTx, customer, 1)
	testCommit(t, myApp, 4, chainID, genesisTime.Add(10*time.Second))
	assertTag(t, dres.Tags, "action", "admin_refund")
	assertTag(t, dres.Tags, "session-id", "sess-1")

	var esc escrow.Escrow
	testQuery(t, myApp, "/escrows", []byte("sess-1"), &esc)
	assert.Equal(t, escrow.Status_Refunded, esc.Status)

	var acct cash.Set
	testQuery(t, myApp, "/wallets", customerAddr, &acct)
	require.Equal(t, 1, len(acct.Coins))
	assert.Equal(t, int64(50000), acct.Coins[0].Whole)
}

func assertTag(t *testing.T, tags []common.KVPair, key, value string) {
	t.Helper()
	for _, tag := range tags {
		if string(tag.Key) == key {
			assert.Equal(t, value, string(tag.Value))
			return
		}
	}
	t.Errorf("tag %q not found in %v", key, tags)
}
