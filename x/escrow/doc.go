/*
Package escrow implements a payment escrow. A customer locks funds for a
merchant under a unique session id. The merchant can release the funds at any
time. The customer can claim them back once the escrow timeout has elapsed.
An administrator, declared during the one time initialization, can force a
refund at any time.
*/
package escrow
