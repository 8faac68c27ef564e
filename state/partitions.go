// Package state implements Seloria's account/certificate/claim/namespace/
// kv/token/pool ledger on top of avalanchego's database primitives,
// generalizing the teacher's singleton+block state split (timestampvm's
// state.go) into one prefixdb partition per entity type.
package state

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
)

// Key prefixes for each entity-type partition. Every partition is carved
// out of the same base database via prefixdb, mirroring timestampvm's
// singletonStatePrefix/blockStatePrefix pattern but with one prefix per
// table in the data model instead of two.
var (
	acctPrefix   = []byte("acct")
	certPrefix   = []byte("cert")
	issuerPrefix = []byte("issuer")
	claimPrefix  = []byte("claim")
	nsPrefix     = []byte("ns")
	kvPrefix     = []byte("kv")
	tokPrefix    = []byte("tok")
	poolPrefix   = []byte("pool")
	appPrefix    = []byte("app")
	metaPrefix   = []byte("meta")
	blockPrefix  = []byte("block")
	txidxPrefix  = []byte("txidx")

	allPrefixes = [][]byte{
		acctPrefix, certPrefix, issuerPrefix, claimPrefix, nsPrefix,
		kvPrefix, tokPrefix, poolPrefix, appPrefix, metaPrefix,
		blockPrefix, txidxPrefix,
	}
)

// partitionedDB is a bundle of prefixed sub-databases sharing a common
// underlying database — either the base versiondb.Database (for the
// committed view) or a nested versiondb scratchpad overlay (for a
// begin()/commit() speculative write).
//
// block and txidx are archival, node-local lookup tables (the height->block
// and tx-hash->height indices behind the /block and /tx RPC routes); they
// are deliberately excluded from StateRoot's commitment, same as meta,
// since they record history rather than consensus-relevant ledger state.
type partitionedDB struct {
	acct, cert, issuer, claim, ns, kv, tok, pool, app, meta database.Database
	block, txidx                                            database.Database
}

func newPartitionedDB(base database.Database) *partitionedDB {
	return &partitionedDB{
		acct:   prefixdb.New(acctPrefix, base),
		cert:   prefixdb.New(certPrefix, base),
		issuer: prefixdb.New(issuerPrefix, base),
		claim:  prefixdb.New(claimPrefix, base),
		ns:     prefixdb.New(nsPrefix, base),
		kv:     prefixdb.New(kvPrefix, base),
		tok:    prefixdb.New(tokPrefix, base),
		pool:   prefixdb.New(poolPrefix, base),
		app:    prefixdb.New(appPrefix, base),
		meta:   prefixdb.New(metaPrefix, base),
		block:  prefixdb.New(blockPrefix, base),
		txidx:  prefixdb.New(txidxPrefix, base),
	}
}
