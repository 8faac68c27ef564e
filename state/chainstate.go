package state

import (
	"bytes"
	"sort"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"

	"github.com/seloria/seloria/core/codec"
	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/seloriaerr"
)

var (
	keyLastHeight    = []byte("last_height")
	keyLastBlockHash = []byte("last_block_hash")
	keyLastTimestamp = []byte("last_timestamp")
	keyGenesisHash   = []byte("genesis_hash")
	keyValidators    = []byte("validators")
)

// ChainState is the committed ledger: every account, certificate, claim,
// namespace, KV entry, token, and pool, partitioned the way timestampvm's
// state.go partitions its singleton and block stores, but with one
// prefixdb per entity-type table instead of two.
type ChainState struct {
	versioned *versiondb.Database
	parts     *partitionedDB
}

// New wraps db (typically memdb.New(), per spec.md §4.2) in a versiondb
// base layer and partitions it into the entity-type tables.
func New(db database.Database) *ChainState {
	versioned := versiondb.New(db)
	return &ChainState{
		versioned: versioned,
		parts:     newPartitionedDB(versioned),
	}
}

// Commit flushes every pending write accumulated directly against
// ChainState (outside of a Scratchpad) down to the underlying database.
func (cs *ChainState) Commit() error {
	return cs.versioned.Commit()
}

// Scratchpad is a copy-on-write overlay used to simulate a block's
// transactions before committing them, per spec.md §4.2's begin()/commit()
// model. It is implemented as a nested versiondb layered on top of the
// ChainState's own versiondb, mirroring the same technique timestampvm
// uses to wrap a raw database.Database, applied one level deeper.
type Scratchpad struct {
	overlay *versiondb.Database
	parts   *partitionedDB
}

// Begin opens a new scratchpad overlay over the current committed state.
func (cs *ChainState) Begin() *Scratchpad {
	overlay := versiondb.New(cs.versioned)
	return &Scratchpad{
		overlay: overlay,
		parts:   newPartitionedDB(overlay),
	}
}

// Commit atomically folds every write made through the scratchpad back
// into the parent ChainState's versioned layer. It does not, by itself,
// persist to the underlying disk-backed database — call ChainState.Commit
// to do that once a block's QC has been formed.
func (s *Scratchpad) Commit() error {
	return s.overlay.Commit()
}

// Abort discards every write made through the scratchpad, used when a
// proposed block fails validation or re-execution disagrees with it.
func (s *Scratchpad) Abort() {
	s.overlay.Abort()
}

// Begin opens a nested scratchpad over s, used by apply_tx (spec.md §4.4
// step 5) to simulate one transaction's ops in isolation from the rest of
// the block: on any op failure the nested scratchpad is discarded without
// disturbing s, which still holds every earlier tx's committed effects.
func (s *Scratchpad) Begin() *Scratchpad {
	overlay := versiondb.New(s.overlay)
	return &Scratchpad{
		overlay: overlay,
		parts:   newPartitionedDB(overlay),
	}
}

// View is implemented by both *ChainState and *Scratchpad so every
// accessor below works against either. The db() method is unexported,
// so only this package can satisfy View — callers outside state pass
// an existing *ChainState or *Scratchpad value, never a new type.
type View interface {
	db() *partitionedDB
}

func (cs *ChainState) db() *partitionedDB { return cs.parts }
func (s *Scratchpad) db() *partitionedDB  { return s.parts }

func getDecode[T any](d database.Database, key []byte, decode func(*codec.Reader) (T, error)) (T, bool, error) {
	var zero T
	b, err := d.Get(key)
	if err == database.ErrNotFound {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	v, err := decode(codec.NewReader(b))
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func putEncode(d database.Database, key []byte, encode func(*codec.Writer)) error {
	w := codec.NewWriter()
	encode(w)
	return d.Put(key, w.Bytes())
}

// GetAccount returns the account for pubkey, or a freshly zeroed one if it
// has never been credited or debited, per spec.md §3 ("created implicitly
// on first credit").
func GetAccount(v View, pubkey crypto.PublicKey) (*types.Account, error) {
	a, ok, err := getDecode(v.db().acct, pubkey[:], types.DecodeAccount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	return a, nil
}

// PutAccount persists the account under pubkey.
func PutAccount(v View, pubkey crypto.PublicKey, a *types.Account) error {
	return putEncode(v.db().acct, pubkey[:], a.Encode)
}

// GetAgentCert returns the registered certificate for agentPubkey, if any,
// keyed by the certified pubkey itself rather than its derived AgentID, per
// original_source's agent_registry (state.rs register_agent/get_agent).
func GetAgentCert(v View, agentPubkey crypto.PublicKey) (types.AgentCertificate, bool, error) {
	c, ok, err := getDecode(v.db().cert, agentPubkey[:], types.DecodeAgentCertificate)
	return c, ok, err
}

// PutAgentCert persists c keyed by its AgentPubkey.
func PutAgentCert(v View, c types.AgentCertificate) error {
	return putEncode(v.db().cert, c.AgentPubkey[:], func(w *codec.Writer) { c.Encode(w) })
}

// ComputeIssuerID computes issuer_id = Blake3(issuer_pubkey), the value an
// AgentCertificate's IssuerID field must match for a trusted issuer to
// resolve, per original_source's find_issuer_by_id.
func ComputeIssuerID(issuerPubkey crypto.PublicKey) crypto.Hash {
	return crypto.Sum(issuerPubkey[:])
}

// TrustedIssuerPubkey resolves issuerID to the trusted issuer's full
// pubkey, so the caller can verify a certificate's issuer signature.
func TrustedIssuerPubkey(v View, issuerID crypto.Hash) (crypto.PublicKey, bool, error) {
	b, err := v.db().issuer.Get(issuerID[:])
	if err == database.ErrNotFound {
		return crypto.ZeroHash, false, nil
	}
	if err != nil {
		return crypto.ZeroHash, false, err
	}
	pk, err := ids.ToID(b)
	return pk, true, err
}

// PutTrustedIssuer registers issuerPubkey as trusted, keyed by its
// issuer_id so certificates can resolve it in O(1).
func PutTrustedIssuer(v View, issuerPubkey crypto.PublicKey) error {
	id := ComputeIssuerID(issuerPubkey)
	return v.db().issuer.Put(id[:], issuerPubkey[:])
}

// InitGenesis seeds cs from g: every initial balance, every trusted
// issuer, and the static validator set, then records g's hash and an
// empty last-accepted position (height 0, zero hash, g's timestamp) so the
// first block proposed lands at height 1 with prev_hash == zero, per
// spec.md §4.3's genesis convention. Grounded on
// original_source's ChainState::init_genesis (seloria-state/src/state.rs)
// and its GenesisConfig::create_genesis_block usage.
func InitGenesis(cs *ChainState, g *types.GenesisConfig) error {
	for _, bal := range g.InitialBalances {
		account := types.NewAccount()
		account.Balance = bal.Balance
		if err := PutAccount(cs, bal.Pubkey, account); err != nil {
			return err
		}
	}
	for _, issuer := range g.TrustedIssuers {
		if err := PutTrustedIssuer(cs, issuer); err != nil {
			return err
		}
	}
	if err := cs.SetValidators(g.Validators); err != nil {
		return err
	}

	w := codec.NewWriter()
	w.U64(g.ChainID)
	w.U64(g.Timestamp)
	w.U64(uint64(len(g.InitialBalances)))
	for _, bal := range g.InitialBalances {
		w.Fixed32(bal.Pubkey)
		w.U64(bal.Balance)
	}
	w.U64(uint64(len(g.TrustedIssuers)))
	for _, issuer := range g.TrustedIssuers {
		w.Fixed32(issuer)
	}
	w.U64(uint64(len(g.Validators)))
	for _, v := range g.Validators {
		w.Fixed32(v)
	}
	genesisHash := crypto.Sum(w.Bytes())
	if err := cs.SetGenesisHash(genesisHash); err != nil {
		return err
	}
	if err := cs.SetLastAccepted(0, crypto.ZeroHash, g.Timestamp); err != nil {
		return err
	}
	return cs.Commit()
}

// GetClaim returns the claim with id, if any.
func GetClaim(v View, id crypto.Hash) (*types.Claim, bool, error) {
	return getDecode(v.db().claim, id[:], types.DecodeClaim)
}

// PutClaim persists c under its ID.
func PutClaim(v View, c *types.Claim) error {
	return putEncode(v.db().claim, c.ID[:], c.Encode)
}

// GetNamespace returns the namespace with nsID, if any.
func GetNamespace(v View, nsID crypto.Hash) (*types.Namespace, bool, error) {
	return getDecode(v.db().ns, nsID[:], types.DecodeNamespace)
}

// PutNamespace persists ns under its NsID.
func PutNamespace(v View, ns *types.Namespace) error {
	return putEncode(v.db().ns, ns.NsID[:], ns.Encode)
}

func kvKey(nsID crypto.Hash, key string) []byte {
	w := codec.NewWriter()
	w.Fixed32(nsID)
	w.String(key)
	return w.Bytes()
}

// GetKV returns the KV entry at (nsID, key), if any.
func GetKV(v View, nsID crypto.Hash, key string) (*types.KVEntry, bool, error) {
	return getDecode(v.db().kv, kvKey(nsID, key), types.DecodeKVEntry)
}

// ListKVKeys returns every key currently stored under nsID, sorted
// ascending, per spec.md §6's GET /kv/:ns_id. The kv partition keys every
// entry by (nsID, key) so listing means filtering the partition's full
// keyspace down to those starting with nsID's 32 bytes.
func ListKVKeys(v View, nsID crypto.Hash) ([]string, error) {
	entries, err := collectSorted(v.db().kv)
	if err != nil {
		return nil, err
	}
	var keys []string
	prefix := nsID[:]
	for _, e := range entries {
		if len(e.key) < len(prefix) || !bytes.Equal(e.key[:len(prefix)], prefix) {
			continue
		}
		r := codec.NewReader(e.key[len(prefix):])
		key, err := r.String()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// PutKV persists e at (e.NsID, e.Key).
func PutKV(v View, e *types.KVEntry) error {
	return putEncode(v.db().kv, kvKey(e.NsID, e.Key), e.Encode)
}

// DeleteKV removes the entry at (nsID, key).
func DeleteKV(v View, nsID crypto.Hash, key string) error {
	return v.db().kv.Delete(kvKey(nsID, key))
}

// GetToken returns the token with tokenID, if any.
func GetToken(v View, tokenID crypto.Hash) (*types.Token, bool, error) {
	return getDecode(v.db().tok, tokenID[:], types.DecodeToken)
}

// PutToken persists t under its TokenID.
func PutToken(v View, t *types.Token) error {
	return putEncode(v.db().tok, t.TokenID[:], t.Encode)
}

func tokenBalanceKey(tokenID crypto.Hash, holder crypto.PublicKey) []byte {
	w := codec.NewWriter()
	w.Fixed32(tokenID)
	w.Fixed32(holder)
	return w.Bytes()
}

// GetTokenBalance returns holder's balance of tokenID, defaulting to 0.
func GetTokenBalance(v View, tokenID crypto.Hash, holder crypto.PublicKey) (uint64, error) {
	b, err := v.db().tok.Get(tokenBalanceKey(tokenID, holder))
	if err == database.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	r := codec.NewReader(b)
	return r.U64()
}

// PutTokenBalance sets holder's balance of tokenID.
func PutTokenBalance(v View, tokenID crypto.Hash, holder crypto.PublicKey, amount uint64) error {
	w := codec.NewWriter()
	w.U64(amount)
	return v.db().tok.Put(tokenBalanceKey(tokenID, holder), w.Bytes())
}

// GetPool returns the pool with poolID, if any.
func GetPool(v View, poolID crypto.Hash) (*types.Pool, bool, error) {
	return getDecode(v.db().pool, poolID[:], types.DecodePool)
}

// PutPool persists p under its PoolID.
func PutPool(v View, p *types.Pool) error {
	return putEncode(v.db().pool, p.PoolID[:], p.Encode)
}

func lpBalanceKey(poolID crypto.Hash, holder crypto.PublicKey) []byte {
	w := codec.NewWriter()
	w.Fixed32(poolID)
	w.Fixed32(holder)
	return w.Bytes()
}

// GetLPBalance returns holder's LP token balance in poolID, defaulting to 0.
func GetLPBalance(v View, poolID crypto.Hash, holder crypto.PublicKey) (uint64, error) {
	b, err := v.db().pool.Get(lpBalanceKey(poolID, holder))
	if err == database.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return codec.NewReader(b).U64()
}

// PutLPBalance sets holder's LP token balance in poolID.
func PutLPBalance(v View, poolID crypto.Hash, holder crypto.PublicKey, amount uint64) error {
	w := codec.NewWriter()
	w.U64(amount)
	return v.db().pool.Put(lpBalanceKey(poolID, holder), w.Bytes())
}

// GetApp returns the app with appID, if any.
func GetApp(v View, appID crypto.Hash) (*types.AppMeta, bool, error) {
	return getDecode(v.db().app, appID[:], types.DecodeAppMeta)
}

// PutApp persists a under its AppID.
func PutApp(v View, a *types.AppMeta) error {
	return putEncode(v.db().app, a.AppID[:], a.Encode)
}

// SetLastAccepted records the height, hash, and timestamp of the latest
// committed block, mirroring timestampvm's blockState.SetLastAccepted.
// timestamp lets a follower enforce spec.md §4.3's "timestamp not earlier
// than head.timestamp" header check without re-fetching the full block.
func (cs *ChainState) SetLastAccepted(height uint64, blockHash crypto.Hash, timestamp uint64) error {
	w := codec.NewWriter()
	w.U64(height)
	if err := cs.parts.meta.Put(keyLastHeight, w.Bytes()); err != nil {
		return err
	}
	tw := codec.NewWriter()
	tw.U64(timestamp)
	if err := cs.parts.meta.Put(keyLastTimestamp, tw.Bytes()); err != nil {
		return err
	}
	return cs.parts.meta.Put(keyLastBlockHash, blockHash[:])
}

// LastAcceptedTimestamp returns the timestamp of the latest committed
// block, or 0 if the chain has not yet accepted one.
func (cs *ChainState) LastAcceptedTimestamp() (uint64, error) {
	b, err := cs.parts.meta.Get(keyLastTimestamp)
	if err == database.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return codec.NewReader(b).U64()
}

// LastAccepted returns the height and hash of the latest committed block.
func (cs *ChainState) LastAccepted() (uint64, crypto.Hash, error) {
	hb, err := cs.parts.meta.Get(keyLastHeight)
	if err == database.ErrNotFound {
		return 0, crypto.ZeroHash, nil
	}
	if err != nil {
		return 0, crypto.ZeroHash, err
	}
	height, err := codec.NewReader(hb).U64()
	if err != nil {
		return 0, crypto.ZeroHash, err
	}
	hashb, err := cs.parts.meta.Get(keyLastBlockHash)
	if err != nil {
		return 0, crypto.ZeroHash, err
	}
	hash, err := ids.ToID(hashb)
	if err != nil {
		return 0, crypto.ZeroHash, err
	}
	return height, hash, nil
}

func heightKey(height uint64) []byte {
	w := codec.NewWriter()
	w.U64(height)
	return w.Bytes()
}

// PutBlock archives a finalized block (header, txs, and QC) under its
// height, and indexes each of its transactions by hash so GetTransaction
// can locate them later. Called once per commit, alongside SetLastAccepted,
// to back the /block/:height and /tx/:hash routes from spec.md §6.
func (cs *ChainState) PutBlock(block *types.Block) error {
	w := codec.NewWriter()
	block.EncodeStored(w)
	if err := cs.parts.block.Put(heightKey(block.Header.Height), w.Bytes()); err != nil {
		return err
	}
	for _, tx := range block.Txs {
		hash := tx.Hash()
		loc := codec.NewWriter()
		loc.U64(block.Header.Height)
		if err := cs.parts.txidx.Put(hash[:], loc.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// GetBlockByHeight returns the archived block at height, if any.
func (cs *ChainState) GetBlockByHeight(height uint64) (*types.Block, bool, error) {
	b, err := cs.parts.block.Get(heightKey(height))
	if err == database.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	block, err := types.DecodeStoredBlock(codec.NewReader(b))
	if err != nil {
		return nil, false, err
	}
	return block, true, nil
}

// GetTransaction locates the transaction with the given content hash by
// looking up which block included it, then scanning that block's ordered
// tx list, per spec.md §6's GET /tx/:hash.
func (cs *ChainState) GetTransaction(hash crypto.Hash) (*types.Transaction, uint64, bool, error) {
	b, err := cs.parts.txidx.Get(hash[:])
	if err == database.ErrNotFound {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	height, err := codec.NewReader(b).U64()
	if err != nil {
		return nil, 0, false, err
	}
	block, ok, err := cs.GetBlockByHeight(height)
	if err != nil || !ok {
		return nil, 0, false, err
	}
	for _, tx := range block.Txs {
		if tx.Hash() == hash {
			return tx, height, true, nil
		}
	}
	return nil, 0, false, nil
}

// SetGenesisHash records the hash of the genesis configuration this chain
// was initialized from, so a restarted node can confirm it's rejoining the
// same chain rather than a differently configured one.
func (cs *ChainState) SetGenesisHash(h crypto.Hash) error {
	return cs.parts.meta.Put(keyGenesisHash, h[:])
}

// GenesisHash returns the recorded genesis hash, if the chain has been
// initialized.
func (cs *ChainState) GenesisHash() (crypto.Hash, bool, error) {
	b, err := cs.parts.meta.Get(keyGenesisHash)
	if err == database.ErrNotFound {
		return crypto.ZeroHash, false, nil
	}
	if err != nil {
		return crypto.ZeroHash, false, err
	}
	h, err := ids.ToID(b)
	return h, true, err
}

// SetValidators records the fixed validator set V, indexed so V[h mod N]
// can resolve the leader for a given height, per spec.md §4.3.
func (cs *ChainState) SetValidators(validators []crypto.PublicKey) error {
	w := codec.NewWriter()
	w.U64(uint64(len(validators)))
	for _, v := range validators {
		w.Fixed32(v)
	}
	return cs.parts.meta.Put(keyValidators, w.Bytes())
}

// Validators returns the configured validator set, in its configured order.
func (cs *ChainState) Validators() ([]crypto.PublicKey, error) {
	b, err := cs.parts.meta.Get(keyValidators)
	if err == database.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r := codec.NewReader(b)
	n, err := r.U64()
	if err != nil {
		return nil, err
	}
	out := make([]crypto.PublicKey, 0, n)
	for i := uint64(0); i < n; i++ {
		v, err := r.Fixed32()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// StateRoot computes the state_root commitment per spec.md §3: every
// partition's keys are iterated in ascending byte order, each (partition,
// key, value) triple is canonically encoded, and the whole stream is
// hashed with Blake3. Deterministic regardless of insertion order or the
// underlying database's native iteration order.
func (cs *ChainState) StateRoot() (crypto.Hash, error) {
	return stateRoot(cs.parts)
}

// StateRoot computes the same commitment over a scratchpad's overlaid
// view, letting the consensus layer compute a proposed block's
// state_root from a simulated apply before any of it is folded back into
// the committed ChainState.
func (s *Scratchpad) StateRoot() (crypto.Hash, error) {
	return stateRoot(s.parts)
}

func stateRoot(parts *partitionedDB) (crypto.Hash, error) {
	w := codec.NewWriter()
	names := []struct {
		tag []byte
		db  database.Database
	}{
		{acctPrefix, parts.acct},
		{certPrefix, parts.cert},
		{issuerPrefix, parts.issuer},
		{claimPrefix, parts.claim},
		{nsPrefix, parts.ns},
		{kvPrefix, parts.kv},
		{tokPrefix, parts.tok},
		{poolPrefix, parts.pool},
		{appPrefix, parts.app},
	}
	for _, part := range names {
		entries, err := collectSorted(part.db)
		if err != nil {
			return crypto.ZeroHash, err
		}
		w.VarBytes(part.tag)
		w.U64(uint64(len(entries)))
		for _, e := range entries {
			w.VarBytes(e.key)
			w.VarBytes(e.value)
		}
	}
	return crypto.Sum(w.Bytes()), nil
}

// allPartitions lists every partition (including the archival and meta
// ones StateRoot excludes), used by Snapshot/LoadSnapshot to persist the
// full database as spec.md §6's opaque state.bin blob. memdb never
// touches disk on its own, so this is the node's only durability
// mechanism across restarts.
func allPartitions(parts *partitionedDB) []struct {
	tag []byte
	db  database.Database
} {
	return []struct {
		tag []byte
		db  database.Database
	}{
		{acctPrefix, parts.acct},
		{certPrefix, parts.cert},
		{issuerPrefix, parts.issuer},
		{claimPrefix, parts.claim},
		{nsPrefix, parts.ns},
		{kvPrefix, parts.kv},
		{tokPrefix, parts.tok},
		{poolPrefix, parts.pool},
		{appPrefix, parts.app},
		{metaPrefix, parts.meta},
		{blockPrefix, parts.block},
		{txidxPrefix, parts.txidx},
	}
}

// Snapshot canonically encodes every partition's full contents as one
// length-prefixed record stream, for the caller to write to
// data_dir/state.bin.
func (cs *ChainState) Snapshot() ([]byte, error) {
	w := codec.NewWriter()
	for _, part := range allPartitions(cs.parts) {
		entries, err := collectSorted(part.db)
		if err != nil {
			return nil, err
		}
		w.VarBytes(part.tag)
		w.U64(uint64(len(entries)))
		for _, e := range entries {
			w.VarBytes(e.key)
			w.VarBytes(e.value)
		}
	}
	return w.Bytes(), nil
}

// LoadSnapshot restores every partition from a blob produced by Snapshot,
// then commits it down to the base database. Intended to run once, right
// after New, before the node starts serving.
func (cs *ChainState) LoadSnapshot(blob []byte) error {
	r := codec.NewReader(blob)
	for _, part := range allPartitions(cs.parts) {
		tag, err := r.VarBytes()
		if err != nil {
			return err
		}
		if !bytes.Equal(tag, part.tag) {
			return seloriaerr.ErrIO
		}
		n, err := r.U64()
		if err != nil {
			return err
		}
		for i := uint64(0); i < n; i++ {
			key, err := r.VarBytes()
			if err != nil {
				return err
			}
			value, err := r.VarBytes()
			if err != nil {
				return err
			}
			if err := part.db.Put(key, value); err != nil {
				return err
			}
		}
	}
	return cs.Commit()
}

type kvPair struct{ key, value []byte }

func collectSorted(d database.Database) ([]kvPair, error) {
	iter := d.NewIterator()
	defer iter.Release()
	var out []kvPair
	for iter.Next() {
		out = append(out, kvPair{
			key:   append([]byte{}, iter.Key()...),
			value: append([]byte{}, iter.Value()...),
		})
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].key, out[j].key) < 0
	})
	return out, nil
}
