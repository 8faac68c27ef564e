package vm

import (
	"encoding/json"

	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/seloriaerr"
	"github.com/seloria/seloria/state"
)

// execNamespaceCreate registers a new policy-gated KV namespace, grounded
// on original_source's execute_namespace_create.
func execNamespaceCreate(sp *state.Scratchpad, sender crypto.PublicKey, body *types.OpNamespaceCreateBody, txHash crypto.Hash, height uint64) (types.Event, error) {
	nsID := types.ComputeNamespaceID(body.AppID, sender, body.Name)
	if _, ok, err := state.GetNamespace(sp, nsID); err != nil {
		return types.Event{}, err
	} else if ok {
		return types.Event{}, seloriaerr.ErrDuplicate
	}

	allow := make(map[crypto.PublicKey]struct{}, len(body.Allowlist))
	for _, pk := range body.Allowlist {
		allow[pk] = struct{}{}
	}
	ns := &types.Namespace{
		NsID:          nsID,
		Owner:         sender,
		Policy:        body.Policy,
		Allowlist:     allow,
		MinWriteStake: body.MinWriteStake,
	}
	if err := state.PutNamespace(sp, ns); err != nil {
		return types.Event{}, err
	}

	return types.Event{
		Kind: types.EventNamespaceCreated, Height: height, TxHash: txHash,
		Sender: sender, NsID: nsID,
	}, nil
}

// requireWriteAccess loads ns and checks sender may write into it under its
// policy, consulting sender's available native balance for STAKE_GATED.
func requireWriteAccess(sp *state.Scratchpad, nsID crypto.Hash, sender crypto.PublicKey) (*types.Namespace, error) {
	ns, ok, err := state.GetNamespace(sp, nsID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, seloriaerr.ErrNoNamespace
	}
	account, err := state.GetAccount(sp, sender)
	if err != nil {
		return nil, err
	}
	if !ns.CanWrite(sender, account.Available()) {
		return nil, seloriaerr.ErrPolicyDenied
	}
	return ns, nil
}

// execKVPut writes value under (body.NsID, body.Key), grounded on
// execute_kv_put.
func execKVPut(sp *state.Scratchpad, sender crypto.PublicKey, body *types.OpKVPutBody, txHash crypto.Hash, height uint64) (types.Event, error) {
	if _, err := requireWriteAccess(sp, body.NsID, sender); err != nil {
		return types.Event{}, err
	}
	entry := &types.KVEntry{
		NsID: body.NsID, Key: body.Key, Codec: body.Codec,
		Hash: crypto.Sum(body.Value), Inline: body.Value,
		UpdatedAt: height, Updater: sender,
	}
	if err := state.PutKV(sp, entry); err != nil {
		return types.Event{}, err
	}
	return types.Event{
		Kind: types.EventKVUpdated, Height: height, TxHash: txHash,
		Sender: sender, NsID: body.NsID, Key: body.Key,
	}, nil
}

// execKVDel removes the entry at (body.NsID, body.Key), grounded on
// execute_kv_del.
func execKVDel(sp *state.Scratchpad, sender crypto.PublicKey, body *types.OpKVDelBody, txHash crypto.Hash, height uint64) (types.Event, error) {
	if _, err := requireWriteAccess(sp, body.NsID, sender); err != nil {
		return types.Event{}, err
	}
	if _, ok, err := state.GetKV(sp, body.NsID, body.Key); err != nil {
		return types.Event{}, err
	} else if !ok {
		return types.Event{}, seloriaerr.ErrNoKey
	}
	if err := state.DeleteKV(sp, body.NsID, body.Key); err != nil {
		return types.Event{}, err
	}
	return types.Event{
		Kind: types.EventKVDeleted, Height: height, TxHash: txHash,
		Sender: sender, NsID: body.NsID, Key: body.Key,
	}, nil
}

// execKVAppend appends body.Chunk onto the existing value at (body.NsID,
// body.Key), or creates it if absent, grounded on execute_kv_append.
// Raw-codec entries append as bytes; json/cbor-codec entries append as an
// element of a JSON array, per the append-semantics design notes.
func execKVAppend(sp *state.Scratchpad, sender crypto.PublicKey, body *types.OpKVAppendBody, txHash crypto.Hash, height uint64) (types.Event, error) {
	if _, err := requireWriteAccess(sp, body.NsID, sender); err != nil {
		return types.Event{}, err
	}
	existing, ok, err := state.GetKV(sp, body.NsID, body.Key)
	if err != nil {
		return types.Event{}, err
	}
	var prior []byte
	codec := body.Codec
	if ok {
		prior = existing.Inline
		codec = existing.Codec
	}
	var data []byte
	switch codec {
	case "json", "cbor":
		data, err = appendJSONElement(prior, body.Chunk)
		if err != nil {
			return types.Event{}, err
		}
	default:
		data = append(append([]byte{}, prior...), body.Chunk...)
	}
	entry := &types.KVEntry{
		NsID: body.NsID, Key: body.Key, Codec: codec,
		Hash: crypto.Sum(data), Inline: data,
		UpdatedAt: height, Updater: sender,
	}
	if err := state.PutKV(sp, entry); err != nil {
		return types.Event{}, err
	}
	return types.Event{
		Kind: types.EventKVUpdated, Height: height, TxHash: txHash,
		Sender: sender, NsID: body.NsID, Key: body.Key,
	}, nil
}

// appendJSONElement decodes prior as a JSON array (an empty/absent prior
// starts a fresh one), appends element as its newest member, and
// re-encodes the array.
func appendJSONElement(prior, element []byte) ([]byte, error) {
	var items []json.RawMessage
	if len(prior) > 0 {
		if err := json.Unmarshal(prior, &items); err != nil {
			return nil, seloriaerr.ErrBadEncoding
		}
	}
	items = append(items, json.RawMessage(element))
	return json.Marshal(items)
}
