package vm

import (
	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/seloriaerr"
	"github.com/seloria/seloria/state"
)

// execAppRegister registers an application's metadata under its computed
// AppID, supplemented from original_source's app registry (see
// SPEC_FULL.md §C); no original opcode corresponds one-to-one, so this
// follows the same exists-then-insert shape as execNamespaceCreate.
func execAppRegister(sp *state.Scratchpad, sender crypto.PublicKey, body *types.OpAppRegisterBody, txHash crypto.Hash, height uint64) (types.Event, error) {
	appID := body.AppID
	if appID == crypto.ZeroHash {
		appID = types.ComputeAppID(sender, body.Version)
	}
	if _, ok, err := state.GetApp(sp, appID); err != nil {
		return types.Event{}, err
	} else if ok {
		return types.Event{}, seloriaerr.ErrDuplicate
	}

	app := &types.AppMeta{
		AppID: appID, Version: body.Version, Publisher: sender,
		MetadataHash: body.MetadataHash,
		Namespaces:   body.Namespaces, Schemas: body.Schemas, Recipes: body.Recipes,
		RegisteredAt: height,
	}
	if err := state.PutApp(sp, app); err != nil {
		return types.Event{}, err
	}

	return types.Event{
		Kind: types.EventAppRegistered, Height: height, TxHash: txHash,
		Sender: sender, AppID: appID,
	}, nil
}
