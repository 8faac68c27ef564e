package vm

import (
	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/seloriaerr"
	"github.com/seloria/seloria/state"
)

// execAgentCertRegister resolves the certificate's issuer, verifies the
// issuer's signature and trust, checks expiry, and registers the
// certificate under its agent pubkey, grounded on
// original_source's execute_agent_cert_register.
func execAgentCertRegister(sp *state.Scratchpad, sender crypto.PublicKey, body *types.OpAgentCertRegisterBody, txHash crypto.Hash, height uint64, now uint64) (types.Event, error) {
	cert := body.Cert
	if cert.AgentPubkey != sender {
		return types.Event{}, seloriaerr.ErrSenderMismatch
	}

	issuerPubkey, ok, err := state.TrustedIssuerPubkey(sp, cert.IssuerID)
	if err != nil {
		return types.Event{}, err
	}
	if !ok {
		return types.Event{}, seloriaerr.ErrUnknownIssuer
	}
	if !crypto.Verify(issuerPubkey, cert.Bytes(), body.IssuerSig) {
		return types.Event{}, seloriaerr.ErrBadSignature
	}
	if !cert.ActiveAt(now) {
		return types.Event{}, seloriaerr.ErrExpired
	}

	if err := state.PutAgentCert(sp, cert); err != nil {
		return types.Event{}, err
	}

	return types.Event{
		Kind: types.EventAgentRegistered, Height: height, TxHash: txHash,
		Sender: sender, AgentID: cert.AgentID, IssuerID: cert.IssuerID,
	}, nil
}
