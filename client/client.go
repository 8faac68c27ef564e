// Package client implements consensus.Transport over the node's own
// JSON-RPC surface, so validators reach each other the same way an
// external caller would reach any one of them. Grounded on the teacher's
// client.go, which wraps avalanchego/utils/rpc.EndpointRequester around
// hand-written Args/Reply pairs for each VM method; generalized here from
// one vmID-scoped client to one RPC call per consensus.Transport method.
package client

import (
	"context"

	"github.com/ava-labs/avalanchego/utils/rpc"
	"github.com/inconshreveable/log15"

	"github.com/seloria/seloria/consensus"
	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/rpcapi"
)

// Transport implements consensus.Transport by POSTing to each validator's
// /rpc JSON-RPC endpoint, one avalanchego EndpointRequester per peer
// address (requesters are cheap and stateless, so one is created per
// call rather than cached).
type Transport struct {
	log log15.Logger
}

// NewTransport builds a Transport. logger may be nil.
func NewTransport(logger log15.Logger) *Transport {
	if logger == nil {
		logger = log15.New("component", "client")
	}
	return &Transport{log: logger}
}

func requesterFor(endpoint consensus.ValidatorEndpoint) rpc.EndpointRequester {
	return rpc.NewEndpointRequester(endpoint.Address, "/rpc", "Consensus")
}

// RequestSignature asks endpoint to validate and sign block, per
// spec.md §5's leader-collects-signatures step.
func (t *Transport) RequestSignature(ctx context.Context, endpoint consensus.ValidatorEndpoint, block *types.Block) (crypto.Signature, error) {
	req := requesterFor(endpoint)
	args := &rpcapi.ProposeArgs{Block: block}
	reply := new(rpcapi.ProposeReply)
	if err := req.SendRequest(ctx, "propose", args, reply); err != nil {
		return crypto.Signature{}, err
	}
	return reply.Signature, nil
}

// SendCommit broadcasts the finalized block (with its QC attached) to
// endpoint. Errors are returned for the caller to log and ignore, per
// spec.md §5 ("failures reduce the count of collected signatures but do
// not abort the round") — the same tolerance applies to commit broadcast.
func (t *Transport) SendCommit(ctx context.Context, endpoint consensus.ValidatorEndpoint, block *types.Block) error {
	req := requesterFor(endpoint)
	args := &rpcapi.CommitArgs{Block: block, QC: block.QC}
	reply := new(rpcapi.CommitReply)
	return req.SendRequest(ctx, "commit", args, reply)
}
