package rpcapi

import (
	"context"
	"net/http"
	"time"

	avalancheJSON "github.com/ava-labs/avalanchego/utils/json"
	gorillaRPC "github.com/gorilla/rpc/v2"

	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
)

// ConsensusService exposes the same propose/commit/cert-issue operations
// as a JSON-RPC 2.0 service at /rpc (method names "Consensus.Propose",
// "Consensus.Commit", "Consensus.CertIssue"), grounded on the teacher's
// `Service` in examples/timestampchain/vm/service.go, whose methods follow
// the same (*http.Request, *Args, *Reply) error shape gorilla/rpc requires.
type ConsensusService struct{ s *Server }

// ProposeArgs is Consensus.Propose's request shape.
type ProposeArgs struct {
	Block *types.Block `json:"block"`
}

// ProposeReply is Consensus.Propose's response shape.
type ProposeReply struct {
	Signature crypto.Signature `json:"signature"`
}

// Propose validates and signs a proposed block.
func (svc *ConsensusService) Propose(r *http.Request, args *ProposeArgs, reply *ProposeReply) error {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	sig, err := svc.s.node.HandlePropose(ctx, args.Block)
	if err != nil {
		return err
	}
	reply.Signature = sig
	return nil
}

// CommitArgs is Consensus.Commit's request shape.
type CommitArgs struct {
	Block *types.Block `json:"block"`
	QC    *types.QC    `json:"qc"`
}

// CommitReply is Consensus.Commit's response shape.
type CommitReply struct {
	OK bool `json:"ok"`
}

// Commit verifies a finalized block's QC and applies it.
func (svc *ConsensusService) Commit(r *http.Request, args *CommitArgs, reply *CommitReply) error {
	if args.QC != nil && args.Block != nil {
		args.Block.QC = args.QC
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := svc.s.node.HandleCommit(ctx, args.Block); err != nil {
		return err
	}
	reply.OK = true
	return nil
}

// CertIssueArgs is Consensus.CertIssue's request shape.
type CertIssueArgs struct {
	Cert types.AgentCertificate `json:"cert"`
}

// CertIssueReply is Consensus.CertIssue's response shape.
type CertIssueReply struct {
	Signed *types.SignedAgentCertificate `json:"signed"`
}

// CertIssue signs a certificate on behalf of the configured issuer key.
func (svc *ConsensusService) CertIssue(r *http.Request, args *CertIssueArgs, reply *CertIssueReply) error {
	if err := requireIssuerConfigured(svc.s.issuerKey); err != nil {
		return err
	}
	signed, err := issueCert(*svc.s.issuerKey, args.Cert)
	if err != nil {
		return err
	}
	reply.Signed = signed
	return nil
}

// rpcService builds the gorilla/rpc JSON-RPC 2.0 server for /rpc.
func (s *Server) rpcService() http.Handler {
	server := gorillaRPC.NewServer()
	server.RegisterCodec(avalancheJSON.NewCodec(), "application/json")
	server.RegisterCodec(avalancheJSON.NewCodec(), "application/json;charset=UTF-8")
	_ = server.RegisterService(&ConsensusService{s: s}, "Consensus")
	return server
}
