package tx

import (
	"encoding/json"

	"github.com/calehh/frabric-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// FrabricTx is the signed envelope every transaction travels in. The sender
// is recovered from Sig rather than named in the envelope.
type FrabricTx struct {
	Version uint8    `json:"version"`
	Type    TxType   `json:"type"`
	Nonce   uint64   `json:"nonce"`
	Tx      any      `json:"tx"`
	Sig     [][]byte `json:"sig"`
}

type ProposeTx struct {
	Kind    types.ProposalKind `json:"kind"`
	Info    common.Hash        `json:"info"`
	Payload json.RawMessage    `json:"payload"`
}

func (p *ProposeTx) DecodePayload() (types.Payload, error) {
	return types.UnmarshalPayload(p.Kind, p.Payload)
}

func NewProposeTx(payload types.Payload, info common.Hash) (*ProposeTx, error) {
	dat, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &ProposeTx{Kind: payload.Kind(), Info: info, Payload: dat}, nil
}

type VoteTx struct {
	Proposal uint64 `json:"proposal"`
	// Weight of zero votes the full snapshot balance.
	Weight  uint64 `json:"weight"`
	Support bool   `json:"support"`
}

type ProposalTx struct {
	Proposal uint64 `json:"proposal"`
}

type ApproveTx struct {
	Proposal    uint64         `json:"proposal"`
	Participant common.Address `json:"participant"`
	KYCHash     common.Hash    `json:"kyc_hash"`
	Proof       []common.Hash  `json:"proof"`
	Signature   hexutil.Bytes  `json:"signature"`
}

type BondTx struct {
	Amount uint64 `json:"amount"`
}

type TransferTx struct {
	Token  common.Address `json:"token"`
	To     common.Address `json:"to"`
	Amount uint64         `json:"amount"`
}

type CrowdfundTx struct {
	Crowdfund common.Address `json:"crowdfund"`
	Amount    uint64         `json:"amount,omitempty"`
}

type BurnTx struct {
	Crowdfund   common.Address `json:"crowdfund"`
	Contributor common.Address `json:"contributor"`
}

type frabricTxTmpl[Tx any] struct {
	Version uint8    `json:"version"`
	Type    TxType   `json:"type"`
	Nonce   uint64   `json:"nonce"`
	Tx      Tx       `json:"tx"`
	Sig     [][]byte `json:"sig"`
}

// SigData is the byte string a sender signs: the envelope with the signature
// slot replaced by ext, the chain id.
func (tx *FrabricTx) SigData(ext []byte) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = [][]byte{ext}
	dat, err = json.Marshal(ntx)
	return
}

func parseTxType(dat []byte) TxType {
	var tx struct {
		Type TxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return TxTypeUnknown
	}
	return tx.Type
}

func unmarshalTx[Tx any](dat []byte) (btx *FrabricTx, err error) {
	var txt frabricTxTmpl[Tx]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return
	}
	if txt.Version != TxVersion0 {
		return nil, ErrUnsupportedTxVersion
	}
	btx = new(FrabricTx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalTx(dat []byte) (btx *FrabricTx, err error) {
	switch tp := parseTxType(dat); tp {
	case TxTypePropose:
		return unmarshalTx[ProposeTx](dat)
	case TxTypeVote:
		return unmarshalTx[VoteTx](dat)
	case TxTypeCompleteProposal, TxTypeExecuteProposal, TxTypeCancelProposal:
		return unmarshalTx[ProposalTx](dat)
	case TxTypeApprove:
		return unmarshalTx[ApproveTx](dat)
	case TxTypeBond:
		return unmarshalTx[BondTx](dat)
	case TxTypeTransfer:
		return unmarshalTx[TransferTx](dat)
	case TxTypeDeposit, TxTypeWithdraw, TxTypeCrowdfundExecute, TxTypeCrowdfundFinish, TxTypeCrowdfundRefund:
		return unmarshalTx[CrowdfundTx](dat)
	case TxTypeBurn:
		return unmarshalTx[BurnTx](dat)
	default:
		err = ErrUnsupportedTxType
	}
	return
}

func MarshalTx(btx *FrabricTx) (dat []byte, err error) {
	return json.Marshal(btx)
}

// Signer produces a recoverable secp256k1 signature over keccak256(data).
type Signer interface {
	Sign(data []byte) ([]byte, error)
}

// Sign fills btx.Sig for chainId and returns the wire encoding.
func Sign(btx *FrabricTx, chainId string, signer Signer) (dat []byte, err error) {
	msg, err := btx.SigData([]byte(chainId))
	if err != nil {
		return
	}
	sig, err := signer.Sign(msg)
	if err != nil {
		return
	}
	btx.Sig = [][]byte{sig}
	return MarshalTx(btx)
}
