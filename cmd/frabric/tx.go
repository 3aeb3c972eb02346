package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/calehh/frabric-app/crypto"
	"github.com/calehh/frabric-app/state"
	"github.com/calehh/frabric-app/tx"
	"github.com/calehh/frabric-app/types"
	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

type txArguments struct {
	Url    string
	Key    string
	Nonce  int64
	NoSend bool
}

var txArgs txArguments

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Sign and broadcast frabric transactions",
}

func init() {
	urlFlag(txCmd, &txArgs.Url)
	keyFlag(txCmd, &txArgs.Key)
	flags := txCmd.PersistentFlags()
	flags.Int64VarP(&txArgs.Nonce, "nonce", "n", -1, "account nonce, queried from the node when negative")
	flags.BoolVar(&txArgs.NoSend, "nosend", false, "print the signed transaction instead of sending it")

	txCmd.AddCommand(proposeCmd)
	txCmd.AddCommand(
		proposalTxCmd("vote [proposal]", "Vote on an active proposal", tx.TxTypeVote),
		proposalTxCmd("complete [proposal]", "Settle a proposal whose voting period ended", tx.TxTypeCompleteProposal),
		proposalTxCmd("execute [proposal]", "Execute a queued proposal", tx.TxTypeExecuteProposal),
		proposalTxCmd("cancel [proposal]", "Cancel a proposal as its proposer or a vetoer", tx.TxTypeCancelProposal),
		approveCmd,
		bondCmd,
		transferCmd,
		crowdfundTxCmd("deposit [crowdfund] [amount]", "Deposit payment tokens into a crowdfund", tx.TxTypeDeposit, true),
		crowdfundTxCmd("withdraw [crowdfund] [amount]", "Withdraw a deposit from an active crowdfund", tx.TxTypeWithdraw, true),
		crowdfundTxCmd("crowdfund-execute [crowdfund]", "Release a funded crowdfund to its governor", tx.TxTypeCrowdfundExecute, false),
		crowdfundTxCmd("crowdfund-finish [crowdfund]", "Mint thread tokens for an executed crowdfund", tx.TxTypeCrowdfundFinish, false),
		crowdfundTxCmd("crowdfund-refund [crowdfund] [amount]", "Refund a crowdfund to its contributors", tx.TxTypeCrowdfundRefund, true),
		burnCmd,
	)
}

// sendTx signs body as a transaction of type t from the key at --key and
// broadcasts it.
func sendTx(t tx.TxType, body any) error {
	key, err := crypto.LoadKeyFile(txArgs.Key)
	if err != nil {
		return err
	}
	cli, err := http.New(txArgs.Url, "/websocket")
	if err != nil {
		return err
	}
	ctx := context.Background()
	gres, err := cli.Genesis(ctx)
	if err != nil {
		return fmt.Errorf("get chain genesis: %w", err)
	}
	nonce := uint64(txArgs.Nonce)
	if txArgs.Nonce < 0 {
		var act state.Account
		if err = abciQuery(ctx, cli, "/nonce/", key.Address().Bytes(), &act); err != nil {
			return err
		}
		nonce = act.Nonce
	}
	btx := &tx.FrabricTx{
		Version: tx.TxVersion0,
		Type:    t,
		Nonce:   nonce,
		Tx:      body,
	}
	dat, err := tx.Sign(btx, gres.Genesis.ChainID, key)
	if err != nil {
		return fmt.Errorf("sign tx: %w", err)
	}
	if txArgs.NoSend {
		fmt.Println(string(dat))
		return nil
	}
	res, err := cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		return fmt.Errorf("broadcast tx: %w", err)
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))
	if res.Code != 0 {
		return fmt.Errorf("tx rejected: %s", res.Log)
	}
	return nil
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

type voteArguments struct {
	Weight  uint64
	Against bool
}

var voteArgs voteArguments

func proposalTxCmd(use, short string, t tx.TxType) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUint(args[0])
			if err != nil {
				return err
			}
			if t == tx.TxTypeVote {
				return sendTx(t, &tx.VoteTx{Proposal: id, Weight: voteArgs.Weight, Support: !voteArgs.Against})
			}
			return sendTx(t, &tx.ProposalTx{Proposal: id})
		},
	}
	if t == tx.TxTypeVote {
		cmd.Flags().Uint64Var(&voteArgs.Weight, "weight", 0, "vote weight, 0 votes the full snapshot balance")
		cmd.Flags().BoolVar(&voteArgs.Against, "against", false, "vote against the proposal")
	}
	return cmd
}

func crowdfundTxCmd(use, short string, t tx.TxType, withAmount bool) *cobra.Command {
	nargs := 1
	if withAmount {
		nargs = 2
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cf, err := parseAddress(args[0])
			if err != nil {
				return err
			}
			body := &tx.CrowdfundTx{Crowdfund: cf}
			if withAmount {
				if body.Amount, err = parseUint(args[1]); err != nil {
					return err
				}
			}
			return sendTx(t, body)
		},
	}
}

type approveArguments struct {
	KYCHash   string
	Proof     []string
	Signature string
}

var approveArgs approveArguments

var approveCmd = &cobra.Command{
	Use:   "approve [proposal] [participant]",
	Short: "Approve a participant of an executed batch with a KYC attestation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUint(args[0])
		if err != nil {
			return err
		}
		participant, err := parseAddress(args[1])
		if err != nil {
			return err
		}
		sig, err := hexutil.Decode(approveArgs.Signature)
		if err != nil {
			return fmt.Errorf("invalid signature: %w", err)
		}
		body := &tx.ApproveTx{
			Proposal:    id,
			Participant: participant,
			KYCHash:     common.HexToHash(approveArgs.KYCHash),
			Signature:   sig,
		}
		for _, p := range approveArgs.Proof {
			body.Proof = append(body.Proof, common.HexToHash(p))
		}
		return sendTx(tx.TxTypeApprove, body)
	},
}

func init() {
	approveCmd.Flags().StringVar(&approveArgs.KYCHash, "kyc-hash", "", "KYC commitment signed by the agent")
	approveCmd.Flags().StringSliceVar(&approveArgs.Proof, "proof", nil, "Merkle proof of the participant")
	approveCmd.Flags().StringVar(&approveArgs.Signature, "sig", "", "KYC agent signature")
	approveCmd.MarkFlagRequired("sig")
}

var bondCmd = &cobra.Command{
	Use:   "bond [amount]",
	Short: "Bond tokens as an active governor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseUint(args[0])
		if err != nil {
			return err
		}
		return sendTx(tx.TxTypeBond, &tx.BondTx{Amount: amount})
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer [token] [to] [amount]",
	Short: "Transfer tokens",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		to, err := parseAddress(args[1])
		if err != nil {
			return err
		}
		amount, err := parseUint(args[2])
		if err != nil {
			return err
		}
		return sendTx(tx.TxTypeTransfer, &tx.TransferTx{Token: token, To: to, Amount: amount})
	},
}

var burnCmd = &cobra.Command{
	Use:   "burn [crowdfund] [contributor]",
	Short: "Burn a contributor's crowdfund claim for thread tokens or a refund share",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cf, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		contributor, err := parseAddress(args[1])
		if err != nil {
			return err
		}
		return sendTx(tx.TxTypeBurn, &tx.BurnTx{Crowdfund: cf, Contributor: contributor})
	},
}

type proposeArguments struct {
	Info        string
	Type        string
	Data        string
	Participant string
	Fine        uint64
	Governor    string
	Amount      uint64
	Slash       bool
	Variant     uint8
	Name        string
	Symbol      string
	Descriptor  string
	Token       string
	Target      uint64
	Recipient   string
}

var proposeArgs proposeArguments

var proposeCmd = &cobra.Command{
	Use:   "propose [paper|participants|participant_removal|bond_removal|thread|token_action]",
	Short: "Create a proposal",
	Args:  cobra.ExactArgs(1),
	RunE:  proposeRun,
}

func init() {
	flags := proposeCmd.Flags()
	flags.StringVar(&proposeArgs.Info, "info", "", "32 byte hash of the off-chain proposal text")
	flags.StringVar(&proposeArgs.Type, "type", "", "participant type for participants proposals")
	flags.StringVar(&proposeArgs.Data, "data", "", "address or batch Merkle root for participants proposals")
	flags.StringVar(&proposeArgs.Participant, "participant", "", "participant to remove")
	flags.Uint64Var(&proposeArgs.Fine, "fine", 0, "FRBC forfeited by the removed participant")
	flags.StringVar(&proposeArgs.Governor, "governor", "", "governor of a bond removal or thread")
	flags.Uint64Var(&proposeArgs.Amount, "amount", 0, "bond removal or token action amount")
	flags.BoolVar(&proposeArgs.Slash, "slash", false, "slash the bond to the treasury instead of returning it")
	flags.Uint8Var(&proposeArgs.Variant, "variant", 0, "thread variant")
	flags.StringVar(&proposeArgs.Name, "name", "", "thread token name")
	flags.StringVar(&proposeArgs.Symbol, "symbol", "", "thread token symbol")
	flags.StringVar(&proposeArgs.Descriptor, "descriptor", "", "32 byte thread descriptor")
	flags.StringVar(&proposeArgs.Token, "token", "", "thread payment token or token action token")
	flags.Uint64Var(&proposeArgs.Target, "target", 0, "thread crowdfund target")
	flags.StringVar(&proposeArgs.Recipient, "recipient", "", "token action recipient")
}

func buildPayload(kind types.ProposalKind) (types.Payload, error) {
	a := &proposeArgs
	switch kind {
	case types.ProposalPaper:
		return types.PaperPayload{}, nil
	case types.ProposalParticipants:
		t, err := types.ParseParticipantType(a.Type)
		if err != nil {
			return nil, err
		}
		p := types.ParticipantsPayload{Type: t}
		if common.IsHexAddress(a.Data) {
			p.Data = crypto.ParticipantLeaf(common.HexToAddress(a.Data))
		} else {
			p.Data = common.HexToHash(a.Data)
		}
		return p, nil
	case types.ProposalParticipantRemoval:
		participant, err := parseAddress(a.Participant)
		if err != nil {
			return nil, err
		}
		return types.ParticipantRemovalPayload{Participant: participant, Fine: a.Fine}, nil
	case types.ProposalBondRemoval:
		governor, err := parseAddress(a.Governor)
		if err != nil {
			return nil, err
		}
		return types.BondRemovalPayload{Governor: governor, Slash: a.Slash, Amount: a.Amount}, nil
	case types.ProposalThread:
		governor, err := parseAddress(a.Governor)
		if err != nil {
			return nil, err
		}
		token, err := parseAddress(a.Token)
		if err != nil {
			return nil, err
		}
		data, err := state.EncodeThreadData(token, a.Target)
		if err != nil {
			return nil, err
		}
		return types.ThreadPayload{
			Variant:    a.Variant,
			Name:       a.Name,
			Symbol:     a.Symbol,
			Descriptor: common.HexToHash(a.Descriptor),
			Governor:   governor,
			Data:       data,
		}, nil
	case types.ProposalTokenAction:
		token, err := parseAddress(a.Token)
		if err != nil {
			return nil, err
		}
		target, err := parseAddress(a.Recipient)
		if err != nil {
			return nil, err
		}
		return types.TokenActionPayload{Token: token, Target: target, Amount: a.Amount}, nil
	}
	return nil, errors.New("unknown proposal kind")
}

func proposeRun(cmd *cobra.Command, args []string) error {
	kind, err := types.ParseProposalKind(args[0])
	if err != nil {
		return err
	}
	payload, err := buildPayload(kind)
	if err != nil {
		return err
	}
	body, err := tx.NewProposeTx(payload, common.HexToHash(proposeArgs.Info))
	if err != nil {
		return err
	}
	return sendTx(tx.TxTypePropose, body)
}
