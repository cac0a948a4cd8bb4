package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/mezonai/simplewallet/client"
	"github.com/mezonai/simplewallet/logx"
	"github.com/mezonai/simplewallet/payload"
	"github.com/spf13/cobra"
)

type SubmitFlags struct {
	Wait time.Duration
}

var submitFlags SubmitFlags

var depositCmd = &cobra.Command{
	Use:   "deposit <amount> <user>",
	Short: "Deposit amount into the user's account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubmit(cmd.Context(), payload.ActionDeposit, args[0], args[1], "")
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <amount> <user>",
	Short: "Withdraw amount from the user's account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubmit(cmd.Context(), payload.ActionWithdraw, args[0], args[1], "")
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer <amount> <fromUser> <toUser>",
	Short: "Transfer amount between two accounts",
	Long: `Transfer amount from fromUser to toUser. The public key of toUser is read
from the key store.

Examples:
  simplewallet transfer 60 jack jill
  simplewallet transfer 1_000 jack jill --wait 10s`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubmit(cmd.Context(), payload.ActionTransfer, args[0], args[1], args[2])
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <user>",
	Short: "Show the committed balance of the user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBalance(cmd.Context(), args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{depositCmd, withdrawCmd, transferCmd} {
		c.Flags().DurationVarP(&submitFlags.Wait, "wait", "w", 0, "wait up to this long for the batch to commit")
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(balanceCmd)
}

func parseAmountArg(raw string) (*uint256.Int, error) {
	return payload.ParseAmount(strings.ReplaceAll(raw, "_", ""))
}

func runSubmit(ctx context.Context, action payload.Action, rawAmount, user, toUser string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	amount, err := parseAmountArg(rawAmount)
	if err != nil {
		return err
	}
	wallet, _, err := newWalletClient(clientFlags)
	if err != nil {
		return err
	}

	var result *client.SubmitResult
	switch action {
	case payload.ActionDeposit:
		result, err = wallet.Deposit(ctx, user, amount)
	case payload.ActionWithdraw:
		result, err = wallet.Withdraw(ctx, user, amount)
	case payload.ActionTransfer:
		result, err = wallet.Transfer(ctx, user, toUser, amount)
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s accepted: %s\n", action, result.Link)

	if submitFlags.Wait <= 0 {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, submitFlags.Wait)
	defer cancel()
	statuses, err := wallet.WaitForCommit(waitCtx, result.BatchIDs, 0)
	if err != nil {
		return err
	}
	if msg, rejected := client.FirstRejection(statuses); rejected {
		return fmt.Errorf("%s rejected: %s", action, msg)
	}
	if !client.AllCommitted(statuses) {
		return fmt.Errorf("%s not committed: %v", action, statuses)
	}
	logx.Info("CLI", fmt.Sprintf("%s committed: %v", action, result.BatchIDs))
	fmt.Printf("%s committed\n", action)
	return nil
}

func runBalance(ctx context.Context, user string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	wallet, _, err := newWalletClient(clientFlags)
	if err != nil {
		return err
	}
	balance, err := wallet.Balance(ctx, user)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", user, balance.Dec())
	return nil
}
