package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rongwang/tripsync/internal/gateway"
	"github.com/rongwang/tripsync/internal/service"
	"github.com/spf13/cobra"
)

func proposalsCmd(flags *globalFlags) *cobra.Command {
	var tripID string

	cmd := &cobra.Command{
		Use:   "proposals",
		Short: "List, vote on and cancel a trip's flight proposals",
	}
	cmd.PersistentFlags().StringVar(&tripID, "trip", "", "Trip ID")
	_ = cmd.MarkPersistentFlagRequired("trip")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the ranked proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, flags, tripID, func(ctx context.Context, e *service.Engine) error {
				return nil
			})
		},
	})

	var (
		proposalID int64
		rank       int
		clearRank  bool
	)
	vote := &cobra.Command{
		Use:   "vote",
		Short: "Rank a proposal (1 = most preferred) or clear your ranking",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !clearRank && rank < 1 {
				return errors.New("--rank must be at least 1 (or pass --clear)")
			}
			return withEngine(cmd, flags, tripID, func(ctx context.Context, e *service.Engine) error {
				if clearRank {
					return e.Vote(ctx, proposalID, nil)
				}
				return e.Vote(ctx, proposalID, &rank)
			})
		},
	}
	vote.Flags().Int64Var(&proposalID, "id", 0, "Proposal ID")
	vote.Flags().IntVar(&rank, "rank", 0, "Rank to submit")
	vote.Flags().BoolVar(&clearRank, "clear", false, "Remove your ranking")
	_ = vote.MarkFlagRequired("id")
	cmd.AddCommand(vote)

	var cancelID int64
	cancel := &cobra.Command{
		Use:   "cancel",
		Short: "Cancel a proposal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, flags, tripID, func(ctx context.Context, e *service.Engine) error {
				return e.Cancel(ctx, cancelID)
			})
		},
	}
	cancel.Flags().Int64Var(&cancelID, "id", 0, "Proposal ID")
	_ = cancel.MarkFlagRequired("id")
	cmd.AddCommand(cancel)

	return cmd
}

// withEngine loads the trip, runs op and prints the resulting list
func withEngine(cmd *cobra.Command, flags *globalFlags, tripID string, op func(context.Context, *service.Engine) error) error {
	_, logger, gw, err := setup(flags)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	engine := service.NewEngine(gw, tripID, logger)
	defer engine.Close()

	if err := engine.Refresh(ctx); err != nil {
		return fmt.Errorf("load proposals: %s", gateway.UserMessage(err))
	}
	if err := op(ctx, engine); err != nil {
		return fmt.Errorf("%s (%w)", gateway.UserMessage(err), err)
	}
	engine.Wait()

	return printState(cmd.OutOrStdout(), engine.State())
}

func printState(out io.Writer, state service.ViewState) error {
	switch state.Status {
	case service.StatusError:
		_, err := fmt.Fprintln(out, state.Message)
		return err
	case service.StatusEmpty:
		_, err := fmt.Fprintln(out, "No flight proposals yet.")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROUTE\tAIRLINE\tFLIGHT\tDEPARTS\tAVG\tYOURS\tPROPOSED BY")
	for _, p := range state.Proposals {
		yours := "-"
		if p.CurrentUserRanking != nil {
			yours = fmt.Sprintf("%d", p.CurrentUserRanking.Rank)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.RouteText(), p.Airline, p.FlightNumber, p.DepartAt.Display(),
			p.AverageDisplay(), yours, p.Proposer)
	}
	return w.Flush()
}
