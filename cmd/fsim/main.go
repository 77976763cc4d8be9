package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	cl "finsim/internal/cli"
	"finsim/internal/config"
	"finsim/internal/sim"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "fsim",
		Short:        "FinSim CLI game client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newCreateCmd(&apiBase),
		newJoinCmd(),
		newLeaveCmd(),
		newStatusCmd(&apiBase),
		newReportCmd(&apiBase),
		newQuestionCmd(&apiBase),
		newDecideCmd(&apiBase),
		newAnswerCmd(&apiBase),
		newCloseCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newCreateCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create <company name> [company name...]",
		Short: "Create a new game session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := requestContext(cmd)
			defer cancel()

			sess, err := newClient(apiBase).CreateSession(ctx, args)
			if err != nil {
				return err
			}
			state := cl.State{SessionID: sess.ID}
			if len(sess.Companies) == 1 {
				for id := range sess.Companies {
					state.CompanyID = id
				}
			}
			if err := cl.SaveState(state); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Session created. Join code %s", sess.JoinCode))
			renderSession(sess)
			if state.CompanyID == "" {
				printInfo("Pick your company with `fsim join " + sess.ID + " <company-id>`.")
			}
			return nil
		},
	}
}

func newJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <session-id> <company-id>",
		Short: "Point the CLI at a session and company",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.SaveState(cl.State{SessionID: args[0], CompanyID: args[1]}); err != nil {
				return err
			}
			printSuccess("Joined. Subsequent commands target " + args[1] + ".")
			return nil
		},
	}
}

func newLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Forget the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearState(); err != nil {
				return err
			}
			printSuccess("Session forgotten.")
			return nil
		},
	}
}

func newStatusCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status [session-id]",
		Short: "Show the session scoreboard",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, _, err := resolveTarget(args)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			sess, err := newClient(apiBase).GetSession(ctx, sessionID)
			if err != nil {
				return err
			}
			renderSession(sess)
			return nil
		},
	}
}

func newReportCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "report [company-id]",
		Short: "Show a company's latest income statement",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, companyID, err := resolveTarget(nil)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				companyID = args[0]
			}
			if companyID == "" {
				return fmt.Errorf("no company selected: pass a company id or run `fsim join`")
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			sess, err := newClient(apiBase).GetSession(ctx, sessionID)
			if err != nil {
				return err
			}
			company, ok := sess.Companies[companyID]
			if !ok {
				return fmt.Errorf("company %s not in session", companyID)
			}
			renderReport(company)
			return nil
		},
	}
}

func newQuestionCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "question",
		Short: "Show your company's tactical question for this quarter",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, companyID, err := resolveTarget(nil)
			if err != nil {
				return err
			}
			if companyID == "" {
				return fmt.Errorf("no company selected: run `fsim join` first")
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			client := newClient(apiBase)
			sess, err := client.GetSession(ctx, sessionID)
			if err != nil {
				return err
			}
			company, ok := sess.Companies[companyID]
			if !ok {
				return fmt.Errorf("company %s not in session", companyID)
			}
			if company.ActiveQuestionID == "" {
				printWarn("No question assigned right now.")
				return nil
			}
			question, err := client.GetQuestion(ctx, company.ActiveQuestionID)
			if err != nil {
				return err
			}
			renderQuestion(question, company.SelectedOptionID)
			return nil
		},
	}
}

func newDecideCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "decide",
		Short: "Submit production, price and marketing for the quarter",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, companyID, err := resolveTarget(nil)
			if err != nil {
				return err
			}
			if companyID == "" {
				return fmt.Errorf("no company selected: run `fsim join` first")
			}

			production, err := promptFloat("Production (units)")
			if err != nil {
				return err
			}
			price, err := promptFloat("Price ($/unit)")
			if err != nil {
				return err
			}
			marketing, err := promptFloat("Marketing spend ($)")
			if err != nil {
				return err
			}

			ctx, cancel := requestContext(cmd)
			defer cancel()

			client := newClient(apiBase)
			sess, err := client.GetSession(ctx, sessionID)
			if err != nil {
				return err
			}
			err = client.SubmitDecisions(ctx, sessionID, companyID, sess.CurrentQuarter, sim.Decisions{
				Production: production,
				Price:      price,
				Marketing:  marketing,
			})
			if err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Decisions locked in for %s.", sess.Status))
			return nil
		},
	}
}

func newAnswerCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "answer <option>",
		Short: "Answer the active question (A, B or C)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, companyID, err := resolveTarget(nil)
			if err != nil {
				return err
			}
			if companyID == "" {
				return fmt.Errorf("no company selected: run `fsim join` first")
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			client := newClient(apiBase)
			sess, err := client.GetSession(ctx, sessionID)
			if err != nil {
				return err
			}
			option := strings.ToUpper(strings.TrimSpace(args[0]))
			if err := client.SubmitAnswer(ctx, sessionID, companyID, sess.CurrentQuarter, option); err != nil {
				return err
			}
			printSuccess("Answer recorded. It takes effect when the quarter closes.")
			return nil
		},
	}
}

func newCloseCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close the current quarter for every company",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, _, err := resolveTarget(nil)
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			client := newClient(apiBase)
			sess, err := client.GetSession(ctx, sessionID)
			if err != nil {
				return err
			}
			closed, err := client.CloseQuarter(ctx, sessionID, sess.CurrentQuarter)
			if err != nil {
				return err
			}
			printSuccess("Quarter closed.")
			renderSession(closed)
			return nil
		},
	}
}

func resolveTarget(args []string) (sessionID, companyID string, err error) {
	if len(args) > 0 {
		return args[0], "", nil
	}
	state, err := cl.LoadState()
	if err != nil || state.SessionID == "" {
		return "", "", fmt.Errorf("no session selected: pass a session id or run `fsim join`")
	}
	return state.SessionID, state.CompanyID, nil
}
