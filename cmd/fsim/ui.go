package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"finsim/internal/questions"
	"finsim/internal/session"

	"github.com/fatih/color"
)

var (
	accent  = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	danger  = color.New(color.FgRed)
	neutral = color.New(color.Faint)
)

func printSuccess(msg string) { success.Fprintln(os.Stdout, msg) }
func printWarn(msg string)    { warn.Fprintln(os.Stdout, msg) }
func printInfo(msg string)    { neutral.Fprintln(os.Stdout, msg) }

func promptFloat(label string) (float64, error) {
	reader := bufio.NewReader(os.Stdin)
	for attempt := 0; attempt < 3; attempt++ {
		fmt.Printf("%s: ", label)
		line, err := reader.ReadString('\n')
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
		if err != nil || v < 0 {
			printWarn("Enter a non-negative number.")
			continue
		}
		return v, nil
	}
	return 0, fmt.Errorf("no valid value for %s", strings.ToLower(label))
}

// renderSession prints the scoreboard sorted by equity, richest first.
func renderSession(sess *session.Session) {
	accent.Printf("\nSession %s", sess.ID)
	neutral.Printf("  [%s]\n", sess.Status)

	companies := make([]*session.Company, 0, len(sess.Companies))
	for _, c := range sess.Companies {
		companies = append(companies, c)
	}
	sort.Slice(companies, func(i, j int) bool {
		a, b := companies[i].Latest(), companies[j].Latest()
		if a.Equity != b.Equity {
			return a.Equity > b.Equity
		}
		return companies[i].Name < companies[j].Name
	})

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMPANY\tCASH\tINVENTORY\tDEBT\tEQUITY\tNET INCOME\tMARGIN")
	for _, c := range companies {
		r := c.Latest()
		fmt.Fprintf(w, "%s\t%s\t%.0f\t%s\t%s\t%s\t%s\n",
			c.Name,
			money(r.Cash),
			r.Inventory,
			money(r.Debt),
			money(r.Equity),
			money(r.NetIncome),
			percent(r.NetMargin),
		)
	}
	w.Flush()

	if sess.Status == session.StatusFinished {
		success.Printf("\nGame over. %s takes it.\n", companies[0].Name)
	}
	fmt.Println()
}

// renderReport prints the full income statement for one company's latest
// quarter, profit lines green, losses red.
func renderReport(c *session.Company) {
	r := c.Latest()
	accent.Printf("\n%s, Q%d\n", c.Name, r.Quarter)

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Revenue\t%s\n", money(r.Revenue))
	fmt.Fprintf(w, "COGS\t%s\n", money(-r.COGS))
	fmt.Fprintf(w, "Gross profit\t%s\n", money(r.GrossProfit))
	fmt.Fprintf(w, "Operating expenses\t%s\n", money(-r.OperatingExpenses))
	fmt.Fprintf(w, "EBIT\t%s\n", money(r.EBIT))
	fmt.Fprintf(w, "Taxes\t%s\n", money(-r.Taxes))
	w.Flush()

	line := fmt.Sprintf("Net income      %s  (%s margin)", money(r.NetIncome), percent(r.NetMargin))
	if r.NetIncome >= 0 {
		success.Println(line)
	} else {
		danger.Println(line)
	}

	fmt.Printf("Cash %s  Inventory %.0f  Debt %s  Equity %s  Current ratio %s\n",
		money(r.Cash), r.Inventory, money(r.Debt), money(r.Equity), ratio(r.CurrentRatio))
}

func renderQuestion(q *questions.Question, selected string) {
	accent.Printf("\n%s\n\n", q.Prompt)
	for _, opt := range q.Options {
		marker := " "
		if opt.ID == selected {
			marker = ">"
		}
		fmt.Printf(" %s %s) %s\n", marker, opt.ID, opt.Text)
	}
	fmt.Println()
	if selected == "" {
		printInfo("Answer with `fsim answer <option>`.")
	} else {
		printInfo("Current answer: " + selected + ". Re-answer any time before the close.")
	}
}

func money(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%.2f", sign, v)
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func ratio(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
