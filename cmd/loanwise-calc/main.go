// Command loanwise-calc prints the installment, schedule and the effect of an
// extra monthly payment for a loan given on the command line.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"loanwise/internal/core"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "loanwise-calc:", err)
		os.Exit(2)
	}
}

type report struct {
	EMI        decimal.Decimal           `json:"emi"`
	Schedule   core.ScheduleResult       `json:"schedule"`
	Comparison *core.RepaymentComparison `json:"comparison,omitempty"`
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("loanwise-calc", flag.ContinueOnError)
	fs.SetOutput(out)
	principalFlag := fs.String("principal", "", "loan principal, e.g. 100000 or 100000,50")
	rateFlag := fs.String("rate", "0", "annual interest rate in percent")
	months := fs.Int("months", 0, "tenure in months")
	extraFlag := fs.String("extra", "", "optional extra payment per month")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	principal, err := core.ParseAmount(*principalFlag)
	if err != nil {
		return fmt.Errorf("-principal %q: %w", *principalFlag, err)
	}
	rate, err := core.ParseRate(*rateFlag)
	if err != nil {
		return fmt.Errorf("-rate %q: %w", *rateFlag, err)
	}
	extra := decimal.Zero
	if *extraFlag != "" {
		if extra, err = core.ParseAmount(*extraFlag); err != nil {
			return fmt.Errorf("-extra %q: %w", *extraFlag, err)
		}
	}

	emi, err := core.CalculateEMI(principal, rate, *months)
	if err != nil {
		return err
	}
	terms := core.Terms{Balance: principal, AnnualRate: rate, Installment: emi, TenureMonths: *months}
	sched, err := core.BuildSchedule(terms, decimal.Zero)
	if err != nil {
		return err
	}
	rep := report{EMI: emi, Schedule: sched}
	if extra.IsPositive() {
		cmp, err := core.CompareRepayment(terms, extra)
		if err != nil {
			return err
		}
		rep.Comparison = &cmp
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return printTable(out, rep)
}

func printTable(out io.Writer, rep report) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Installment:\t%s\t\n", rep.EMI.StringFixed(2))
	fmt.Fprintf(tw, "Total interest:\t%s\t\n", rep.Schedule.TotalInterestPaid.StringFixed(2))
	fmt.Fprintf(tw, "Total paid:\t%s\t\n\n", rep.Schedule.TotalPayment.StringFixed(2))

	fmt.Fprintln(tw, "Month\tPayment\tInterest\tPrincipal\tBalance\t")
	for _, e := range rep.Schedule.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t\n", e.Month,
			e.Payment.StringFixed(2), e.Interest.StringFixed(2),
			e.Principal.StringFixed(2), e.RemainingBalance.StringFixed(2))
	}

	if c := rep.Comparison; c != nil {
		fmt.Fprintf(tw, "\nWith %s extra per month:\t\t\n", c.Accelerated.ExtraPayment.StringFixed(2))
		fmt.Fprintf(tw, "Monthly outlay:\t%s\t\n", c.NewMonthlyOutlay.StringFixed(2))
		fmt.Fprintf(tw, "Paid off in:\t%d months\t\n", c.Accelerated.PayoffMonths)
		fmt.Fprintf(tw, "Interest saved:\t%s\t\n", c.InterestSaved.StringFixed(2))
		fmt.Fprintf(tw, "Time saved:\t%d months\t\n", c.TimeSavedMonths)
	}
	return tw.Flush()
}
