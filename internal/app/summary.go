package app

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"giftbuyer/internal/gift"
)

type StartupSummary struct {
	Env          string
	SourceMode   string
	Capacity     int
	InvoicesFrom string
	Invoices     []gift.Invoice
	HTTPAddr     string
	Notify       bool
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	title := "STARTUP SUMMARY"
	fmt.Printf("%*s\n", 40+len(title)/2, title)
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[RUNTIME]")
	fmt.Printf("  Env:          %s\n", orDash(s.Env))
	fmt.Printf("  Source:       %s\n", orDash(s.SourceMode))
	fmt.Printf("  Capacity:     %d concurrent invoices\n", s.Capacity)
	fmt.Printf("  Admin API:    %s\n", orDash(s.HTTPAddr))
	fmt.Printf("  Notify:       %v\n", s.Notify)
	fmt.Println()

	fmt.Printf("[INVOICES] from %s\n", orDash(s.InvoicesFrom))
	if len(s.Invoices) == 0 {
		fmt.Println("  (none)")
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ID\tRECIPIENT\tPRICE\tAMOUNT\tMAX SUPPLY")
		for _, inv := range s.Invoices {
			fmt.Fprintf(w, "  %s\t%s:%d\t%s\t%d\t%s\n",
				inv.ID, inv.Recipient.Kind, inv.Recipient.ID, formatWindow(inv), inv.Amount, formatCeiling(inv.MaxSupply))
		}
		_ = w.Flush()
	}
	fmt.Println(strings.Repeat("=", 80))
}

func formatWindow(inv gift.Invoice) string {
	lo, hi := "*", "*"
	if inv.MinPrice != nil {
		lo = inv.MinPrice.String()
	}
	if inv.MaxPrice != nil {
		hi = inv.MaxPrice.String()
	}
	return "[" + lo + ", " + hi + "]"
}

func formatCeiling(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
