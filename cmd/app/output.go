package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatMaybeUint(v *uint64) string {
	if v == nil {
		return "-"
	}
	return formatUint(*v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatIDs(ids []uint64) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, formatUint(id))
	}
	return strings.Join(parts, ",")
}

func printAgent(item domain.AgentIdentity) {
	printKV([][2]string{
		{"id", formatUint(item.ID)},
		{"did", item.DID},
		{"role", item.Role},
		{"owner", item.Owner.Hex()},
		{"public_key", item.PublicKey.String()},
		{"active", strconv.FormatBool(item.Active)},
		{"registered_at", formatTime(item.RegisteredAt)},
	})
}

func printFeedback(item domain.FeedbackRecord) {
	printKV([][2]string{
		{"id", formatUint(item.ID)},
		{"agent_id", formatUint(item.AgentID)},
		{"submitter", item.Submitter.Hex()},
		{"kind", string(item.Kind)},
		{"score", strconv.FormatInt(item.Score, 10)},
		{"comment", item.Comment},
		{"external_reference", item.ExternalReference},
		{"created_at", formatTime(item.CreatedAt)},
	})
}

func printSummary(item domain.ReputationSummary) {
	printKV([][2]string{
		{"agent_id", formatUint(item.AgentID)},
		{"total_score", strconv.FormatInt(item.TotalScore, 10)},
		{"feedback_count", formatUint(item.FeedbackCount)},
		{"average_score", strconv.FormatInt(item.AverageScore, 10)},
		{"trust_tier", fmt.Sprintf("%d (%s)", item.TrustTier, item.TierName)},
	})
}

func printAccount(item domain.TreasuryAccount) {
	printKV([][2]string{
		{"id", formatUint(item.ID)},
		{"agent_id", formatUint(item.AgentID)},
		{"owner", item.Owner.Hex()},
		{"balance", item.Balance.String()},
		{"active", strconv.FormatBool(item.Active)},
		{"created_at", formatTime(item.CreatedAt)},
	})
}

func printPayment(item domain.PaymentRecord) {
	printKV([][2]string{
		{"id", formatUint(item.ID)},
		{"from", formatUint(item.FromAccountID)},
		{"to", formatUint(item.ToAccountID)},
		{"amount", item.Amount.String()},
		{"purpose", item.Purpose},
		{"receipt_hash", item.ReceiptHash},
		{"created_at", formatTime(item.CreatedAt)},
	})
}

func printTotals(item domain.LedgerTotals) {
	printKV([][2]string{
		{"total_funded", item.TotalFunded.String()},
		{"total_withdrawn", item.TotalWithdrawn.String()},
		{"total_balance", item.TotalBalance.String()},
	})
}

func printOperators(items []common.Address) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{item.Hex()})
	}
	printTable([]string{"OPERATOR"}, rows)
}

func printEvents(items []domain.Event) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, eventRow(item))
	}
	printTable([]string{"SEQ", "KIND", "AGENT", "ACCOUNT", "REF", "AT"}, rows)
}

func eventRow(item domain.Event) []string {
	return []string{
		formatUint(item.Seq),
		string(item.Kind),
		formatMaybeUint(item.AgentID),
		formatMaybeUint(item.AccountID),
		formatMaybeUint(item.RefID),
		formatTime(item.OccurredAt),
	}
}
