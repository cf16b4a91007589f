package cli

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/mmynk/receiptsplit/internal/calculator"
	"github.com/mmynk/receiptsplit/internal/models"
)

// Render writes a plain-text view of the session: items, every participant's
// breakdown, the summary and who owes the owner what. currentID marks the
// participant this device acts as.
func Render(w io.Writer, sess *models.Session, currentID string) error {
	if sess == nil {
		_, err := io.WriteString(w, "no session loaded\n")
		return err
	}

	breakdowns := calculator.Calculate(sess)
	summary := calculator.Summarize(sess, breakdowns)
	edges := calculator.SettleUp(sess, breakdowns)

	var b strings.Builder
	fmt.Fprintf(&b, "Session %s [%s, step %d]\n", sess.ID, sess.Status, sess.HostStep)
	if sess.LastUpdatedBy != "" {
		fmt.Fprintf(&b, "Last edit by %s\n", sess.LastUpdatedBy)
	}

	b.WriteString("\nItems\n")
	if len(sess.Items) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, it := range sess.Items {
		fmt.Fprintf(&b, "  %-24s %3d x %10s  %s\n", it.Name, it.Quantity, money(it.Price), it.Mode)
	}

	b.WriteString("\nParticipants\n")
	fmt.Fprintf(&b, "  %-24s %10s %10s %10s\n", "", "subtotal", "charges", "total")
	for _, p := range sess.Participants {
		marker := " "
		if p.ID == currentID {
			marker = "*"
		}
		label := p.Name
		if p.Role == models.RoleOwner {
			label += " (owner)"
		}
		bd := breakdowns[p.ID]
		fmt.Fprintf(&b, "%s %-24s %10s %10s %10s\n", marker, label, money(bd.Subtotal), money(bd.ChargesTotal), money(bd.Total))
	}

	b.WriteString("\nSummary\n")
	fmt.Fprintf(&b, "  %-12s %10s\n", "assigned", money(summary.AssignedSubtotal))
	fmt.Fprintf(&b, "  %-12s %10s\n", "unassigned", money(summary.UnassignedSubtotal))
	fmt.Fprintf(&b, "  %-12s %10s\n", "charges", money(summary.ChargesTotal))
	fmt.Fprintf(&b, "  %-12s %10s\n", "total", money(summary.GrandTotal))
	if sess.Total > 0 {
		fmt.Fprintf(&b, "  %-12s %10s  delta %+.2f\n", "receipt", money(sess.Total), clean(summary.VerificationDelta))
	}

	b.WriteString("\nSettle up\n")
	if len(edges) == 0 {
		b.WriteString("  nothing owed\n")
	}
	for _, e := range edges {
		fmt.Fprintf(&b, "  %s owes %s %s\n", participantName(sess, e.From), participantName(sess, e.To), money(e.Amount))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", clean(v))
}

// clean folds values that would print as -0.00 to zero.
func clean(v float64) float64 {
	if math.Abs(v) < 0.005 {
		return 0
	}
	return v
}

func participantName(sess *models.Session, id string) string {
	if p, ok := sess.FindParticipant(id); ok {
		return p.Name
	}
	return id
}
