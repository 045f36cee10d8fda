package negotiator

import (
	"fmt"
	"strings"

	"pcbuild-service/internal/models"
)

const systemInstructions = `You are a PC building assistant for an online electronics store.
You answer with a single JSON object and nothing else.
The object has exactly these keys: %s.
Each value is the full product name of one component as it would appear in a store listing.
Do not add comments, explanations, prices or extra keys.`

// SystemInstructions is sent with every oracle request.
func SystemInstructions() string {
	return fmt.Sprintf(systemInstructions, quotedCategories())
}

// InitialRequest frames the negotiation; it is the first user turn.
func InitialRequest(budget int64, band Band, currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Build a complete gaming PC for a budget of %s.\n", formatMoney(budget, currency))
	fmt.Fprintf(&b, "The total price must fall between %s and %s.\n",
		formatMoney(band.Lower, currency), formatMoney(band.Upper, currency))
	b.WriteString("Reply with JSON in this exact shape:\n")
	b.WriteString(exampleShape())
	return b.String()
}

// FormatCorrection asks the oracle to fix the structure of its last reply.
func FormatCorrection(pe *ParseError) string {
	var b strings.Builder
	b.WriteString("Your previous reply was not a valid build.\n")
	if pe != nil {
		if len(pe.Missing) > 0 {
			fmt.Fprintf(&b, "Missing keys: %s.\n", joinCategories(pe.Missing))
		}
		if len(pe.Empty) > 0 {
			fmt.Fprintf(&b, "Keys without a product name: %s.\n", joinCategories(pe.Empty))
		}
		if len(pe.Extra) > 0 {
			fmt.Fprintf(&b, "Keys that must be removed: %s.\n", strings.Join(pe.Extra, ", "))
		}
		if len(pe.Duplicate) > 0 {
			fmt.Fprintf(&b, "Keys given more than once: %s.\n", strings.Join(pe.Duplicate, ", "))
		}
		if pe.Reason != "" {
			fmt.Fprintf(&b, "Problem: %s.\n", pe.Reason)
		}
	}
	fmt.Fprintf(&b, "Reply with one JSON object using exactly the keys %s and a non-empty product name for each:\n", quotedCategories())
	b.WriteString(exampleShape())
	return b.String()
}

// PriceCorrection restates what resolved, names what did not and says which
// way the total has to move.
func PriceCorrection(eval *Evaluation, band Band, currency string) string {
	var b strings.Builder
	b.WriteString("Your previous build cannot be accepted.\n")

	if len(eval.Resolved) > 0 {
		b.WriteString("Components found in the store:\n")
		for _, c := range models.RequiredCategories {
			rc, ok := eval.Resolved[c]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "- %s: %s, %s\n", c, rc.Product.Title, formatMoney(rc.Price, currency))
		}
	}

	if len(eval.Unresolved) > 0 {
		fmt.Fprintf(&b, "No store product matches your choice for: %s. Suggest a different, widely sold product for each of these categories.\n",
			joinCategories(eval.Unresolved))
	}

	fmt.Fprintf(&b, "The current total is %s; the target range is %s to %s.\n",
		formatMoney(eval.Total, currency), formatMoney(band.Lower, currency), formatMoney(band.Upper, currency))
	switch band.Direction(eval.Total) {
	case "raise":
		b.WriteString("Raise the total: choose more expensive components.\n")
	case "lower":
		b.WriteString("Lower the total: choose cheaper components.\n")
	}

	b.WriteString("Reply with the full corrected build as one JSON object in the same shape:\n")
	b.WriteString(exampleShape())
	return b.String()
}

func quotedCategories() string {
	names := make([]string, len(models.RequiredCategories))
	for i, c := range models.RequiredCategories {
		names[i] = `"` + string(c) + `"`
	}
	return strings.Join(names, ", ")
}

func exampleShape() string {
	lines := make([]string, len(models.RequiredCategories))
	for i, c := range models.RequiredCategories {
		lines[i] = fmt.Sprintf(`  "%s": "<product name>"`, c)
	}
	return "{\n" + strings.Join(lines, ",\n") + "\n}"
}

// formatMoney renders 250000 as "250 000 KZT".
func formatMoney(amount int64, currency string) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)

	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)

	out := strings.Join(groups, " ")
	if neg {
		out = "-" + out
	}
	if currency != "" {
		out += " " + currency
	}
	return out
}
