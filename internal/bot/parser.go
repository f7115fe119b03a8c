package bot

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// amountPattern matches "+100", "-50.5", "+12,5 coffee" and "+12,5 coffee 3".
var amountPattern = regexp.MustCompile(`^([+-])\s*(\d+(?:[.,]\d+)?)(?:\s+(\S+)(?:\s+(\d+(?:[.,]\d+)?))?)?$`)

// AmountLine is a parsed journal entry message.
type AmountLine struct {
	Amount   core.Money
	Label    string
	Quantity *decimal.Decimal
}

// ParseAmountLine recognizes an entry message. ok is false when text is not
// shaped like an entry at all; err is set when it is but the values are bad.
func ParseAmountLine(text string) (line AmountLine, ok bool, err error) {
	m := amountPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return AmountLine{}, false, nil
	}

	line.Amount, err = core.ParseAmount(m[1] + m[2])
	if err != nil {
		return AmountLine{}, true, err
	}
	line.Label = m[3]
	if line.Label == core.Uncategorized {
		return AmountLine{}, true, core.ErrReservedLabel
	}
	if m[4] != "" {
		q, err := core.ParseQuantity(m[4])
		if err != nil {
			return AmountLine{}, true, err
		}
		line.Quantity = &q
	}
	return line, true, nil
}

// Command is a slash command split into its name and arguments.
type Command struct {
	Name string
	Args []string
}

// ParseCommand splits "/name@bot arg1 arg2". ok is false for non-commands.
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{}, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return Command{}, false
	}
	name, _, _ := strings.Cut(fields[0], "@")
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: fields[1:]}, true
}

// Arg returns the i-th argument or "".
func (c Command) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// Rest joins the arguments from i on.
func (c Command) Rest(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

// scopeAll reports whether the first argument asks for the whole history.
func (c Command) scopeAll() bool {
	return strings.EqualFold(c.Arg(0), core.ScopeAll)
}

// parsePositive reads a positive count, capped at max.
func parsePositive(s string, max int) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return min(n, max), true
}
