package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// HandleCommand dispatches one inbound line for userID and returns the reply
// text. Lines without the command prefix are ignored with an empty reply.
func (b *Bot) HandleCommand(userID, text string) string {
	prefix := b.Prefix()
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, prefix) {
		return ""
	}

	fields := strings.Fields(strings.TrimPrefix(text, prefix))
	if len(fields) == 0 {
		return ""
	}

	reply, err := b.dispatch(userID, fields)
	b.stats.RecordCommand(err != nil)
	if err != nil {
		return renderError(err)
	}
	return reply
}

func (b *Bot) dispatch(userID string, fields []string) (string, error) {
	group := strings.ToLower(fields[0])
	args := fields[1:]

	switch group {
	case "coin", "crypto":
		return b.handleCoin(userID, args)
	case "admin":
		if !b.isOwner(userID) {
			return "You aren't allowed to do that", nil
		}
		return b.handleAdmin(args)
	default:
		return "", nil
	}
}

func (b *Bot) handleCoin(userID string, args []string) (string, error) {
	if len(args) == 0 {
		return b.coinUsage(), nil
	}

	sub := strings.ToLower(args[0])
	if b.isDisabled(sub) {
		return fmt.Sprintf("The %s command is disabled", sub), nil
	}

	switch sub {
	case "buy", "b":
		if len(args) < 3 {
			return fmt.Sprintf("Usage: %scoin buy <symbol> <cash>", b.Prefix()), nil
		}
		cash, err := decimal.NewFromString(args[2])
		if err != nil {
			return fmt.Sprintf("Couldn't parse cash amount %s", args[2]), nil
		}
		receipt, err := b.ledger.Buy(userID, args[1], cash)
		if err != nil {
			return "", err
		}
		return renderBuy(receipt), nil

	case "sell", "s":
		if len(args) < 3 {
			return fmt.Sprintf("Usage: %scoin sell <symbol> <amount[%%]>", b.Prefix()), nil
		}
		receipt, err := b.ledger.Sell(userID, args[1], args[2])
		if err != nil {
			return "", err
		}
		return renderSell(receipt), nil

	case "bal":
		if len(args) < 2 {
			return fmt.Sprintf("Usage: %scoin bal <symbol>", b.Prefix()), nil
		}
		view, err := b.ledger.BalanceOf(userID, args[1])
		if err != nil {
			return "", err
		}
		return renderPositionView(view), nil

	case "profile", "p":
		profile, err := b.ledger.Profile(userID)
		if err != nil {
			return "", err
		}
		return renderProfile(profile), nil

	case "history":
		entries, err := b.ledger.History(userID)
		if err != nil {
			return "", err
		}
		return renderHistory(entries), nil

	case "list":
		page := 1
		if len(args) > 1 {
			if n, err := strconv.Atoi(args[1]); err == nil {
				page = n
			}
		}
		return renderQuotePage(b.board.Pages(quotesPerPage), page), nil

	default:
		// coin <symbol> shows the quote card
		quote := b.board.Quote(args[0])
		if quote == nil {
			return fmt.Sprintf("Couldn't find %s", strings.ToUpper(args[0])), nil
		}
		return renderQuote(quote), nil
	}
}

func (b *Bot) handleAdmin(args []string) (string, error) {
	if len(args) == 0 {
		return fmt.Sprintf("Usage: %sadmin [status/boots/toggle/prefix/grant]", b.Prefix()), nil
	}

	switch strings.ToLower(args[0]) {
	case "status":
		return renderStats(b.stats.Snapshot()), nil

	case "boots":
		b.mu.RLock()
		times := append([]float64(nil), b.bootTimes...)
		b.mu.RUnlock()
		return renderBootTimes(times), nil

	case "toggle":
		if len(args) < 2 {
			return fmt.Sprintf("Usage: %sadmin toggle <command>", b.Prefix()), nil
		}
		command := strings.ToLower(args[1])
		disabled, err := b.toggleCommand(command)
		if err != nil {
			return "", err
		}
		if disabled {
			return fmt.Sprintf("Disabled the %s command", command), nil
		}
		return fmt.Sprintf("Enabled the %s command", command), nil

	case "prefix":
		if len(args) < 2 {
			return fmt.Sprintf("Usage: %sadmin prefix <prefix>", b.Prefix()), nil
		}
		if err := b.setPrefix(args[1]); err != nil {
			return "", err
		}
		return fmt.Sprintf("Prefix set to %s", args[1]), nil

	case "grant":
		if len(args) < 3 {
			return fmt.Sprintf("Usage: %sadmin grant <user> <amount>", b.Prefix()), nil
		}
		amount, err := decimal.NewFromString(args[2])
		if err != nil {
			return fmt.Sprintf("Couldn't parse amount %s", args[2]), nil
		}
		balance, err := b.ledger.Deposit(args[1], amount)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Granted $%s to %s, balance: $%s", amount.StringFixed(2), args[1], balance.StringFixed(2)), nil

	default:
		return fmt.Sprintf("Usage: %sadmin [status/boots/toggle/prefix/grant]", b.Prefix()), nil
	}
}

func (b *Bot) coinUsage() string {
	prefix := b.Prefix()
	return fmt.Sprintf(
		"Usage: %scoin [buy/sell/bal/profile/list/history] or %scoin [token]",
		prefix, prefix,
	)
}
