// Package command implements the closed command variant set of
// spec.md §4.5: each recognized command name parses into its own
// struct, and the dispatcher is a name → parser map rather than a
// chain of conditionals, mirroring the original server's
// kCommandParsers table generalized from a C++ std::variant to a Go
// interface per spec.md §9's "variant types over polymorphism" note.
package command

import "strconv"

// parseCommandName splits "name rest-of-line" into its two halves,
// the same split the original's parse_command_name performs.
func parseCommandName(line string) (name, args string) {
	for i := 0; i < len(line); i++ {
		if line[i] == ' ' {
			return line[:i], line[i+1:]
		}
	}
	return line, ""
}

// parseItemAndQuantity parses the trailing word of args as an integer
// quantity; if it doesn't parse, the whole string is the item name and
// quantity defaults to 1. Carried from the original's
// parse_item_name_and_count, worked examples preserved as test cases:
//
//	"arrow 5"      -> ("arrow", 5)
//	"holy sword 1" -> ("holy sword", 1)
//	"arrow"        -> ("arrow", 1)
func parseItemAndQuantity(args string) (item string, qty int, ok bool) {
	if args == "" {
		return "", 0, false
	}
	spacePos := lastSpace(args)
	if spacePos >= 0 {
		if n, err := strconv.Atoi(args[spacePos+1:]); err == nil {
			return args[:spacePos], n, true
		}
	}
	return args, 1, true
}

// parseSellArgs parses "[immediate|auction] <item...> [<qty>] <price>"
// per spec.md §6's sell grammar, reusing parseItemAndQuantity for the
// item/quantity portion once the order-type keyword and trailing price
// have been peeled off. Carried from the original's parse_sell_order,
// extended with the immediate/auction keyword spec.md adds.
func parseSellArgs(args string) (orderType string, item string, qty, price int, ok bool) {
	orderType = "immediate"
	if rest, hasPrefix := stripPrefix(args, "auction "); hasPrefix {
		orderType = "auction"
		args = rest
	} else if rest, hasPrefix := stripPrefix(args, "immediate "); hasPrefix {
		args = rest
	}

	spacePos := lastSpace(args)
	if spacePos < 0 {
		return "", "", 0, 0, false
	}
	priceStr := args[spacePos+1:]
	p, err := strconv.Atoi(priceStr)
	if err != nil {
		return "", "", 0, 0, false
	}
	rest := args[:spacePos]

	item, qty, ok = parseItemAndQuantity(rest)
	if !ok {
		return "", "", 0, 0, false
	}
	return orderType, item, qty, p, true
}

func lastSpace(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ' ' {
			return i
		}
	}
	return -1
}

func stripPrefix(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return s, false
}
