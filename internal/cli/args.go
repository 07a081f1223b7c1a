package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/uvguard/internal/hub"
)

// passthrough pulls uvguard's own long flags out of an argument list and
// keeps everything else, in order, for the external tool. Flags listed in
// forward are recorded and also kept.
type passthrough struct {
	strings map[string]*string
	lists   map[string]*[]string
	bools   map[string]*bool
	forward map[string]bool
	help    bool
}

func (p *passthrough) parse(args []string) ([]string, error) {
	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			rest = append(rest, args[i:]...)
			break
		}
		if arg == "-h" || arg == "--help" {
			p.help = true
			continue
		}
		if !strings.HasPrefix(arg, "--") {
			rest = append(rest, arg)
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")

		if dst, ok := p.bools[name]; ok {
			v := true
			if hasValue {
				parsed, err := strconv.ParseBool(value)
				if err != nil {
					return nil, fmt.Errorf("invalid value %q for --%s", value, name)
				}
				v = parsed
			}
			*dst = v
			if p.forward[name] {
				rest = append(rest, arg)
			}
			continue
		}

		str, isString := p.strings[name]
		list, isList := p.lists[name]
		if !isString && !isList {
			rest = append(rest, arg)
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("flag needs an argument: --%s", name)
			}
			i++
			value = args[i]
		}
		if isString {
			*str = value
		} else {
			*list = append(*list, value)
		}
		if p.forward[name] {
			rest = append(rest, "--"+name+"="+value)
		}
	}
	return rest, nil
}

// splitTargets separates the targets from the tail forwarded verbatim. The
// leading positionals are targets, and so is every hub:// identifier before
// a "--", wherever the uv flags put it.
func splitTargets(args []string) (targets, extra []string) {
	leading := true
	for i, arg := range args {
		if arg == "--" {
			return targets, append(extra, args[i:]...)
		}
		if strings.HasPrefix(arg, "-") {
			leading = false
		}
		if leading || hub.IsURI(arg) {
			targets = append(targets, arg)
			continue
		}
		extra = append(extra, arg)
	}
	return targets, extra
}
