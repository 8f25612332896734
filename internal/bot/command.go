package bot

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/eliseohh/jikanwaribot/internal/timetable"
)

// usageError is a malformed command; its text is shown to the user.
type usageError string

func (e usageError) Error() string { return string(e) }

// CommandKind identifies a chat command. Anything that is not a known
// command parses as CmdUnknown.
type CommandKind int

const (
	CmdUnknown CommandKind = iota
	CmdStart
	CmdTimetable
	CmdSlot
	CmdSet
	CmdToday
	CmdAbsence
	CmdReport
)

var commandNames = map[string]CommandKind{
	"/start":     CmdStart,
	"/timetable": CmdTimetable,
	"/slot":      CmdSlot,
	"/set":       CmdSet,
	"/today":     CmdToday,
	"/absence":   CmdAbsence,
	"/report":    CmdReport,
}

func (k CommandKind) String() string {
	for name, kind := range commandNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// Command is a parsed chat message. Only the fields of its Kind are set.
type Command struct {
	Kind   CommandKind
	Slot   timetable.Slot
	Set    SetArgs
	Adjust AdjustArgs
	Mode   timetable.Mode
}

// ParseCommand turns message text into a Command. Free text and unknown
// commands yield CmdUnknown without error; malformed arguments of a known
// command are an error.
func ParseCommand(text string, defaultScale int) (Command, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{Kind: CmdUnknown}, nil
	}

	name, payload := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		name, payload = text[:i], strings.TrimSpace(text[i:])
	}
	// "/set@jikanwaribot" in group chats.
	name, _, _ = strings.Cut(strings.ToLower(name), "@")

	cmd := Command{Kind: commandNames[name]}
	var err error
	switch cmd.Kind {
	case CmdSlot:
		if payload == "" {
			return cmd, usageError("Usage: /slot <101..130|水3>")
		}
		cmd.Slot, err = ParseSlot(payload)
	case CmdSet:
		cmd.Set, err = ParseSet(payload)
	case CmdAbsence:
		cmd.Adjust, err = ParseAdjust(payload, defaultScale)
	case CmdReport:
		if cmd.Mode, err = timetable.ParseMode(payload); err != nil {
			err = usageError("Usage: /report [first|second|annual|both|all]")
		}
	}
	return cmd, err
}

var dayAliases = map[string]int{
	"月": 0, "mon": 0,
	"火": 1, "tue": 1,
	"水": 2, "wed": 2,
	"木": 3, "thu": 3,
	"金": 4, "fri": 4,
}

// ParseSlot accepts a slot key ("101".."130"), a day and cell number such
// as "水3", "wed3" or "wed 3" (cells count from 1 and each spans two
// periods), or a day and school period such as "水3限", which selects the
// cell labelled "3-4限".
func ParseSlot(s string) (timetable.Slot, error) {
	in := strings.ToLower(strings.Join(strings.Fields(s), ""))
	if in == "" {
		return 0, &timetable.InvalidSlotError{Slot: -1, Input: s}
	}
	if slot, err := timetable.SlotFromKey(in); err == nil {
		return slot, nil
	}

	for prefix, day := range dayAliases {
		rest, ok := strings.CutPrefix(in, prefix)
		if !ok {
			continue
		}
		rest, periodSuffix := strings.CutSuffix(rest, "限")
		n, err := strconv.Atoi(rest)
		if err != nil {
			break
		}
		if periodSuffix {
			if n < 1 || n > 2*timetable.PeriodsDay {
				break
			}
			return timetable.SlotAt(day, (n-1)/2), nil
		}
		if n < 1 || n > timetable.PeriodsDay {
			break
		}
		return timetable.SlotAt(day, n-1), nil
	}
	return 0, &timetable.InvalidSlotError{Slot: -1, Input: s}
}

// SetArgs is the parsed payload of /set.
type SetArgs struct {
	Slot timetable.Slot
	// Choice indexes the slot's option list when >= 0; Name is used otherwise.
	Choice int
	Name   string
	// Tag, when set, is the optionTag of the name the user was shown for
	// Choice.
	Tag string
}

// ParseSet parses "<slot> <option number|course name>". The slot may be
// written as two tokens ("wed 3").
func ParseSet(payload string) (SetArgs, error) {
	args := strings.Fields(payload)
	if len(args) < 2 {
		return SetArgs{}, usageError("Usage: /set <slot> <number|course>")
	}

	slot, err := ParseSlot(args[0])
	rest := args[1:]
	if err != nil && len(args) >= 3 {
		slot, err = ParseSlot(args[0] + args[1])
		rest = args[2:]
	}
	if err != nil {
		return SetArgs{}, err
	}

	value := strings.Join(rest, " ")
	if n, err := strconv.Atoi(value); err == nil {
		if n < 0 {
			return SetArgs{}, usageError("option number must not be negative")
		}
		return SetArgs{Slot: slot, Choice: n}, nil
	}
	return SetArgs{Slot: slot, Choice: -1, Name: value}, nil
}

// AdjustArgs is the parsed payload of /absence.
type AdjustArgs struct {
	Course string
	Sign   int
	Scale  int
}

// ParseAdjust parses "<course> <+|-> [scale]". Course names may contain
// spaces. scale defaults to defaultScale.
func ParseAdjust(payload string, defaultScale int) (AdjustArgs, error) {
	args := strings.Fields(payload)
	const usage = usageError("Usage: /absence <course> <+|-> [scale]")
	if len(args) < 2 {
		return AdjustArgs{}, usage
	}

	scale := defaultScale
	if n, err := strconv.Atoi(args[len(args)-1]); err == nil {
		scale = n
		args = args[:len(args)-1]
	}
	if len(args) < 2 || scale <= 0 {
		return AdjustArgs{}, usage
	}

	var sign int
	switch args[len(args)-1] {
	case "+":
		sign = 1
	case "-":
		sign = -1
	default:
		return AdjustArgs{}, usage
	}
	return AdjustArgs{
		Course: strings.Join(args[:len(args)-1], " "),
		Sign:   sign,
		Scale:  scale,
	}, nil
}
