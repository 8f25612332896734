package timetable

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mode selects which ledger sections a report contains.
type Mode string

const (
	ModeFirst  Mode = "first"
	ModeSecond Mode = "second"
	ModeAuto   Mode = "auto"
	ModeAnnual Mode = "annual"
	ModeBoth   Mode = "both"
	ModeAll    Mode = "all"
)

var modeAliases = map[string]Mode{
	"first": ModeFirst, "前期": ModeFirst,
	"second": ModeSecond, "後期": ModeSecond,
	"auto": ModeAuto, "": ModeAuto,
	"annual": ModeAnnual, "年間": ModeAnnual,
	"both": ModeBoth,
	"all":  ModeAll, "全部": ModeAll,
}

func ParseMode(s string) (Mode, error) {
	m, ok := modeAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown report mode %q", s)
	}
	return m, nil
}

const (
	totalLabel = "総欠時 : "
	separator  = "――――――――――"
)

type section struct {
	title  string
	ledger Ledger
}

// RenderReport renders absence counts laid out on the grid. Only ModeAuto
// depends on now.
func RenderReport(grid Grid, ls Ledgers, mode Mode, now time.Time, c Cutover) string {
	var parts []string
	for _, sec := range sections(ls, mode, now, c) {
		parts = append(parts, renderSection(grid, sec))
	}
	return strings.Join(parts, "\n"+separator+"\n")
}

func sections(ls Ledgers, mode Mode, now time.Time, c Cutover) []section {
	if !ls.Split {
		return []section{{ledger: ls.Single}}
	}
	first := section{title: SemesterFirst.String(), ledger: ls.First}
	second := section{title: SemesterSecond.String(), ledger: ls.Second}
	annual := section{title: "年間", ledger: ls.Annual()}

	switch mode {
	case ModeFirst:
		return []section{first}
	case ModeSecond:
		return []section{second}
	case ModeAnnual:
		return []section{annual}
	case ModeBoth:
		return []section{first, second}
	case ModeAll:
		return []section{first, second, annual}
	default:
		if c.FirstHalf(now) {
			return []section{first}
		}
		return []section{second}
	}
}

func renderSection(grid Grid, sec section) string {
	var b strings.Builder
	if sec.title != "" {
		b.WriteString("【" + sec.title + "】\n")
	}
	for i := range grid {
		s := Slot(i)
		if s.Period() == 0 {
			b.WriteString(DayNames[s.Day()] + "\n")
		}
		b.WriteString(s.PeriodLabel())
		if count, ok := sec.ledger[grid[i]]; ok {
			b.WriteString(" " + grid[i] + " : " + strconv.Itoa(count))
		}
		b.WriteString("\n")
	}
	b.WriteString(totalLabel + strconv.Itoa(sec.ledger.Total()))
	return b.String()
}

// RenderTimetable renders the grid by day, marking empty slots with "-".
// today is a grid day index; pass -1 for no highlight.
func RenderTimetable(grid Grid, today int) string {
	var b strings.Builder
	for day := 0; day < Days; day++ {
		if day > 0 {
			b.WriteString("\n")
		}
		b.WriteString("【" + DayNames[day] + "】")
		if day == today {
			b.WriteString(" ◀ 今日")
		}
		b.WriteString("\n")
		for _, s := range DaySlots(day) {
			name := grid[s]
			if name == Empty {
				name = "-"
			}
			fmt.Fprintf(&b, "%s %s (%s)\n", s.PeriodLabel(), name, s.Key())
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// HighlightDay returns the grid day for t, or -1 on weekends.
func HighlightDay(t time.Time) int {
	d, ok := DayIndex(t.Weekday())
	if !ok {
		return -1
	}
	return d
}
