package catalog

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"unicode/utf8"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/eliseohh/jikanwaribot/internal/timetable"
)

const (
	MaxFileBytes      = 64 * 1024
	MaxCoursesPerFile = 200
	MaxNameChars      = 40
)

// File is one catalog source file.
type File struct {
	Path    string
	Courses []timetable.Entry
}

type manifest struct {
	Courses []course `toml:"course"`
}

type course struct {
	Name    string `toml:"name"`
	Credit  int    `toml:"credit"`
	Day1    *int   `toml:"day1"`
	Day2    *int   `toml:"day2"`
	Period  *int   `toml:"period"`
	Offered []int  `toml:"offered"`
}

func ParseFile(path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, content)
}

// Parse decodes and validates catalog TOML. Unknown keys are rejected.
func Parse(path string, content []byte) (*File, error) {
	if len(content) > MaxFileBytes {
		return nil, fmt.Errorf("validation error: file size %d exceeds limit %d", len(content), MaxFileBytes)
	}

	var m manifest
	dec := toml.NewDecoder(bytes.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if len(m.Courses) == 0 {
		return nil, fmt.Errorf("validation error: no [[course]] entries")
	}
	if len(m.Courses) > MaxCoursesPerFile {
		return nil, fmt.Errorf("validation error: too many courses (%d > %d)", len(m.Courses), MaxCoursesPerFile)
	}

	f := &File{Path: path}
	seen := make(map[string]bool)
	for i, c := range m.Courses {
		e, err := c.entry()
		if err != nil {
			return nil, fmt.Errorf("validation error: course %d: %w", i+1, err)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("validation error: course %q declared twice", e.Name)
		}
		seen[e.Name] = true
		f.Courses = append(f.Courses, e)
	}

	// Cross-field rules live in the catalog itself.
	if _, err := timetable.NewCatalog(f.Courses); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	return f, nil
}

func (c course) entry() (timetable.Entry, error) {
	if c.Name == "" {
		return timetable.Entry{}, fmt.Errorf("missing name")
	}
	if n := utf8.RuneCountInString(c.Name); n > MaxNameChars {
		return timetable.Entry{}, fmt.Errorf("name length %d exceeds limit %d", n, MaxNameChars)
	}

	e := timetable.Entry{Name: c.Name, Credit: c.Credit}
	switch c.Credit {
	case timetable.CreditDouble:
		if c.Day1 == nil || c.Day2 == nil || c.Period == nil {
			return e, fmt.Errorf("%q: 4-credit courses need day1, day2 and period", c.Name)
		}
		if len(c.Offered) > 0 {
			return e, fmt.Errorf("%q: 4-credit courses are offered at their canonical slots only", c.Name)
		}
		e.Day1, e.Day2, e.Period = *c.Day1, *c.Day2, *c.Period
	case timetable.CreditSingle:
		if c.Day2 != nil {
			return e, fmt.Errorf("%q: day2 is only valid for 4-credit courses", c.Name)
		}
		if c.Day1 != nil {
			e.Day1 = *c.Day1
		}
		if c.Period != nil {
			e.Period = *c.Period
		}
	default:
		return e, fmt.Errorf("%q: credit must be %d or %d", c.Name, timetable.CreditSingle, timetable.CreditDouble)
	}

	for _, key := range c.Offered {
		s, err := timetable.SlotFromKey(strconv.Itoa(key))
		if err != nil {
			return e, fmt.Errorf("%q: %w", c.Name, err)
		}
		e.Offered = append(e.Offered, s)
	}
	return e, nil
}
