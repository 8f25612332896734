package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliseohh/jikanwaribot/internal/catalog"
)

func main() {
	dir, err := os.MkdirTemp("", "test_catalog")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	// Case 1: Valid
	testParse(dir, "valid", `
[[course]]
name = "数学Ⅰ"
credit = 4
day1 = 0
day2 = 3
period = 0

[[course]]
name = "美術"
credit = 1
offered = [105, 129]
`, true)

	// Case 2: Double without days
	testParse(dir, "double_no_days", `
[[course]]
name = "化学"
credit = 4
period = 1
`, false)

	// Case 3: Unknown key
	testParse(dir, "unknown_key", `
[[course]]
name = "音楽"
credit = 1
room = "A1"
`, false)

	// Case 4: Name too long
	testParse(dir, "long_name", "[[course]]\nname = \""+strings.Repeat("長", catalog.MaxNameChars+1)+"\"\ncredit = 1\n", false)

	// Case 5: Slot key out of range
	testParse(dir, "bad_slot", `
[[course]]
name = "書道"
credit = 1
offered = [131]
`, false)

	fmt.Println("✔ ALL Catalog Constraint Tests Passed")
}

func testParse(dir, name, content string, expectSuccess bool) {
	path := filepath.Join(dir, name+".toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		panic(err)
	}

	f, err := catalog.ParseFile(path)
	if expectSuccess && err != nil {
		fmt.Printf("❌ %s failed unexpectedly: %v\n", name, err)
		os.Exit(1)
	}
	if !expectSuccess && err == nil {
		fmt.Printf("❌ %s succeeded unexpectedly (expected failure)\n", name)
		os.Exit(1)
	}
	if expectSuccess {
		fmt.Printf("✔ %s accepted: %d courses\n", name, len(f.Courses))
	} else {
		fmt.Printf("✔ %s rejected as expected: %v\n", name, err)
	}
}
