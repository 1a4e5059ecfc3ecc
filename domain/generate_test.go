package domain

import (
	"bufio"
	"os"
	"strings"
	"testing"
)

// go:generate の `go tool mockgen` はgo.modのtoolディレクティブを必要とします。
func TestGoMod_DeclaresMockgenTool(t *testing.T) {
	f, err := os.Open("../go.mod")
	if err != nil {
		t.Fatalf("open go.mod: %v", err)
	}
	defer f.Close()

	found := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.Join(strings.Fields(sc.Text()), " ") == "tool go.uber.org/mock/mockgen" {
			found = true
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("read go.mod: %v", err)
	}
	if !found {
		t.Errorf("go.mod has no tool directive for go.uber.org/mock/mockgen")
	}
}
