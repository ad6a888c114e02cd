// Package main contains Mage build targets for evidence-engine developer tooling.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// projectDirs lists the working directories the pipeline expects.
var projectDirs = []string{
	"knowledge/corpus",
	"knowledge/index",
	"output/sessions",
	".secrets",
}

// Init creates the project directory structure for the pipeline.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "evidence-engine"
	cmdPkg  = "./cmd/evidence-engine"
)

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	// FTS5 is behind a build tag in go-sqlite3.
	if err := sh.RunV("go", "build", "-tags", "sqlite_fts5", "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests.
func Test() error {
	return sh.RunV("go", "test", "-tags", "sqlite_fts5", "./...")
}

// Vet runs go vet over the module.
func Vet() error {
	return sh.RunV("go", "vet", "-tags", "sqlite_fts5", "./...")
}

// Check runs Vet and Test.
func Check() {
	mg.SerialDeps(Vet, Test)
}

// Stats prints Go line counts per package and the number of corpus
// documents and exported sessions.
func Stats() error {
	pkgs, err := packageLines("internal", "cmd", "pkg")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(pkgs))
	for name := range pkgs {
		names = append(names, name)
	}
	sort.Strings(names)

	var prod, test int
	fmt.Printf("%-32s %8s %8s\n", "package", "code", "tests")
	for _, name := range names {
		c := pkgs[name]
		fmt.Printf("%-32s %8d %8d\n", name, c.code, c.test)
		prod += c.code
		test += c.test
	}
	fmt.Printf("%-32s %8d %8d\n", "total", prod, test)

	docs, err := countFiles("knowledge/corpus", ".yaml", ".yml")
	if err != nil {
		return err
	}
	sessions, err := countFiles("output/sessions", ".yaml", ".yml", ".json")
	if err != nil {
		return err
	}
	fmt.Printf("\nCorpus documents:  %d\n", docs)
	fmt.Printf("Exported sessions: %d\n", sessions)
	return nil
}

type lineCount struct {
	code, test int
}

// packageLines counts non-blank Go lines per package directory under roots.
func packageLines(roots ...string) (map[string]lineCount, error) {
	counts := make(map[string]lineCount)
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.IsDir() || filepath.Ext(path) != ".go" {
				return nil
			}
			n, err := nonBlankLines(path)
			if err != nil {
				return err
			}
			pkg := filepath.ToSlash(filepath.Dir(path))
			c := counts[pkg]
			if strings.HasSuffix(path, "_test.go") {
				c.test += n
			} else {
				c.code += n
			}
			counts[pkg] = c
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return counts, nil
}

func nonBlankLines(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	n := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n, nil
}

// countFiles counts files under root with one of exts. A missing root
// counts as zero.
func countFiles(root string, exts ...string) (int, error) {
	n := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() && slices.Contains(exts, filepath.Ext(path)) {
			n++
		}
		return nil
	})
	return n, err
}
