// Command redirects patches go:redirect-from directives into a linked kernel
// image. A directive placed above a function declaration
//
//	//go:redirect-from runtime.gopanic
//
// asks the rt0 code to overwrite the entry of runtime.gopanic with a jump to
// the annotated function. The linker reserves a .goredirectstbl section for
// the (source, target) address pairs; this tool fills it in.
//
// Usage, from the module root:
//
//	redirects count
//	redirects list
//	redirects populate-table kernel.bin
package main

import (
	"bufio"
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	directive    = "//go:redirect-from"
	tableSection = ".goredirectstbl"

	// tableEntrySize is the size of a (source, target) address pair.
	tableEntrySize = 16
)

// scanRoots are the directories, relative to the module root, that may
// contain redirect targets.
var scanRoots = []string{"kernel", "device"}

type redirect struct {
	// from is the symbol whose calls are redirected and to is the fully
	// qualified name of the annotated function.
	from, to string

	fromAddr, toAddr uint64
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[redirects] error: %s\n", err.Error())
	os.Exit(1)
}

// modulePath returns the module path declared in dir/go.mod.
func modulePath(dir string) (string, error) {
	f, err := os.Open(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if rest, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), "module "); ok {
			return strings.Trim(strings.TrimSpace(rest), `"`), nil
		}
	}
	if err = scanner.Err(); err != nil {
		return "", err
	}

	return "", errors.New("go.mod does not declare a module path")
}

// collectGoFiles returns the non-test Go sources below roots.
func collectGoFiles(roots ...string) ([]string, error) {
	var goFiles []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			switch {
			case err != nil:
				return err
			case d.IsDir():
				return nil
			case filepath.Ext(path) == ".go" && !strings.HasSuffix(path, "_test.go"):
				goFiles = append(goFiles, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return goFiles, nil
}

// findRedirects parses goFiles concurrently and returns their redirect
// directives ordered by target name. File paths must be relative to the
// module root so the package import path can be derived from them.
func findRedirects(modPath string, goFiles []string) ([]*redirect, error) {
	perFile := make([][]*redirect, len(goFiles))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, goFile := range goFiles {
		i, goFile := i, goFile
		g.Go(func() error {
			pkgPath := modPath + "/" + filepath.ToSlash(filepath.Dir(goFile))

			found, err := fileRedirects(pkgPath, goFile)
			perFile[i] = found
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var redirects []*redirect
	for _, found := range perFile {
		redirects = append(redirects, found...)
	}
	sort.Slice(redirects, func(i, j int) bool { return redirects[i].to < redirects[j].to })
	return redirects, nil
}

func fileRedirects(pkgPath, goFile string) ([]*redirect, error) {
	f, err := parser.ParseFile(token.NewFileSet(), goFile, nil, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	var redirects []*redirect
	for _, decl := range f.Decls {
		fnDecl, ok := decl.(*ast.FuncDecl)
		if !ok || fnDecl.Doc == nil || fnDecl.Recv != nil {
			continue
		}

		target := pkgPath + "." + fnDecl.Name.Name
		for _, comment := range fnDecl.Doc.List {
			if !strings.HasPrefix(comment.Text, directive) {
				continue
			}

			fields := strings.Fields(comment.Text)
			if len(fields) != 2 || fields[0] != directive {
				return nil, fmt.Errorf("%s: malformed %s directive for %q", goFile, directive, target)
			}

			redirects = append(redirects, &redirect{from: fields[1], to: target})
		}
	}

	return redirects, nil
}

// resolve fills in the addresses of both ends of every redirect.
func resolve(redirects []*redirect, symbols []elf.Symbol) error {
	addrs := make(map[string]uint64, len(symbols))
	for _, sym := range symbols {
		addrs[sym.Name] = sym.Value
	}

	for _, r := range redirects {
		r.fromAddr, r.toAddr = addrs[r.from], addrs[r.to]
		switch {
		case r.fromAddr == 0:
			return fmt.Errorf("could not locate address of %q", r.from)
		case r.toAddr == 0:
			return fmt.Errorf("could not locate address of %q", r.to)
		}
	}

	return nil
}

// encodeTable serializes the redirect table. It fails if the table does not
// fit in capacity bytes.
func encodeTable(redirects []*redirect, capacity uint64) ([]byte, error) {
	if need := uint64(len(redirects)) * tableEntrySize; need > capacity {
		return nil, fmt.Errorf("%d redirects need %d bytes; %s holds %d", len(redirects), need, tableSection, capacity)
	}

	var buf bytes.Buffer
	for _, r := range redirects {
		binary.Write(&buf, binary.LittleEndian, [2]uint64{r.fromAddr, r.toAddr})
	}
	return buf.Bytes(), nil
}

// populateTable resolves redirects against the symbols of imgFile and writes
// the table into its .goredirectstbl section.
func populateTable(redirects []*redirect, imgFile string) error {
	img, err := elf.Open(imgFile)
	if err != nil {
		return err
	}

	section := img.Section(tableSection)
	symbols, err := img.Symbols()
	img.Close()

	switch {
	case section == nil:
		return fmt.Errorf("%s: missing %s section", imgFile, tableSection)
	case err != nil:
		return fmt.Errorf("%s: %w", imgFile, err)
	}

	if err = resolve(redirects, symbols); err != nil {
		return fmt.Errorf("%s: %w", imgFile, err)
	}

	table, err := encodeTable(redirects, section.Size)
	if err != nil {
		return fmt.Errorf("%s: %w", imgFile, err)
	}

	f, err := os.OpenFile(imgFile, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteAt(table, int64(section.Offset))
	return err
}

func main() {
	flag.Parse()
	if _, err := os.Stat("go.mod"); err != nil {
		exit(errors.New("this tool must be run from the module root folder"))
	}

	cmd := flag.Arg(0)
	switch {
	case cmd == "":
		exit(errors.New("missing command"))
	case cmd == "populate-table" && flag.NArg() != 2:
		exit(errors.New("populate-table requires the path to the kernel image as an argument"))
	case cmd != "count" && cmd != "list" && cmd != "populate-table":
		exit(fmt.Errorf("unknown command %q", cmd))
	}

	modPath, err := modulePath(".")
	if err != nil {
		exit(err)
	}

	goFiles, err := collectGoFiles(scanRoots...)
	if err != nil {
		exit(err)
	}

	redirects, err := findRedirects(modPath, goFiles)
	if err != nil {
		exit(err)
	}

	switch cmd {
	case "count":
		fmt.Printf("%d", len(redirects))
	case "list":
		for _, r := range redirects {
			fmt.Printf("%s -> %s\n", r.from, r.to)
		}
	case "populate-table":
		if err = populateTable(redirects, flag.Arg(1)); err != nil {
			exit(err)
		}
	}
}
