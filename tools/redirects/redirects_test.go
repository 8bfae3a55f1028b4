package main

import (
	"bytes"
	"debug/elf"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFindRedirects(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "module github.com/example/kernel\n\ngo 1.21\n")
	writeFile(t, filepath.Join(root, "kernel", "kfmt", "panic.go"), `package kfmt

// Panic halts.
//
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {}

func helper() {}
`)
	writeFile(t, filepath.Join(root, "kernel", "kfmt", "panic_test.go"), `package kfmt

//go:redirect-from runtime.ignored
func testOnly() {}
`)
	writeFile(t, filepath.Join(root, "device", "serial", "uart.go"), "package serial\n")

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	if err = os.Chdir(root); err != nil {
		t.Fatal(err)
	}

	modPath, err := modulePath(".")
	if err != nil {
		t.Fatal(err)
	}
	if exp := "github.com/example/kernel"; modPath != exp {
		t.Fatalf("expected module path %q; got %q", exp, modPath)
	}

	goFiles, err := collectGoFiles("kernel", "device")
	if err != nil {
		t.Fatal(err)
	}
	if len(goFiles) != 2 {
		t.Fatalf("expected 2 non-test go files; got %v", goFiles)
	}

	redirects, err := findRedirects(modPath, goFiles)
	if err != nil {
		t.Fatal(err)
	}
	if len(redirects) != 1 {
		t.Fatalf("expected 1 redirect; got %d", len(redirects))
	}

	if exp := "runtime.gopanic"; redirects[0].from != exp {
		t.Errorf("expected redirect source %q; got %q", exp, redirects[0].from)
	}
	if exp := "github.com/example/kernel/kernel/kfmt.Panic"; redirects[0].to != exp {
		t.Errorf("expected redirect target %q; got %q", exp, redirects[0].to)
	}
}

func TestFindRedirectsMalformed(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "bad.go")
	writeFile(t, path, `package bad

//go:redirect-from
func Bad() {}
`)

	if _, err := findRedirects("example.com/m", []string{path}); err == nil {
		t.Fatal("expected an error for a directive without a target")
	}
}

func TestModulePathMissing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "go.mod"), "go 1.21\n")

	if _, err := modulePath(root); err == nil {
		t.Fatal("expected an error for a go.mod without a module line")
	}
}

func TestFindRedirectsOrdered(t *testing.T) {
	root := t.TempDir()

	var goFiles []string
	for _, name := range []string{"zeta", "alpha", "mid"} {
		path := filepath.Join(root, name+".go")
		writeFile(t, path, "package p\n\n//go:redirect-from runtime."+name+"\nfunc Fn_"+name+"() {}\n")
		goFiles = append(goFiles, path)
	}

	redirects, err := findRedirects("example.com/m", goFiles)
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, r := range redirects {
		got = append(got, r.from)
	}
	if exp := "runtime.alpha runtime.mid runtime.zeta"; strings.Join(got, " ") != exp {
		t.Fatalf("expected redirects sorted by target %q; got %q", exp, strings.Join(got, " "))
	}
}

func TestResolve(t *testing.T) {
	symbols := []elf.Symbol{
		{Name: "runtime.gopanic", Value: 0x1000},
		{Name: "example.com/m/kernel/kfmt.Panic", Value: 0x2000},
	}

	specs := []struct {
		r      redirect
		expErr string
	}{
		{redirect{from: "runtime.gopanic", to: "example.com/m/kernel/kfmt.Panic"}, ""},
		{redirect{from: "runtime.missing", to: "example.com/m/kernel/kfmt.Panic"}, `"runtime.missing"`},
		{redirect{from: "runtime.gopanic", to: "example.com/m/kernel/kfmt.Missing"}, `"example.com/m/kernel/kfmt.Missing"`},
	}

	for specIndex, spec := range specs {
		r := spec.r
		err := resolve([]*redirect{&r}, symbols)

		switch {
		case spec.expErr == "" && err != nil:
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
		case spec.expErr == "" && (r.fromAddr != 0x1000 || r.toAddr != 0x2000):
			t.Errorf("[spec %d] expected addresses (0x1000, 0x2000); got (0x%x, 0x%x)", specIndex, r.fromAddr, r.toAddr)
		case spec.expErr != "" && (err == nil || !strings.Contains(err.Error(), spec.expErr)):
			t.Errorf("[spec %d] expected an error mentioning %s; got %v", specIndex, spec.expErr, err)
		}
	}
}

func TestEncodeTable(t *testing.T) {
	redirects := []*redirect{
		{fromAddr: 0x1122, toAddr: 0x3344},
		{fromAddr: 0x5566, toAddr: 0x7788},
	}

	table, err := encodeTable(redirects, 32)
	if err != nil {
		t.Fatal(err)
	}

	exp := []byte{
		0x22, 0x11, 0, 0, 0, 0, 0, 0, 0x44, 0x33, 0, 0, 0, 0, 0, 0,
		0x66, 0x55, 0, 0, 0, 0, 0, 0, 0x88, 0x77, 0, 0, 0, 0, 0, 0,
	}
	if !bytes.Equal(table, exp) {
		t.Fatalf("expected table % x; got % x", exp, table)
	}

	if _, err = encodeTable(redirects, 31); err == nil {
		t.Fatal("expected an error when the table does not fit its section")
	}
}
