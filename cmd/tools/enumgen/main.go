package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"
)

type enumValue struct {
	Const string
	Name  string
}

type enumType struct {
	Name   string
	Values []enumValue
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "enumgen: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fileFlag := flag.String("file", "", "go file declaring the enums")
	flag.Parse()

	fileName := strings.TrimSpace(*fileFlag)
	if fileName == "" {
		fileName = strings.TrimSpace(os.Getenv("GOFILE"))
	}
	if fileName == "" {
		return errors.New("missing source file; set GOFILE or pass -file")
	}
	fileName = filepath.Base(fileName)
	if filepath.Ext(fileName) != ".go" {
		return fmt.Errorf("source file must be a .go file: %s", fileName)
	}

	dir, err := os.Getwd()
	if err != nil {
		return err
	}

	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedSyntax |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedFiles |
			packages.NeedCompiledGoFiles,
		Dir: dir,
		ParseFile: func(fset *token.FileSet, filename string, src []byte) (*ast.File, error) {
			return parser.ParseFile(fset, filename, src, parser.ParseComments)
		},
	}
	pkgs, err := packages.Load(cfg, ".")
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		return errors.New("no packages found")
	}
	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return fmt.Errorf("type check failed: %s", pkg.Errors[0])
	}

	var target *ast.File
	for i, file := range pkg.Syntax {
		if i < len(pkg.CompiledGoFiles) && filepath.Base(pkg.CompiledGoFiles[i]) == fileName {
			target = file
			break
		}
	}
	if target == nil {
		return fmt.Errorf("file %s not found in package", fileName)
	}

	enums := collectEnums(target, pkg.TypesInfo)
	if len(enums) == 0 {
		return fmt.Errorf("no enum constants found in %s", fileName)
	}

	out, err := render(pkg.Name, enums)
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(fileName, ".go")
	return os.WriteFile(filepath.Join(dir, base+"_enum.go"), out, 0o644)
}

// collectEnums groups typed integer constants by their named type, keeping
// declaration order.
func collectEnums(file *ast.File, info *types.Info) []enumType {
	index := make(map[string]int)
	var enums []enumType
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.CONST {
			continue
		}
		for _, spec := range gen.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for _, ident := range vs.Names {
				obj, ok := info.Defs[ident].(*types.Const)
				if !ok {
					continue
				}
				named, ok := obj.Type().(*types.Named)
				if !ok {
					continue
				}
				basic, ok := named.Underlying().(*types.Basic)
				if !ok || basic.Info()&types.IsInteger == 0 {
					continue
				}
				typeName := named.Obj().Name()
				i, seen := index[typeName]
				if !seen {
					i = len(enums)
					index[typeName] = i
					enums = append(enums, enumType{Name: typeName})
				}
				enums[i].Values = append(enums[i].Values, enumValue{
					Const: ident.Name,
					Name:  strings.TrimPrefix(ident.Name, typeName),
				})
			}
		}
	}
	return enums
}

func render(pkgName string, enums []enumType) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("// Code generated by enumgen; DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n\n", pkgName)
	buf.WriteString("import (\n\t\"fmt\"\n\t\"strconv\"\n\t\"strings\"\n)\n\n")
	buf.WriteString("func normalizeEnumText(text []byte) string {\n")
	buf.WriteString("\treturn strings.ToLower(strings.NewReplacer(\"_\", \"\", \"-\", \"\", \" \", \"\").Replace(string(text)))\n")
	buf.WriteString("}\n")

	for _, e := range enums {
		writeEnum(&buf, e)
	}

	return format.Source(buf.Bytes())
}

func writeEnum(buf *bytes.Buffer, e enumType) {
	fmt.Fprintf(buf, "\nfunc (v %s) String() string {\n", e.Name)
	buf.WriteString("\tswitch v {\n")
	for _, val := range e.Values {
		fmt.Fprintf(buf, "\tcase %s:\n\t\treturn %q\n", val.Const, val.Name)
	}
	buf.WriteString("\t}\n")
	fmt.Fprintf(buf, "\treturn \"%s(\" + strconv.FormatInt(int64(v), 10) + \")\"\n", e.Name)
	buf.WriteString("}\n\n")

	fmt.Fprintf(buf, "func (v %s) MarshalText() ([]byte, error) {\n", e.Name)
	buf.WriteString("\treturn []byte(v.String()), nil\n")
	buf.WriteString("}\n\n")

	fmt.Fprintf(buf, "func (v *%s) UnmarshalText(text []byte) error {\n", e.Name)
	buf.WriteString("\tswitch normalizeEnumText(text) {\n")
	for _, val := range e.Values {
		fmt.Fprintf(buf, "\tcase %q:\n\t\t*v = %s\n", strings.ToLower(val.Name), val.Const)
	}
	fmt.Fprintf(buf, "\tdefault:\n\t\treturn fmt.Errorf(\"unknown %s: %%q\", text)\n", e.Name)
	buf.WriteString("\t}\n\treturn nil\n}\n\n")

	fmt.Fprintf(buf, "// Parse%s parses the name of a %s, ignoring case and separators.\n", e.Name, e.Name)
	fmt.Fprintf(buf, "func Parse%s(s string) (%s, error) {\n", e.Name, e.Name)
	fmt.Fprintf(buf, "\tvar v %s\n", e.Name)
	buf.WriteString("\terr := v.UnmarshalText([]byte(s))\n\treturn v, err\n}\n")
}
