package verify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// Define is one #define found in the header
type Define struct {
	Name  string
	Value string
	Line  int
}

// Problem is a syntax error located in the header
type Problem struct {
	Line    int
	Column  int
	Message string
}

func (p Problem) String() string {
	return fmt.Sprintf("%d:%d: %s", p.Line, p.Column, p.Message)
}

// Report is what a C parser sees in a generated header
type Report struct {
	// Guard is the macro tested by the outermost #ifndef, if any
	Guard      string
	Defines    []Define
	Errors     []Problem
	Duplicates []string
}

// OK reports whether the header parsed cleanly without redefinitions
func (r *Report) OK() bool {
	return len(r.Errors) == 0 && len(r.Duplicates) == 0
}

// Err summarizes the report as an error, or nil when it is OK
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	var parts []string
	for _, p := range r.Errors {
		parts = append(parts, p.String())
	}
	for _, name := range r.Duplicates {
		parts = append(parts, fmt.Sprintf("'%s' defined more than once", name))
	}
	return fmt.Errorf("generated header does not parse as C: %s", strings.Join(parts, "; "))
}

// Check parses src with the tree-sitter C grammar and collects every macro
// definition along with any syntax errors.
func Check(ctx context.Context, src []byte) (*Report, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(c.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	defer tree.Close()

	report := &Report{}
	root := tree.RootNode()
	report.Guard = guardOf(root, src)
	walk(root, src, report)
	if root.HasError() && len(report.Errors) == 0 {
		report.Errors = append(report.Errors, problemAt(root, "syntax error"))
	}

	seen := make(map[string]int, len(report.Defines))
	for _, d := range report.Defines {
		seen[d.Name]++
	}
	for name, n := range seen {
		if n > 1 {
			report.Duplicates = append(report.Duplicates, name)
		}
	}
	sort.Strings(report.Duplicates)

	return report, nil
}

func walk(node *sitter.Node, src []byte, report *Report) {
	if node == nil {
		return
	}

	switch {
	case node.IsMissing():
		report.Errors = append(report.Errors, problemAt(node, "missing "+node.Type()))
		return
	case node.IsError():
		report.Errors = append(report.Errors, problemAt(node, "unexpected "+quote(node.Content(src))))
		return
	}

	if node.Type() == "preproc_def" {
		d := Define{Line: int(node.StartPoint().Row) + 1}
		if n := node.ChildByFieldName("name"); n != nil {
			d.Name = n.Content(src)
		}
		if v := node.ChildByFieldName("value"); v != nil {
			d.Value = strings.TrimSpace(v.Content(src))
		}
		report.Defines = append(report.Defines, d)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walk(node.Child(i), src, report)
	}
}

func guardOf(root *sitter.Node, src []byte) string {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n.Type() != "preproc_ifdef" {
			continue
		}
		if name := n.ChildByFieldName("name"); name != nil {
			return name.Content(src)
		}
	}
	return ""
}

func problemAt(node *sitter.Node, msg string) Problem {
	p := node.StartPoint()
	return Problem{Line: int(p.Row) + 1, Column: int(p.Column) + 1, Message: msg}
}

func quote(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + "..."
	}
	return fmt.Sprintf("%q", s)
}
