package analyzer

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

const (
	analyzerName = "forbiddencalls"
	analyzerDoc  = "reports panic, log.Fatal and os.Exit outside main, and outbound HTTP through the default client"
)

// Analyzer checks for calls that bypass error returns or HTTP timeouts.
var Analyzer = &analysis.Analyzer{
	Name:     analyzerName,
	Doc:      analyzerDoc,
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

type rule struct {
	pkg, name   string
	allowInMain bool
	message     string
}

var rules = []rule{
	{pkg: "log", name: "Fatal", allowInMain: true, message: "log.Fatal is forbidden outside main function"},
	{pkg: "os", name: "Exit", allowInMain: true, message: "os.Exit is forbidden outside main function"},
	{pkg: "net/http", name: "Get", message: "http.Get uses the default client without timeout"},
	{pkg: "net/http", name: "Head", message: "http.Head uses the default client without timeout"},
	{pkg: "net/http", name: "Post", message: "http.Post uses the default client without timeout"},
	{pkg: "net/http", name: "PostForm", message: "http.PostForm uses the default client without timeout"},
	{pkg: "net/http", name: "DefaultClient", message: "http.DefaultClient has no timeout"},
}

func run(pass *analysis.Pass) (interface{}, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.CallExpr)(nil),
		(*ast.SelectorExpr)(nil),
	}

	insp.WithStack(nodeFilter, func(node ast.Node, push bool, stack []ast.Node) bool {
		if !push {
			return true
		}

		switch n := node.(type) {
		case *ast.CallExpr:
			if isBuiltinPanic(pass, n) {
				pass.Reportf(n.Pos(), "panic is forbidden")
			}
		case *ast.SelectorExpr:
			checkSelector(pass, n, stack)
		}
		return true
	})

	return nil, nil
}

func isBuiltinPanic(pass *analysis.Pass, call *ast.CallExpr) bool {
	ident, ok := call.Fun.(*ast.Ident)
	if !ok || ident.Name != "panic" {
		return false
	}

	_, builtin := pass.TypesInfo.Uses[ident].(*types.Builtin)
	return builtin
}

func checkSelector(pass *analysis.Pass, sel *ast.SelectorExpr, stack []ast.Node) {
	ident, ok := sel.X.(*ast.Ident)
	if !ok {
		return
	}

	pkgName, ok := pass.TypesInfo.Uses[ident].(*types.PkgName)
	if !ok {
		return
	}
	pkgPath := pkgName.Imported().Path()

	for _, r := range rules {
		if r.pkg != pkgPath || r.name != sel.Sel.Name {
			continue
		}
		if r.allowInMain && insideMain(stack) {
			return
		}
		pass.Reportf(sel.Pos(), "%s", r.message)
		return
	}
}

// insideMain reports whether the innermost enclosing function declaration is main.
func insideMain(stack []ast.Node) bool {
	for i := len(stack) - 1; i >= 0; i-- {
		if fn, ok := stack[i].(*ast.FuncDecl); ok {
			return fn.Recv == nil && fn.Name.Name == "main"
		}
	}
	return false
}
