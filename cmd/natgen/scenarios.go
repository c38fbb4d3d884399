package main

import "github.com/xyproto/natgen"

// scenarios.go is the minimal, spec-compliant front end spec.md §1 says this
// repository is allowed to carry "for testing purposes": it builds the six
// example programs spec.md §8 describes directly as Go AST values, since no
// lexer/parser exists in this repository (those remain external
// collaborators). main need not be the first statement — the container
// writers locate the entry point through the function-address map, not by
// position — and none of these scenarios need the shared type table
// pre-populated (no struct fields, no function parameters).

func scenarioProgram(name string) (*natgen.Program, bool) {
	build, ok := scenarios[name]
	if !ok {
		return nil, false
	}
	return &natgen.Program{Statements: build()}, true
}

// Each scenario builder returns its top-level statements directly (rather
// than a single wrapping statement) so that any EnumDecl/FuncDecl it needs
// lands in Program.Statements itself — Generate's pre-pass only walks that
// top-level slice when it builds the enum table and the declared-function
// set, so nesting a decl inside a BlockStmt would hide it from the pre-pass.
var scenarios = map[string]func() []natgen.Stmt{
	"hello":    scenarioHello,
	"arith":    scenarioArith,
	"forbreak": scenarioForBreak,
	"rangefor": scenarioRangeFor,
	"enum":     scenarioEnum,
	"escapes":  scenarioEscapes,
}

func mainFunc(body ...natgen.Stmt) natgen.Stmt {
	return natgen.FuncDecl{Receiver: "main", Name: "main", Body: body}
}

// scenarioHello: println("Hello, World!")
func scenarioHello() []natgen.Stmt {
	return []natgen.Stmt{mainFunc(
		natgen.ExprStmt{X: natgen.CallExpr{Callee: "println", Args: []natgen.Expr{
			natgen.StringLit{Value: "Hello, World!"},
		}}},
		natgen.ReturnStmt{},
	)}
}

// scenarioArith: a := 6; b := 7; exit(a * b - 2) — exits 40.
func scenarioArith() []natgen.Stmt {
	return []natgen.Stmt{mainFunc(
		natgen.AssignStmt{Name: "a", New: true, Value: natgen.IntLit{Value: 6}},
		natgen.AssignStmt{Name: "b", New: true, Value: natgen.IntLit{Value: 7}},
		natgen.AssignStmt{Name: "c", New: true, Value: natgen.InfixExpr{
			Op: "*", Left: natgen.Ident{Name: "a"}, Right: natgen.Ident{Name: "b"},
		}},
		natgen.ExprStmt{X: natgen.CallExpr{Callee: "exit", Args: []natgen.Expr{
			natgen.InfixExpr{Op: "-", Left: natgen.Ident{Name: "c"}, Right: natgen.IntLit{Value: 2}},
		}}},
	)}
}

// scenarioForBreak: sums 0..9, breaking at 5, then exits with the sum (10).
func scenarioForBreak() []natgen.Stmt {
	return []natgen.Stmt{mainFunc(
		natgen.AssignStmt{Name: "sum", New: true, Value: natgen.IntLit{Value: 0}},
		natgen.AssignStmt{Name: "i", New: true, Value: natgen.IntLit{Value: 0}},
		natgen.ForCStmt{
			Cond: natgen.InfixExpr{Op: "<", Left: natgen.Ident{Name: "i"}, Right: natgen.IntLit{Value: 10}},
			Post: natgen.ExprStmt{X: natgen.PostfixExpr{Op: "++", Operand: &natgen.Ident{Name: "i"}}},
			Body: []natgen.Stmt{
				natgen.ExprStmt{X: natgen.IfExpr{
					Cond: natgen.InfixExpr{Op: "==", Left: natgen.Ident{Name: "i"}, Right: natgen.IntLit{Value: 5}},
					Then: []natgen.Stmt{natgen.BranchStmt{Kind: "break"}},
				}},
				natgen.AssignStmt{Name: "sum", Value: natgen.InfixExpr{
					Op: "+", Left: natgen.Ident{Name: "sum"}, Right: natgen.Ident{Name: "i"},
				}},
			},
		},
		natgen.ExprStmt{X: natgen.CallExpr{Callee: "exit", Args: []natgen.Expr{natgen.Ident{Name: "sum"}}}},
	)}
}

// scenarioRangeFor: sums 0..4 via range-for, exits with the sum (10).
func scenarioRangeFor() []natgen.Stmt {
	return []natgen.Stmt{mainFunc(
		natgen.AssignStmt{Name: "sum", New: true, Value: natgen.IntLit{Value: 0}},
		natgen.ForRangeStmt{
			Var: "i", Lo: natgen.IntLit{Value: 0}, Hi: natgen.IntLit{Value: 5},
			Body: []natgen.Stmt{
				natgen.AssignStmt{Name: "sum", Value: natgen.InfixExpr{
					Op: "+", Left: natgen.Ident{Name: "sum"}, Right: natgen.Ident{Name: "i"},
				}},
			},
		},
		natgen.ExprStmt{X: natgen.CallExpr{Callee: "exit", Args: []natgen.Expr{natgen.Ident{Name: "sum"}}}},
	)}
}

// scenarioEnum: declares an enum, then exits with one field's assigned
// value (Color.Blue == 2). The EnumDecl is a sibling top-level statement to
// main, not nested inside it, so Generate's pre-pass builds the enum table
// before main's body is lowered.
func scenarioEnum() []natgen.Stmt {
	return []natgen.Stmt{
		natgen.EnumDecl{Name: "Color", Fields: []natgen.EnumField{
			{Name: "Red"}, {Name: "Green"}, {Name: "Blue"},
		}},
		mainFunc(
			natgen.ExprStmt{X: natgen.CallExpr{Callee: "exit", Args: []natgen.Expr{
				natgen.Selector{Base: natgen.Ident{Name: "Color"}, Field: "Blue"},
			}}},
		),
	}
}

// scenarioEscapes: println with embedded \n/\t escapes, exercising
// DecodeEscapes end to end.
func scenarioEscapes() []natgen.Stmt {
	return []natgen.Stmt{mainFunc(
		natgen.ExprStmt{X: natgen.CallExpr{Callee: "println", Args: []natgen.Expr{
			natgen.StringLit{Value: "line one\\nline two\\ttabbed"},
		}}},
		natgen.ReturnStmt{},
	)}
}
