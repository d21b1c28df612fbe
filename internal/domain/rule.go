package domain

import (
	"time"

	"github.com/google/uuid"
)

type ExprKind string

const (
	ExprCompare ExprKind = "compare"
	ExprAnd     ExprKind = "and"
	ExprOr      ExprKind = "or"
	ExprNot     ExprKind = "not"
	ExprIn      ExprKind = "in"
	ExprVar     ExprKind = "var"
	ExprLiteral ExprKind = "literal"
)

type CompareOp string

const (
	OpEq  CompareOp = "eq"
	OpNe  CompareOp = "ne"
	OpGt  CompareOp = "gt"
	OpGte CompareOp = "gte"
	OpLt  CompareOp = "lt"
	OpLte CompareOp = "lte"
)

func ValidCompareOp(op string) bool {
	switch CompareOp(op) {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Expression is a node in a closed operator tree. Which fields are meaningful
// depends on Kind:
//
//	compare: Op, Left, Right
//	and/or:  Operands
//	not:     Operand
//	in:      Left, Values
//	var:     Variable
//	literal: Literal
//
// Expressions arrive pre-built (JSON from the rule-publishing pipeline); they
// are interpreted, never executed.
type Expression struct {
	Kind     ExprKind      `json:"kind"`
	Op       CompareOp     `json:"op,omitempty"`
	Left     *Expression   `json:"left,omitempty"`
	Right    *Expression   `json:"right,omitempty"`
	Operand  *Expression   `json:"operand,omitempty"`
	Operands []*Expression `json:"operands,omitempty"`
	Variable string        `json:"variable,omitempty"`
	Literal  *FactValue    `json:"literal,omitempty"`
	Values   []FactValue   `json:"values,omitempty"`
}

// Var and Lit are shorthand constructors used by tests and the seed script.
func Var(name string) *Expression { return &Expression{Kind: ExprVar, Variable: name} }
func Lit(v FactValue) *Expression { return &Expression{Kind: ExprLiteral, Literal: &v} }

func Compare(op CompareOp, left, right *Expression) *Expression {
	return &Expression{Kind: ExprCompare, Op: op, Left: left, Right: right}
}

// Requirement is one condition inside a rule version.
type Requirement struct {
	Code        string      `json:"code"`
	Description string      `json:"description,omitempty"`
	Expression  *Expression `json:"expression"`
	Mandatory   bool        `json:"mandatory"`
}

// RuleVersion is a time-bounded, versioned requirement set for a visa type.
// Produced and published externally; read-only here.
type RuleVersion struct {
	ID            uuid.UUID     `json:"id"`
	VisaTypeID    uuid.UUID     `json:"visa_type_id"`
	VisaCode      string        `json:"visa_code"`
	Jurisdiction  string        `json:"jurisdiction,omitempty"`
	EffectiveFrom time.Time     `json:"effective_from"`
	EffectiveTo   *time.Time    `json:"effective_to,omitempty"`
	Published     bool          `json:"published"`
	Requirements  []Requirement `json:"requirements"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ActiveAt reports whether the version covers the given date.
func (rv *RuleVersion) ActiveAt(t time.Time) bool {
	if !rv.Published {
		return false
	}
	if t.Before(rv.EffectiveFrom) {
		return false
	}
	if rv.EffectiveTo != nil && !t.Before(*rv.EffectiveTo) {
		return false
	}
	return true
}
