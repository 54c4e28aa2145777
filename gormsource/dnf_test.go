package gormsource

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

func Test_tConjunct_toGORMExpression(t *testing.T) {
	timeNow := time.Now().UTC()
	timeNowStr, _ := timeNow.MarshalText()

	tests := []struct {
		name     string
		conjunct tConjunct
		wantSQL  string
		wantVars []any
	}{
		{
			name:     "string less than",
			conjunct: tConjunct{Column: "name", Operator: OperatorLT, Value: "abc"},
			wantSQL:  "name < ?",
			wantVars: []any{"abc"},
		},
		{
			name:     "timestamp greater than",
			conjunct: tConjunct{Column: "created_at", Operator: OperatorGT, Value: timeNow},
			wantSQL:  "created_at > ?",
			wantVars: []any{timeNow},
		},
		{
			name:     "timestamp string should convert to timestamp",
			conjunct: tConjunct{Column: "created_at", Operator: OperatorGTE, Value: string(timeNowStr)},
			wantSQL:  "created_at >= ?",
			wantVars: []any{timeNow},
		},
		{
			name:     "json integer should convert to int64",
			conjunct: tConjunct{Column: "id", Operator: OperatorLT, Value: json.Number("10")},
			wantSQL:  "id < ?",
			wantVars: []any{int64(10)},
		},
		{
			name:     "json float should convert to float64",
			conjunct: tConjunct{Column: "score", Operator: OperatorLTE, Value: json.Number("1.5")},
			wantSQL:  "score <= ?",
			wantVars: []any{1.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clauseExpr, ok := tt.conjunct.toGORMExpression().(clause.Expr)
			require.True(t, ok)
			require.Equal(t, tt.wantSQL, clauseExpr.SQL)
			require.Len(t, clauseExpr.Vars, len(tt.wantVars))

			for i, wantVar := range tt.wantVars {
				if wantTime, isTime := wantVar.(time.Time); isTime {
					require.True(t, wantTime.Equal(clauseExpr.Vars[i].(time.Time)))
					continue
				}

				require.Equal(t, wantVar, clauseExpr.Vars[i])
			}
		})
	}
}

func Test_tDisjunct_toGORMExpression(t *testing.T) {
	tests := []struct {
		name     string
		disjunct tDisjunct
		wantNil  bool
		wantAnd  bool
	}{
		{
			name: "several conjuncts are joined with AND",
			disjunct: tDisjunct{
				{Column: "id", Operator: operatorEq, Value: 5},
				{Column: "created_at", Operator: OperatorGT, Value: "2024-01-02T03:04:05Z"},
			},
			wantAnd: true,
		},
		{
			name:     "single conjunct stays bare",
			disjunct: tDisjunct{{Column: "id", Operator: OperatorGT, Value: 5}},
		},
		{
			name:     "empty disjunct",
			disjunct: tDisjunct{},
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr := tt.disjunct.toGORMExpression()
			require.Equal(t, tt.wantNil, expr == nil)

			_, isAnd := expr.(clause.AndConditions)
			require.Equal(t, tt.wantAnd, isAnd)
		})
	}
}

func Test_tDNF_toGORMExpression(t *testing.T) {
	tests := []struct {
		name    string
		dnf     tDNF
		wantNil bool
		wantOr  bool
	}{
		{
			name: "several disjuncts are joined with OR",
			dnf: tDNF{
				{{Column: "id", Operator: OperatorGT, Value: 10}},
				{
					{Column: "id", Operator: operatorEq, Value: 10},
					{Column: "created_at", Operator: OperatorGT, Value: "2024-01-02T03:04:05Z"},
				},
			},
			wantOr: true,
		},
		{
			name:    "empty disjuncts are skipped",
			dnf:     tDNF{{}, {{Column: "id", Operator: OperatorGT, Value: 10}}},
			wantNil: false,
		},
		{
			name:    "empty DNF",
			dnf:     tDNF{},
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr := tt.dnf.toGORMExpression()
			require.Equal(t, tt.wantNil, expr == nil)

			_, isOr := expr.(clause.OrConditions)
			require.Equal(t, tt.wantOr, isOr)
		})
	}
}
