package report

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/dafibh/condo/condo-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// Statement is the data rendered into a period closing report
type Statement struct {
	TenantName  string
	Closing     *domain.ClosingRecord
	Expenses    []*domain.Expense
	FeeSummary  *domain.FeePeriodSummary
	GeneratedAt time.Time
}

var statementFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string {
		return d.StringFixed(2)
	},
	"date": func(t time.Time) string {
		return t.Format("2006-01-02")
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}

var statementTemplate = template.Must(template.New("statement").Funcs(statementFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.TenantName}} - Statement {{.Closing.Period}}</title>
<style>
body { font-family: sans-serif; font-size: 12px; margin: 24px; }
table { border-collapse: collapse; width: 100%; margin-bottom: 16px; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
td.num, th.num { text-align: right; }
</style>
</head>
<body>
<h1>{{.TenantName}}</h1>
<h2>Period statement {{.Closing.Period}}</h2>
<table>
<tr><th>Total income</th><td class="num">{{money .Closing.TotalIncome}}</td></tr>
<tr><th>Total expense</th><td class="num">{{money .Closing.TotalExpense}}</td></tr>
<tr><th>Closing balance</th><td class="num">{{money .Closing.ClosingBalance}}</td></tr>
</table>
{{with .FeeSummary}}
<h3>Fees</h3>
<table>
<tr><th>Status</th><th class="num">Count</th><th class="num">Amount</th></tr>
<tr><td>Paid</td><td class="num">{{.PaidCount}}</td><td class="num">{{money .PaidAmount}}</td></tr>
<tr><td>Pending</td><td class="num">{{.PendingCount}}</td><td class="num">{{money .PendingAmount}}</td></tr>
<tr><td>Overdue</td><td class="num">{{.OverdueCount}}</td><td class="num">{{money .OverdueAmount}}</td></tr>
<tr><th>Total</th><th class="num">{{.TotalCount}}</th><th class="num">{{money .TotalAmount}}</th></tr>
</table>
{{end}}
<h3>Expenses</h3>
{{if .Expenses}}
<table>
<tr><th>Date</th><th>Category</th><th>Description</th><th>Account</th><th class="num">Amount</th></tr>
{{range .Expenses}}<tr><td>{{date .Date}}</td><td>{{.Category}}</td><td>{{deref .Description}}</td><td>{{.AccountKind}}</td><td class="num">{{money .Amount}}</td></tr>
{{end}}</table>
{{else}}
<p>No expenses recorded.</p>
{{end}}
<p>Generated {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}</p>
</body>
</html>
`))

// RenderHTML renders the statement as a standalone HTML document
func RenderHTML(s *Statement) ([]byte, error) {
	if s == nil || s.Closing == nil {
		return nil, fmt.Errorf("statement has no closing record")
	}
	var buf bytes.Buffer
	if err := statementTemplate.Execute(&buf, s); err != nil {
		return nil, fmt.Errorf("failed to render statement: %w", err)
	}
	return buf.Bytes(), nil
}
