package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"gagyebu/internal/core"
)

const (
	colorIncome  lipgloss.Color = "#a6e3a1"
	colorExpense lipgloss.Color = "#f38ba8"
	colorMuted   lipgloss.Color = "#7f849c"
	colorAccent  lipgloss.Color = "#89b4fa"
)

// renderer styles output for the writer it prints to, so piped output
// carries no escape codes.
type renderer struct {
	header  lipgloss.Style
	income  lipgloss.Style
	expense lipgloss.Style
	muted   lipgloss.Style
	border  lipgloss.Style
	label   lipgloss.Style
	cell    lipgloss.Style
}

func newRenderer(w io.Writer) *renderer {
	r := lipgloss.NewRenderer(w)
	return &renderer{
		header:  r.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1),
		income:  r.NewStyle().Foreground(colorIncome).Padding(0, 1),
		expense: r.NewStyle().Foreground(colorExpense).Padding(0, 1),
		muted:   r.NewStyle().Foreground(colorMuted).Padding(0, 1),
		border:  r.NewStyle().Foreground(colorMuted),
		label:   r.NewStyle().Bold(true),
		cell:    r.NewStyle().Padding(0, 1),
	}
}

func signedKRW(t core.Transaction) string {
	if t.Type == core.Expense {
		return "-" + core.FormatKRW(t.Amount)
	}
	return "+" + core.FormatKRW(t.Amount)
}

// transactions renders records as a table, amounts coloured by type.
func (r *renderer) transactions(items []core.Transaction) string {
	if len(items) == 0 {
		return r.muted.Render("no records")
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.border).
		Headers("ID", "DATE", "CATEGORY", "AMOUNT", "MEMO")
	for _, tx := range items {
		memo := tx.Memo
		if tx.Merchant != nil && tx.Merchant.Name != "" {
			memo = strings.TrimSpace(fmt.Sprintf("%s @ %s", memo, tx.Merchant.Name))
		}
		t.Row(tx.ID, tx.Date, tx.Category, signedKRW(tx), memo)
	}
	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return r.header
		case col == 3 && items[row].Type == core.Expense:
			return r.expense.Align(lipgloss.Right)
		case col == 3:
			return r.income.Align(lipgloss.Right)
		case col == 0:
			return r.muted
		default:
			return r.cell
		}
	})
	return t.Render()
}

// dayHeader is the date with that day's income and expense.
func (r *renderer) dayHeader(day core.DayGroup) string {
	return r.label.Render(day.Date) + "  " +
		r.income.Render("+"+core.FormatKRW(day.Totals.Income)) +
		r.expense.Render("-"+core.FormatKRW(day.Totals.Expense))
}

// totals prints one summary line for a month (or "all").
func (r *renderer) totals(month string, t core.Totals) string {
	balance := r.income
	if t.Balance < 0 {
		balance = r.expense
	}
	return r.label.Render(month) + "  " +
		"income" + r.income.Render(core.FormatKRW(t.Income)) +
		"expense" + r.expense.Render(core.FormatKRW(t.Expense)) +
		"balance" + balance.Render(core.FormatKRW(t.Balance))
}
