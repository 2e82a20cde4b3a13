package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"expensight/analytics"

	"gopkg.in/yaml.v3"
)

// expenseFile is the export format: either a bare array of expenses or an object that
// can also carry the category list.
type expenseFile struct {
	Expenses   []analytics.RawExpense `json:"expenses"`
	Categories []analytics.Category   `json:"categories"`
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func parseExpenses(data []byte) (expenseFile, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return expenseFile{}, nil
	}
	if data[0] == '[' {
		var list []analytics.RawExpense
		if err := json.Unmarshal(data, &list); err != nil {
			return expenseFile{}, fmt.Errorf("parsing expenses: %w", err)
		}
		return expenseFile{Expenses: list}, nil
	}
	var f expenseFile
	if err := json.Unmarshal(data, &f); err != nil {
		return expenseFile{}, fmt.Errorf("parsing expenses: %w", err)
	}
	return f, nil
}

// budgetFile is the YAML budget format:
//
//	defaults:
//	  Food: 400
//	months:
//	  "2024-06":
//	    Food: 350
type budgetFile struct {
	Defaults map[string]float64            `yaml:"defaults"`
	Months   map[string]map[string]float64 `yaml:"months"`
}

func loadBudgets(path string) (budgetFile, analytics.BudgetBook, error) {
	var f budgetFile
	book := analytics.BudgetBook{}
	if path == "" {
		return f, book, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return f, nil, fmt.Errorf("reading budgets: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, nil, fmt.Errorf("parsing budgets: %w", err)
	}
	for raw, amounts := range f.Months {
		m, err := analytics.ParseMonth(strings.TrimSpace(raw))
		if err != nil {
			return f, nil, fmt.Errorf("budget month %q: %w", raw, err)
		}
		for cat, amount := range amounts {
			book.Set(m, cat, amount)
		}
	}
	return f, book, nil
}
