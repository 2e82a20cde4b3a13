package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"expensight/analytics"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type analyzeOptions struct {
	input       string
	budgets     string
	start       string
	end         string
	customStart string
	customEnd   string
	mood        string
	format      string
	timezone    string
	lookback    int
	limit       int
}

func (o *analyzeOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.input, "input", "i", "", "expense JSON file, - for stdin (required)")
	_ = cmd.MarkFlagRequired("input")
	cmd.Flags().StringVarP(&o.budgets, "budgets", "b", "", "budget YAML file")
	cmd.Flags().StringVar(&o.start, "start", "", "range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&o.end, "end", "", "range end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&o.customStart, "custom-start", "", "custom range start, overrides --start/--end")
	cmd.Flags().StringVar(&o.customEnd, "custom-end", "", "custom range end")
	cmd.Flags().StringVar(&o.mood, "mood", "neutral", "insight tone: neutral or playful")
	cmd.Flags().StringVar(&o.timezone, "tz", "", "timezone for undated expenses (default local)")
	cmd.Flags().IntVar(&o.lookback, "lookback", analytics.DefaultLookbackMonths, "months to search back for a budget")
	cmd.Flags().IntVar(&o.limit, "limit", analytics.DefaultLeaderboardLimit, "leaderboard size")
}

func (o *analyzeOptions) selection() (analytics.Selection, error) {
	ambient, err := analytics.ParseDateRange(o.start, o.end)
	if err != nil {
		return analytics.Selection{}, err
	}
	sel := analytics.Selection{Ambient: ambient}
	if o.customStart != "" || o.customEnd != "" {
		custom, err := analytics.ParseDateRange(o.customStart, o.customEnd)
		if err != nil {
			return analytics.Selection{}, err
		}
		sel.Custom = &custom
	}
	return sel, nil
}

func (o *analyzeOptions) run(stdin io.Reader) (*analytics.Snapshot, error) {
	sel, err := o.selection()
	if err != nil {
		return nil, err
	}

	data, err := readInput(o.input, stdin)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	expenses, err := parseExpenses(data)
	if err != nil {
		return nil, err
	}
	budgets, book, err := loadBudgets(o.budgets)
	if err != nil {
		return nil, err
	}

	engine := analytics.NewEngine()
	engine.Lookback = o.lookback
	engine.LeaderboardLimit = o.limit
	if o.timezone != "" {
		loc, err := time.LoadLocation(o.timezone)
		if err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
		engine.Location = loc
	}
	if len(budgets.Defaults) > 0 {
		engine.DefaultBudgets = budgets.Defaults
	}

	snap := engine.Analyze(analytics.Input{
		Expenses:   expenses.Expenses,
		Categories: expenses.Categories,
		Selection:  sel,
		Budgets:    book,
		Mood:       analytics.ParseMood(o.mood),
	})
	return snap, nil
}

func newAnalyzeCommand() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Print the full snapshot for a range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "json" && opts.format != "yaml" {
				return fmt.Errorf("unknown format %q, expected json or yaml", opts.format)
			}
			snap, err := opts.run(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return writeSnapshot(cmd.OutOrStdout(), snap, opts.format)
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "output format: json or yaml")

	return cmd
}

func newSignatureCommand() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "signature",
		Short: "Print only the snapshot signature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := opts.run(cmd.InOrStdin())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), snap.Signature)
			return err
		},
	}
	opts.bind(cmd)

	return cmd
}

func writeSnapshot(w io.Writer, snap *analytics.Snapshot, format string) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if format == "json" {
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	// Go through the JSON form so YAML keys and number formats match the API.
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("converting snapshot: %w", err)
	}
	blockStyle(&doc)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return enc.Close()
}

func blockStyle(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style = 0
	}
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" {
		n.Style = 0
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}
