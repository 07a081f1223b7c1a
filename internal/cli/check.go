package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/danmuck/uvguard/internal/manifest"
)

var ErrDriftDetected = errors.New("validator packages are missing from dependencies, run 'uvguard sync'")

type EncodingType string

const (
	EncodingTable EncodingType = "table"
	EncodingYAML  EncodingType = "yaml"
	EncodingJSON  EncodingType = "json"
)

// checkRow is one declared validator and whether its package is declared.
type checkRow struct {
	Project   string `json:"project" yaml:"project"`
	Validator string `json:"validator" yaml:"validator"`
	Package   string `json:"package,omitempty" yaml:"package,omitempty"`
	Declared  bool   `json:"declared" yaml:"declared"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newCheckCmd(a *app) *cobra.Command {
	var output string
	var all bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report validators whose package is not declared",
		Long: `Resolves every declared validator and reports whether its package is listed in
[project].dependencies. Nothing is modified. Exits non-zero when drift is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.prepare(); err != nil {
				return err
			}
			rows, err := a.check(cmd.Context(), all)
			if err != nil {
				return err
			}
			data, err := encodeRows(EncodingType(output), rows)
			if err != nil {
				return err
			}
			if _, err := cmd.OutOrStdout().Write(data); err != nil {
				return err
			}
			for _, r := range rows {
				if !r.Declared {
					return ErrDriftDetected
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", string(EncodingTable), "output format: table|yaml|json")
	cmd.Flags().BoolVar(&all, FlagAllPackages, false, "include every workspace member")
	return cmd
}

func (a *app) check(ctx context.Context, all bool) ([]checkRow, error) {
	store := a.store()
	root, err := store.Load()
	if err != nil {
		return nil, err
	}
	projects, err := store.Workspace(root)
	if err != nil {
		return nil, err
	}
	projects = manifest.Selection{AllPackages: all}.Select(projects)

	resolver := a.resolver()
	rows := []checkRow{}
	for _, p := range projects {
		m := root
		if !p.Root {
			if m, err = p.Store.Load(); err != nil {
				return nil, err
			}
		}
		for _, v := range m.Validators {
			row := checkRow{Project: p.Name, Validator: v}
			res, err := resolver.Resolve(ctx, v)
			if err != nil {
				row.Error = err.Error()
			} else {
				row.Package = res.Package
				row.Declared = m.HasPackage(res.Package)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func encodeRows(output EncodingType, rows []checkRow) ([]byte, error) {
	switch output {
	case EncodingTable:
		return encodeRowsAsTable(rows), nil
	case EncodingYAML:
		return yaml.Marshal(rows)
	case EncodingJSON:
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	return nil, fmt.Errorf("unknown output format: %q", output)
}

func encodeRowsAsTable(rows []checkRow) []byte {
	var buf bytes.Buffer
	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.AppendHeader(table.Row{"Project", "Validator", "Package", "Declared"})
	for _, r := range rows {
		declared := "yes"
		switch {
		case r.Error != "":
			declared = "error: " + r.Error
		case !r.Declared:
			declared = "MISSING"
		}
		t.AppendRow(table.Row{r.Project, r.Validator, r.Package, declared})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true},
	})
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
	return buf.Bytes()
}
