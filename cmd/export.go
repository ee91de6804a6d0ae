package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"webtestflow/recorder/internal/models"
	"webtestflow/recorder/internal/review"
)

func newExportCommand() *cobra.Command {
	var (
		output  string
		choices []string
	)
	cmd := &cobra.Command{
		Use:   "export <steps.json>",
		Short: "Convert a recorded step sequence into the automation export document",
		Long: `Reads a recorded sequence, either a bare JSON array of steps or an object with a
"steps" field, and writes the export document. Use --choose index=kind to pick
an identifier other than the highest ranked one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			steps, err := decodeSteps(data)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			picked, err := parseChoices(choices)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return writeExport(out, review.Export(steps, picked))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().StringSliceVar(&choices, "choose", nil, "identifier choice as index=kind, repeatable")
	return cmd
}

func decodeSteps(data []byte) ([]models.Step, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var steps []models.Step
		err := json.Unmarshal(data, &steps)
		return steps, err
	}
	var wrapped struct {
		Steps []models.Step `json:"steps"`
	}
	err := json.Unmarshal(data, &wrapped)
	return wrapped.Steps, err
}

func parseChoices(raw []string) (map[int]string, error) {
	picked := make(map[int]string, len(raw))
	for _, c := range raw {
		idx, kind, ok := strings.Cut(c, "=")
		if !ok || kind == "" {
			return nil, fmt.Errorf("invalid choice %q, want index=kind", c)
		}
		n, err := strconv.Atoi(idx)
		if err != nil {
			return nil, fmt.Errorf("invalid choice %q: %w", c, err)
		}
		picked[n] = kind
	}
	return picked, nil
}

func writeExport(w io.Writer, doc models.ExportDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
