package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

var importClassroom string

var seedCmd = &cobra.Command{
	Use:   "seed [classroom_words.yaml]",
	Short: "Create multiple-choice bank questions from a classroom word file",
	Long: `Reads a YAML mapping of classroom to word list and adds a spelling question
with generated misspellings for every word the bank does not already hold.
Defaults to WORDS_PATH when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		path := a.Config.WordsPath
		if len(args) == 1 {
			path = args[0]
		}
		report, err := a.Seeder.SeedFromYAML(cmd.Context(), path)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <storyline_id>",
	Short: "Delete a storyline's generated steps and mark it pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Storylines.Reset(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "storyline %d reset\n", id)
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate <storyline_id>",
	Short: "Generate the story steps of a pending or failed storyline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		details, err := a.Storylines.Generate(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), details)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a PDF or text word list into a classroom's question bank",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if importClassroom == "" {
			return fmt.Errorf("--classroom is required")
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Ingestion.ImportWordList(cmd.Context(), filepath.Base(args[0]), importClassroom, f, nil)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

func init() {
	importCmd.Flags().StringVar(&importClassroom, "classroom", "", "Classroom the words belong to")
	rootCmd.AddCommand(seedCmd, resetCmd, generateCmd, importCmd)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid storyline id %q", raw)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
