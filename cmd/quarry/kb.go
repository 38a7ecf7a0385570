package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quarry/internal/knowledge"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Inspect or replace the knowledge base",
	Long: `Inspect or replace the internal knowledge base document.

The knowledge base lives at knowledge.path (default: companyinfo). A
directory is read as one document per .txt/.md file.`,
}

var kbShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current knowledge base document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openKnowledgeStore()
		if err != nil {
			return err
		}
		defer store.Close()

		doc, err := store.Document()
		if err != nil {
			return fmt.Errorf("read knowledge base %s: %w", store.Path(), err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), doc)
		return nil
	},
}

var kbSetCmd = &cobra.Command{
	Use:   "set <file|->",
	Short: "Replace the knowledge base document",
	Long: `Replace the knowledge base document with the contents of a file.
Use - to read from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readSource(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}

		store, err := openKnowledgeStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Save(content); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Knowledge base updated (%s, %d bytes)\n", store.Path(), len(content))
		return nil
	},
}

func init() {
	kbCmd.AddCommand(kbShowCmd)
	kbCmd.AddCommand(kbSetCmd)
}

func openKnowledgeStore() (*knowledge.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return knowledge.NewStore(cfg.Knowledge.Path, nil), nil
}

// readSource reads a file, or stdin when name is "-".
func readSource(stdin io.Reader, name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(data), nil
}
