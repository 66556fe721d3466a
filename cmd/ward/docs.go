package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

var docsCmd = &cobra.Command{
	Use:    "gen-docs",
	Short:  "Generate man pages or markdown docs for ward",
	Hidden: true,
	RunE:   runGenDocs,
}

func init() {
	docsCmd.Flags().String("dir", "docs", "output directory")
	docsCmd.Flags().String("format", "man", "output format (man or markdown)")
}

func runGenDocs(cmd *cobra.Command, _ []string) error {
	dir, _ := cmd.Flags().GetString("dir")       //nolint:errcheck // flag name is hardcoded
	format, _ := cmd.Flags().GetString("format") //nolint:errcheck // flag name is hardcoded

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	root := cmd.Root()

	switch format {
	case "man":
		header := &doc.GenManHeader{
			Title:   "WARD",
			Section: "1",
			Source:  "ward " + version,
			Manual:  "Ward Manual",
		}
		return doc.GenManTree(root, header, dir)
	case "markdown":
		return doc.GenMarkdownTreeCustom(root, dir, mdFrontMatter, mdLink)
	default:
		return fmt.Errorf("unknown format %q (use man or markdown)", format)
	}
}

// mdFrontMatter emits a title block so the generated pages drop straight into
// a static site without editing.
func mdFrontMatter(filename string) string {
	name := strings.TrimSuffix(filepath.Base(filename), ".md")
	title := strings.ReplaceAll(name, "_", " ")
	return fmt.Sprintf("---\ntitle: %q\n---\n\n", title)
}

func mdLink(name string) string {
	return name
}
