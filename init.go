package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/astsync/internal/config"
)

const (
	sentinelStart = "<!-- astsync:start -->"
	sentinelEnd   = "<!-- astsync:end -->"
)

// newInitCmd implements `astsync init`, which writes a sample .astsync.yml
// and optionally a usage section into a Markdown document.
func newInitCmd(opts *globalOptions) *cobra.Command {
	var (
		dryRun  bool
		force   bool
		docPath string
	)
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a sample configuration and usage notes",
		Long: `Write a sample .astsync.yml to dir (default: current directory).

With --doc, also write an astsync usage section to a Markdown file. The
section is wrapped in sentinel comments so it can be updated in place on
subsequent runs without touching surrounding content. The file is created if
it does not exist.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cfgPath := filepath.Join(dir, config.FileNames[0])

			if dryRun {
				data, err := yaml.Marshal(config.Sample())
				if err != nil {
					return fmt.Errorf("failed to marshal config: %w", err)
				}
				_, _ = fmt.Fprintf(opts.stdout, "# %s\n%s", cfgPath, data)
				if docPath != "" {
					existing, _ := os.ReadFile(docPath)
					_, _ = fmt.Fprint(opts.stdout, applySection(string(existing), generateSection()))
				}
				return nil
			}

			if err := writeConfig(cfgPath, force); err != nil {
				return err
			}
			status(opts.stderr, color.FgGreen, "wrote sample configuration to %s", cfgPath)

			if docPath == "" {
				return nil
			}
			existing, _ := os.ReadFile(docPath)
			updated := applySection(string(existing), generateSection())
			if err := os.WriteFile(docPath, []byte(updated), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", docPath, err)
			}
			status(opts.stderr, color.FgGreen, "wrote astsync section to %s", docPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying any file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	cmd.Flags().StringVar(&docPath, "doc", "", "Markdown file to receive an astsync usage section")
	return cmd
}

// generateSection returns the full sentinel-wrapped astsync documentation block.
func generateSection() string {
	body := `## astsync: behavioural model sync

Run ` + "`astsync impact`" + ` after changing Lua code to see which functions other
components call and which of their blocks need a regenerated model.

**Run it:**
` + "```" + `bash
astsync impact                         # current directory
astsync impact -n 5                    # five most central components
astsync impact --diff change.patch     # mark the statements a patch touches
astsync impact --cache .astsync-cache  # reuse output while sources are unchanged
astsync match old/ new/                # node correspondence between snapshots
astsync watch                          # re-run on every save
` + "```" + `

**All flags:** ` + "`astsync --help`" + `

**Components** are configured in ` + "`.astsync.yml`" + `: each rule names a
component and the directories or files that belong to it. Files matching no
rule land in the default component.

**Reading the output:**

1. ` + "`functions`" + ` lists the served functions with the first external caller.
2. ` + "`blocks`" + ` lists every block whose model must be regenerated.
3. ` + "`changes`" + ` (with --diff) says for each touched statement whether it
   lies in such a block.`

	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	// Append, ensuring a blank line separator.
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
