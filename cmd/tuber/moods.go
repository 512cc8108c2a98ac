package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-tuber/pkg/avatar"
)

func newMoodsCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "moods",
		Short: "List the available moods and their art",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			reg, err := cfg.Registry()
			if err != nil {
				return err
			}
			moods := reg.Moods()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(moods)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tHEAD\tEYES\tDESCRIPTION")
			for _, m := range moods {
				name := m.Name
				if name == reg.DefaultName() {
					name += " *"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, headSlots(m), eyeSlots(m), m.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print moods as JSON")
	return cmd
}

func headSlots(m avatar.Mood) string {
	var slots []string
	for _, s := range []struct{ name, img string }{
		{"idle", m.Head.Idle}, {"half", m.Head.Half}, {"full", m.Head.Full}, {"yell", m.Head.Yell},
	} {
		if s.img != "" {
			slots = append(slots, s.name)
		}
	}
	if len(slots) == 0 {
		return "-"
	}
	return strings.Join(slots, ",")
}

func eyeSlots(m avatar.Mood) string {
	var slots []string
	if m.Eyes.Open != "" {
		slots = append(slots, "open")
	}
	if m.Eyes.Closed != "" {
		slots = append(slots, "closed")
	}
	if len(slots) == 0 {
		return "-"
	}
	return strings.Join(slots, ",")
}

// missingArt lists image paths referenced by reg that do not exist under dir.
func missingArt(reg *avatar.Registry, dir string) []string {
	var missing []string
	seen := map[string]bool{}
	for _, m := range reg.Moods() {
		for _, img := range []string{m.Head.Idle, m.Head.Half, m.Head.Full, m.Head.Yell, m.Eyes.Open, m.Eyes.Closed} {
			if img == "" || seen[img] {
				continue
			}
			seen[img] = true
			if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(img))); err != nil {
				missing = append(missing, img)
			}
		}
	}
	return missing
}
