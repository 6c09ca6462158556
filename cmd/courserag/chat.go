package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/courserag/internal/infrastructure/tui"
)

func chatCMD(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive terminal chat over the stored courses",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Logs would corrupt the screen.
			if f, err := tea.LogToFile(filepath.Join(os.TempDir(), "courserag.log"), ""); err == nil {
				defer f.Close()
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, load)
			if err != nil {
				return err
			}
			defer a.Close()

			header := "No courses loaded; run `courserag ingest` first."
			if stats, err := a.Catalog.Analytics(ctx); err == nil && stats.TotalCourses > 0 {
				header = fmt.Sprintf("%d courses loaded", stats.TotalCourses)
			}

			_, err = tea.NewProgram(tui.New(ctx, a.Query, header), tea.WithAltScreen()).Run()
			return err
		},
	}
}
