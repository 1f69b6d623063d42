package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/maruel/natural"
	"github.com/spf13/cobra"

	"mediapilot/internal/api"
)

func init() {
	rootCmd.AddCommand(foldersCmd)
}

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List the folders known to the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := api.NewClient(globalConfig.APIBaseURL, apiHTTPClient())

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		folders, err := client.FetchFolders(ctx)
		if err != nil {
			return fmt.Errorf("fetching folders: %w", err)
		}
		sort.Slice(folders, func(i, j int) bool {
			return natural.Less(folders[i], folders[j])
		})
		for _, folder := range folders {
			fmt.Println(folder)
		}
		return nil
	},
}
