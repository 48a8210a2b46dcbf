package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/photoverify"
)

func (a *app) hashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <image>...",
		Short: "Print the perceptual hash of each image",
		Long: `Print "<phash>  <path>" for each image. The output can be turned into a
history file for score and batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, p := range args {
				h, err := photoverify.HashFile(p)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s  %s\n", h, p)
			}
			return nil
		},
	}
}
