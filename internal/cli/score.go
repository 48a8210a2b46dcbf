package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func (a *app) scoreCommand() *cobra.Command {
	var historyPath string

	cmd := &cobra.Command{
		Use:   "score <image>",
		Short: "Score one image",
		Long: `Score one image and print the result.

Example:
  photoverify score report.jpg
  photoverify score report.jpg --history recent.json -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			history, err := loadHistory(historyPath)
			if err != nil {
				return err
			}
			sess, err := a.open()
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, sess.close()) }()

			res, err := sess.verifier.Score(args[0], history)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&historyPath, "history", "", "JSON or YAML array of {id, phash}, most recent first")
	return cmd
}
