package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

// backendReport describes how the verifier resolved its model.
type backendReport struct {
	Backend      string         `json:"backend" yaml:"backend"`
	ModelVersion string         `json:"model_version" yaml:"model_version"`
	ValidIndex   int            `json:"valid_index" yaml:"valid_index"`
	ValidClass   string         `json:"valid_class,omitempty" yaml:"valid_class,omitempty"`
	ClassMap     string         `json:"class_map,omitempty" yaml:"class_map,omitempty"`
	ClassMapLoad string         `json:"class_map_outcome" yaml:"class_map_outcome"`
	Attempts     []attemptEntry `json:"attempts" yaml:"attempts"`
}

type attemptEntry struct {
	Runtime string `json:"runtime" yaml:"runtime"`
	Outcome string `json:"outcome" yaml:"outcome"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

func (a *app) backendCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backend",
		Short: "Show the resolved model backend, class index and load attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			sess, err := a.open()
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, sess.close()) }()

			v := sess.verifier
			cm := v.ClassMap()
			rep := backendReport{
				Backend:      string(v.Backend()),
				ModelVersion: v.ModelVersion(),
				ValidIndex:   cm.ValidIndex,
				ValidClass:   cm.Name(cm.ValidIndex),
				ClassMap:     cm.Source,
				ClassMapLoad: cm.Outcome.String(),
				Attempts:     []attemptEntry{},
			}
			for _, at := range v.LoadAttempts() {
				e := attemptEntry{Runtime: string(at.Runtime), Outcome: string(at.Outcome)}
				if at.Err != nil {
					e.Error = at.Err.Error()
				}
				rep.Attempts = append(rep.Attempts, e)
			}
			return a.render(cmd.OutOrStdout(), rep)
		},
	}
}
