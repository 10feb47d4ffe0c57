package cli

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/resoldhq/ledgermirror/pkg/api"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := initAppState()
			if err != nil {
				return err
			}
			defer state.Close()

			handler := api.NewHandler(state.db, state.ingester, state.syncer, state.verifier, state.diagnostician)
			router := api.SetupRouter(handler)

			log.Info().Str("addr", state.cfg.ListenAddr).Msg("listening")
			return http.ListenAndServe(state.cfg.ListenAddr, router)
		},
	}
}
