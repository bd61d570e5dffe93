package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/vsariola/lumo/playback"
)

func newPlayCmd(g *globals) *cobra.Command {
	var (
		noAudio bool
		from    float64
	)
	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play a project until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(g.cfg, g.log, args[0], sessionOptions{noAudio: noAudio})
			if err != nil {
				return err
			}
			defer s.close()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			s.send(playback.SeekMsg{Position: from})
			s.send(playback.PlayMsg{})
			go logStatus(ctx, s)
			return s.run(ctx)
		},
	}
	cmd.Flags().BoolVar(&noAudio, "no-audio", false, "do not open the audio device")
	cmd.Flags().Float64Var(&from, "from", 0, "start position in ticks")
	return cmd
}

// logStatus logs dropped frames as they accumulate.
func logStatus(ctx context.Context, s *session) {
	var dropped int64
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-s.broker.ToFrontend:
			if st.Dropped > dropped {
				s.log.WithField("dropped", st.Dropped).Debug("frames dropped")
				dropped = st.Dropped
			}
		}
	}
}
