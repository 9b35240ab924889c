package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	port           int
	prefix         string
	tlsCert        string
	tlsKey         string
	verbose        bool
	profile        bool
	version        bool
	questions      string
	questionFilter string
	roundDuration  time.Duration
	pointsToWin    int
	hostGrace      time.Duration
	lobbyGrace     time.Duration
	sweepInterval  time.Duration
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.hostGrace < 0 || c.lobbyGrace < 0 {
		return errors.New("grace windows must be non-negative")
	}
	if c.sweepInterval < time.Second {
		return errors.New("--sweep-interval must be at least 1s")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// defaultSettings derives per-lobby defaults from the config, clamped to the
// same bounds a settings update is held to.
func (c *Config) defaultSettings() LobbySettings {
	return LobbySettings{
		RoundDurationMs: clampRoundDuration(c.roundDuration.Milliseconds()),
		PointsToWin:     clampPointsToWin(c.pointsToWin),
		QuestionFilter:  c.questionFilter,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("GUESSER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "kanye-guesser",
		Short:         "A real-time multiplayer Kanye West trivia party game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: GUESSER_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: GUESSER_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: GUESSER_PREFIX)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: GUESSER_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: GUESSER_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: GUESSER_VERBOSE)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: GUESSER_PROFILE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: GUESSER_VERSION)")
	fs.StringVar(&cfg.questions, "questions", "", "path to a question corpus, overriding the embedded one (env: GUESSER_QUESTIONS)")
	fs.StringVar(&cfg.questionFilter, "question-filter", "", "default comma-separated question type/category filter for new lobbies (env: GUESSER_QUESTION_FILTER)")
	fs.DurationVar(&cfg.roundDuration, "round-duration", 30*time.Second, "default round duration for new lobbies (env: GUESSER_ROUND_DURATION)")
	fs.IntVar(&cfg.pointsToWin, "points-to-win", 10, "default points required to win for new lobbies (env: GUESSER_POINTS_TO_WIN)")
	fs.DurationVar(&cfg.hostGrace, "host-grace", 60*time.Second, "time a disconnected host keeps their seat reserved (env: GUESSER_HOST_GRACE)")
	fs.DurationVar(&cfg.lobbyGrace, "lobby-grace", 5*time.Minute, "time before empty lobbies are destroyed (env: GUESSER_LOBBY_GRACE)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", 30*time.Second, "how often empty lobbies are checked for destruction (env: GUESSER_SWEEP_INTERVAL)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("kanye-guesser v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
