package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cultivator/internal/cmdlog"
	"cultivator/internal/config"
	"cultivator/internal/engage"
	"cultivator/internal/jobs"
	"cultivator/internal/metrics"
	"cultivator/internal/redditclient"
	"cultivator/internal/store"
	"cultivator/internal/theme"
	"cultivator/internal/util"
)

// run flags
var (
	runSubreddits  string
	runMaxComments int
	runMinDelay    int
	runMaxDelay    int
	runDryRun      bool
	runSkipHealth  bool
)

var (
	postText  string
	initPath  string
	initForce bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one comment session",
	Long: `Checks the account, applies the safety policy, fetches rising posts, filters
them and acts on a small random selection with human-like pauses.

With --dry-run nothing is posted and the targets are recorded as dry_run.
Without it, targets are recorded as pending and a brief is printed for each one
so the comment can be written and sent with "cultivate post".`,
	Example: `  cultivate run --dry-run
  cultivate run --subreddits golang,rust --max-comments 3 --min-delay 60 --max-delay 120`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("run", func() error { return runSession(cmd) })
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show account, limits and activity; records a karma snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("status", func() error { return runStatus(cmd) })
	},
}

var shadowbanCmd = &cobra.Command{
	Use:   "shadowban",
	Short: "Check whether the account is visible to logged-out visitors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("shadowban", func() error { return runShadowBan(cmd) })
	},
}

var postCmd = &cobra.Command{
	Use:     "post <post-id>",
	Short:   "Upvote a post and reply to it with the given text",
	Example: `  cultivate post t3_1abcde --text "Nice write-up, the part on backoff matched what we saw."`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("post", func() error { return runPost(cmd, args[0]) })
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Verify the platform session and print the identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("login", func() error { return runLogin(cmd) })
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("init", func() error { return runInit(cmd) })
	},
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show when the next session may start",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdlog.Run("next", func() error { return runNext(cmd) })
	},
}

func init() {
	runCmd.Flags().StringVar(&runSubreddits, "subreddits", "", "Comma-separated subreddits (default from config)")
	runCmd.Flags().IntVar(&runMaxComments, "max-comments", 0, "Comments this session, capped by policy (default: policy max)")
	runCmd.Flags().IntVar(&runMinDelay, "min-delay", 0, "Minimum seconds between actions (default from config)")
	runCmd.Flags().IntVar(&runMaxDelay, "max-delay", 0, "Maximum seconds between actions (default from config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Record targets without posting")
	runCmd.Flags().BoolVar(&runSkipHealth, "skip-health", false, "Skip the shadow-ban pre-flight check")

	postCmd.Flags().StringVar(&postText, "text", "", "Comment text (required)")
	_ = postCmd.MarkFlagRequired("text")

	initCmd.Flags().StringVar(&initPath, "path", "./cultivate.yaml", "Where to write the config")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
}

// setup loads config and builds the runner. The close func is always safe to call.
func setup(needClient bool) (*jobs.Runner, config.Config, func(), error) {
	noop := func() {}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return nil, cfg, noop, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfg, noop, fmt.Errorf("invalid config: %w", err)
	}
	metrics.StartServer(cfg.Metrics.Addr)

	var client redditclient.Client
	if needClient {
		client, err = redditclient.New(cfg.Platform)
		if err != nil {
			return nil, cfg, noop, err
		}
	}
	st, closeStore, err := store.Open(cfg.Storage.Backend, cfg.LedgerPath())
	if err != nil {
		return nil, cfg, noop, err
	}
	r := jobs.NewRunner(client, st, engage.LimitsFrom(cfg.Policy))
	r.RequireHealthy = cfg.Session.RequireHealthy
	return r, cfg, func() { _ = closeStore() }, nil
}

func sessionOptions(cmd *cobra.Command, cfg config.Config) jobs.SessionOptions {
	opts := jobs.SessionOptions{
		Subreddits:  cfg.Session.Subreddits,
		MaxComments: runMaxComments,
		MinDelay:    time.Duration(cfg.Session.MinDelay) * time.Second,
		MaxDelay:    time.Duration(cfg.Session.MaxDelay) * time.Second,
		DryRun:      runDryRun,
		SkipHealth:  runSkipHealth,
	}
	if subs := util.SplitList(runSubreddits); len(subs) > 0 {
		opts.Subreddits = subs
	}
	if cmd.Flags().Changed("min-delay") {
		opts.MinDelay = time.Duration(runMinDelay) * time.Second
	}
	if cmd.Flags().Changed("max-delay") {
		opts.MaxDelay = time.Duration(runMaxDelay) * time.Second
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	return opts
}

func runSession(cmd *cobra.Command) error {
	r, cfg, closeFn, err := setup(true)
	if err != nil {
		return err
	}
	defer closeFn()

	opts := sessionOptions(cmd, cfg)
	if len(opts.Subreddits) == 0 {
		return errors.New("no subreddits configured")
	}
	res, err := r.RunSession(cmd.Context(), opts)
	printSession(cmd.OutOrStdout(), res, opts)
	return err
}

func runStatus(cmd *cobra.Command) error {
	r, _, closeFn, err := setup(true)
	if err != nil {
		return err
	}
	defer closeFn()
	rep, err := r.Status(cmd.Context())
	if err != nil {
		return err
	}
	printStatus(cmd.OutOrStdout(), rep, r.Limits, r.Now())
	return nil
}

func runShadowBan(cmd *cobra.Command) error {
	r, _, closeFn, err := setup(true)
	if err != nil {
		return err
	}
	defer closeFn()
	id, st, err := r.ShadowBan(cmd.Context())
	if err != nil {
		return err
	}
	printShadowBan(cmd.OutOrStdout(), id.Name, st)
	return nil
}

func runPost(cmd *cobra.Command, postID string) error {
	r, _, closeFn, err := setup(true)
	if err != nil {
		return err
	}
	defer closeFn()
	if !strings.Contains(postID, "_") {
		postID = "t3_" + postID
	}
	res, err := r.PostComment(cmd.Context(), postID, postText)
	if err != nil {
		return err
	}
	printPost(cmd.OutOrStdout(), res)
	return nil
}

func runLogin(cmd *cobra.Command) error {
	r, cfg, closeFn, err := setup(true)
	if err != nil {
		return err
	}
	defer closeFn()
	id, err := r.Login(cmd.Context())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Logged in as u/%s (%s mode)\n", id.Name, cfg.Platform.Mode)
	fmt.Fprintf(w, "  karma: %d (comment %d, link %d)\n", id.TotalKarma(), id.CommentKarma, id.LinkKarma)
	if !id.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  account created: %s\n", id.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

func runInit(cmd *cobra.Command) error {
	if _, err := os.Stat(initPath); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", initPath)
	}
	if err := config.Save(initPath, config.Default()); err != nil {
		return err
	}
	abs, _ := filepath.Abs(initPath)
	w := cmd.OutOrStdout()
	theme.PrintBanner(w)
	fmt.Fprintln(w, "Config written to:", abs)
	fmt.Fprintln(w, "Set REDDIT_COOKIE (web mode) or REDDIT_CLIENT_ID/SECRET/USERNAME/PASSWORD (api mode) in the environment or a .env file.")
	return nil
}

func runNext(cmd *cobra.Command) error {
	r, _, closeFn, err := setup(false)
	if err != nil {
		return err
	}
	defer closeFn()
	at, d, err := r.Next(cmd.Context())
	if err != nil {
		return err
	}
	printNext(cmd.OutOrStdout(), at, d, r.Now())
	return nil
}
