package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/docket/internal"
	"github.com/starford/docket/internal/inbox"
	"github.com/starford/docket/internal/storage"
	"github.com/starford/docket/internal/store"
	pkgconfig "github.com/starford/docket/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if p := cmd.String("store"); p != "" {
		cfg.Store.Path = p
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func initStore(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cfg.Store.Path
	if cmd.Args().Present() {
		path = cmd.Args().First()
	}
	st, err := store.Create(ctx, path, store.WithLogger(internal.NewLogger(cfg.App, os.Stderr)))
	if err != nil {
		return err
	}
	fmt.Println("created", st.Path())
	return st.Close()
}

func validateStore(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cfg.Store.Path
	if cmd.Args().Present() {
		path = cmd.Args().First()
	}
	ok, err := store.Validate(ctx, path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: not a docket store", path)
	}
	fmt.Println(path, "ok")
	return nil
}

func copyDocs(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var ids []int64
	for _, a := range cmd.Args().Slice() {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id < 1 {
			return fmt.Errorf("invalid document id %q", a)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return fmt.Errorf("no document ids given")
	}

	logger := internal.NewLogger(cfg.App, os.Stderr)
	svc, err := internal.OpenService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Store().Close()

	n, err := svc.Copy(ctx, ids, cmd.String("to"))
	if err != nil {
		return err
	}
	fmt.Printf("copied %d documents to %s\n", n, cmd.String("to"))
	return nil
}

func listTags(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := internal.OpenService(ctx, cfg, internal.NewLogger(cfg.App, os.Stderr))
	if err != nil {
		return err
	}
	defer svc.Store().Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tDOCS")
	for _, t := range svc.Tags(ctx) {
		n, err := svc.TagUsage(ctx, t.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\n", t.ID, t.Path, n)
	}
	return tw.Flush()
}

func importInbox(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := internal.NewLogger(cfg.App, os.Stderr)
	files, err := storage.NewFS(cfg.Inbox.Path)
	if err != nil {
		return err
	}
	svc, err := internal.OpenService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Store().Close()

	n, err := inbox.New(svc, files, cfg.Inbox.ArchiveDir, logger).Sync(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d documents\n", n)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "docket",
		Usage:  "Single-file document store with hierarchical tags, keyword search and bundled attachments",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "store",
				Aliases: []string{"s"},
				Usage:   "Store file path, overriding store.path",
				Sources: cli.EnvVars("DOCKET_STORE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the inbox watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdin/stdout",
				Action: serveMCP,
			},
			{
				Name:      "init",
				Usage:     "Create an empty store file",
				ArgsUsage: "[path]",
				Action:    initStore,
			},
			{
				Name:      "validate",
				Usage:     "Check that a file has the store layout",
				ArgsUsage: "[path]",
				Action:    validateStore,
			},
			{
				Name:      "copy",
				Usage:     "Copy documents into another store file (tags are not copied)",
				ArgsUsage: "id...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "to", Usage: "Destination store file", Required: true},
				},
				Action: copyDocs,
			},
			{
				Name:   "tags",
				Usage:  "List tags with their document counts",
				Action: listTags,
			},
			{
				Name:   "import",
				Usage:  "Import every file currently in the inbox directory",
				Action: importInbox,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
