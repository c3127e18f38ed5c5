package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/presetcat/internal"
	"github.com/starford/presetcat/internal/engine"
	"github.com/starford/presetcat/internal/presetservice"
)

var dryRunFlag = &cli.BoolFlag{
	Name:  "dry-run",
	Usage: "Show the diff of every change without writing any file",
}

var jsonFlag = &cli.BoolFlag{
	Name:  "json",
	Usage: "Print machine-readable JSON instead of tables",
}

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "serve",
			Usage:  "Run the HTTP API and the catalog watcher (default)",
			Action: serve,
		},
		{
			Name:   "mcp",
			Usage:  "Serve MCP tools on stdin/stdout",
			Action: serveMCP,
		},
		{
			Name:  "scan",
			Usage: "Scan the presets root and list every preset with its cluster and group",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "flat", Usage: "Only scan files directly in the presets root"},
				jsonFlag,
			},
			Action: withStack(func(ctx context.Context, cmd *cli.Command, st *internal.Stack) error {
				recs, err := st.Service.Scan(ctx)
				if err != nil {
					return err
				}
				if cmd.Bool("json") {
					return writeJSON(os.Stdout, recs)
				}
				fmt.Println(renderPresets(recs))
				fmt.Printf("%d presets\n", len(recs))
				return nil
			}),
		},
		{
			Name:      "show",
			Usage:     "Re-read one preset from disk",
			ArgsUsage: "<path>",
			Flags:     []cli.Flag{jsonFlag},
			Action: withStack(func(ctx context.Context, cmd *cli.Command, st *internal.Stack) error {
				if cmd.Args().Len() != 1 {
					return errors.New("show takes exactly one preset path")
				}
				p, err := st.Service.GetPreset(ctx, cmd.Args().First())
				if err != nil {
					return err
				}
				if cmd.Bool("json") {
					return writeJSON(os.Stdout, p)
				}
				rows := [][]string{
					{"Path", p.Path},
					{"Cluster", p.Cluster},
					{"Group", p.Group},
					{"Encoding", string(p.Encoding)},
					{"Checksum", p.Checksum},
				}
				fmt.Println(renderTable([]string{"Field", "Value"}, rows, nil))
				return nil
			}),
		},
		{
			Name:      "suggest",
			Usage:     "Infer cluster and group from folder positions",
			ArgsUsage: "[path...]",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "apply", Usage: "Write the suggestions (only for the given paths, if any)"},
				dryRunFlag,
				jsonFlag,
			},
			Action: withStack(suggest),
		},
		{
			Name:      "set-cluster",
			Usage:     "Write a cluster value into presets; folders expand to their presets",
			ArgsUsage: "<value> <path...>",
			Flags:     []cli.Flag{dryRunFlag, jsonFlag},
			Action: withStack(editCommand("set-cluster", func(ctx context.Context, svc *presetservice.Service, value string, paths []string, dryRun bool) (engine.Result, error) {
				return svc.SetCluster(ctx, paths, value, dryRun)
			})),
		},
		{
			Name:      "set-group",
			Usage:     "Write a group value into presets; folders expand to their presets",
			ArgsUsage: "<value> <path...>",
			Flags:     []cli.Flag{dryRunFlag, jsonFlag},
			Action: withStack(editCommand("set-group", func(ctx context.Context, svc *presetservice.Service, value string, paths []string, dryRun bool) (engine.Result, error) {
				return svc.SetGroup(ctx, paths, value, dryRun)
			})),
		},
		{
			Name:      "fix-groups",
			Usage:     "Rewrite malformed group tags in canonical form",
			ArgsUsage: "<path...>",
			Flags:     []cli.Flag{dryRunFlag, jsonFlag},
			Action: withStack(func(ctx context.Context, cmd *cli.Command, st *internal.Stack) error {
				res, err := st.Service.FixGroups(ctx, cmd.Args().Slice(), cmd.Bool("dry-run"))
				if err != nil {
					return err
				}
				return report(cmd, st, "fix-groups", res)
			}),
		},
		{
			Name:  "backup",
			Usage: "Archive every preset into a timestamped ZIP",
			Action: withStack(func(ctx context.Context, _ *cli.Command, st *internal.Stack) error {
				if _, err := st.Service.Scan(ctx); err != nil {
					return err
				}
				sum, err := st.Service.Backup(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("%s (%d presets, %d bytes)\n", sum.Path, sum.Files, sum.Bytes)
				return nil
			}),
		},
	}
}

type stackAction func(ctx context.Context, cmd *cli.Command, st *internal.Stack) error

// withStack loads the config, opens the service under the writer lock and
// closes it after fn.
func withStack(fn stackAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Bool("flat") {
			cfg.Presets.Recursive = false
		}
		st, err := internal.Open(nil,
			internal.WithConfig(cfg),
			internal.WithLogger(newCLILogger(cfg.App.LogLevel)),
			internal.WithProgress(progressPrinter(os.Stderr)),
		)
		if err != nil {
			return err
		}
		defer st.Close()
		return fn(ctx, cmd, st)
	}
}

type editFunc func(ctx context.Context, svc *presetservice.Service, value string, paths []string, dryRun bool) (engine.Result, error)

func editCommand(op string, edit editFunc) stackAction {
	return func(ctx context.Context, cmd *cli.Command, st *internal.Stack) error {
		args := cmd.Args().Slice()
		if len(args) < 2 {
			return fmt.Errorf("%s needs a value and at least one path", op)
		}
		res, err := edit(ctx, st.Service, args[0], args[1:], cmd.Bool("dry-run"))
		if err != nil {
			return err
		}
		return report(cmd, st, op, res)
	}
}

func suggest(ctx context.Context, cmd *cli.Command, st *internal.Stack) error {
	if _, err := st.Service.Scan(ctx); err != nil {
		return err
	}
	state, err := st.Service.StartSmartDetection(ctx)
	if err != nil {
		return err
	}
	if !cmd.Bool("apply") {
		if cmd.Bool("json") {
			return writeJSON(os.Stdout, state)
		}
		if len(state.Suggestions) == 0 {
			fmt.Println("every preset already matches its folder")
			return nil
		}
		fmt.Println(renderSuggestions(st.Service.Root(), state.Suggestions))
		fmt.Printf("%d suggestions; run with --apply to write them\n", len(state.Suggestions))
		return nil
	}

	if len(state.Suggestions) == 0 {
		fmt.Println("every preset already matches its folder")
		return nil
	}
	res, err := st.Service.ApplySmartDetection(ctx, cmd.Args().Slice(), cmd.Bool("dry-run"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return writeJSON(os.Stdout, res)
	}
	renderResult(os.Stdout, st.Service.Root(), "cluster", res.Cluster)
	renderResult(os.Stdout, st.Service.Root(), "group", res.Group)
	return failed(res.Cluster.Failed + res.Group.Failed)
}

func report(cmd *cli.Command, st *internal.Stack, op string, res engine.Result) error {
	if cmd.Bool("json") {
		if err := writeJSON(os.Stdout, res); err != nil {
			return err
		}
	} else {
		renderResult(os.Stdout, st.Service.Root(), op, res)
	}
	return failed(res.Failed)
}

func failed(n int) error {
	if n > 0 {
		return fmt.Errorf("%d presets failed", n)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
