// Package shell implements the interactive command surface from spec §6:
// a line-oriented REPL whose verbs are dispatched through cobra.Commands,
// one per verb, mirroring the teacher's cmd/warren subcommand tree.
package shell

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/arcuru/eidetica/pkg/config"
	"github.com/arcuru/eidetica/pkg/crdt"
	"github.com/arcuru/eidetica/pkg/eidetica"
	"github.com/arcuru/eidetica/pkg/eideticaerr"
	"github.com/arcuru/eidetica/pkg/log"
	"github.com/arcuru/eidetica/pkg/storage"
)

// Shell runs the interactive REPL over a Database. Beyond the Database and
// its configuration it holds only the REPL's own loop flags; saving goes
// entirely through storage.Saveable.
type Shell struct {
	db       *eidetica.Database
	cfg      config.Config
	in       *bufio.Reader
	out      io.Writer
	dirty    bool
	quitting bool
	exitCode int
}

// New constructs a Shell reading from in and writing to out.
func New(db *eidetica.Database, cfg config.Config, in io.Reader, out io.Writer) *Shell {
	return &Shell{db: db, cfg: cfg, in: bufio.NewReader(in), out: out}
}

// Run executes the REPL until "exit"/"exit-no-save" or a termination
// signal, then returns the process exit code: 0 on a clean exit (including
// end of input, which saves first), non-zero if reading input fails.
func (s *Shell) Run() int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(s.out, "\nsignal received, saving and exiting...")
		s.save()
		os.Exit(0)
	}()

	fmt.Fprintln(s.out, "eidetica shell. Type 'help' for commands.")
	for !s.quitting {
		fmt.Fprint(s.out, "> ")
		line, err := s.in.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				s.save()
				break
			}
			fmt.Fprintf(s.out, "Io: %v\n", err)
			return 1
		}
		s.dispatch(strings.TrimSpace(line))
	}
	return s.exitCode
}

func (s *Shell) dispatch(line string) {
	if line == "" {
		return
	}
	args := strings.Fields(line)
	root := s.newRootCommand()
	root.SetArgs(args)
	root.SetOut(s.out)
	root.SetErr(s.out)
	if err := root.Execute(); err != nil {
		printCommandError(s.out, err)
	}
}

func printCommandError(out io.Writer, err error) {
	var e *eideticaerr.Error
	if errors.As(err, &e) {
		fmt.Fprintf(out, "%s: %s\n", e.Kind, e.Msg)
		return
	}
	fmt.Fprintf(out, "error: %v\n", err)
}

func yamlNameMap(name string) crdt.Value {
	settings := crdt.NewMap()
	settings.Set("name", crdt.NewText(name))
	return settings
}

func (s *Shell) save() {
	saveable, ok := s.db.Backend().(storage.Saveable)
	if !ok {
		return
	}
	if err := saveable.SaveToFile(s.cfg.DatabaseFile); err != nil {
		log.Errorw("save failed", "file", s.cfg.DatabaseFile, "error", err)
		fmt.Fprintf(s.out, "Io: save failed: %v\n", err)
		return
	}
	s.dirty = false
}

func (s *Shell) newRootCommand() *cobra.Command {
	root := &cobra.Command{Use: "eidetica", SilenceUsage: true, SilenceErrors: true}

	root.AddCommand(&cobra.Command{
		Use:   "help",
		Short: "List available commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "Commands: help, create-tree <name>, list-trees, get-root <tree>, get-entry <id>, save, exit, exit-no-save")
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "create-tree <name>",
		Short: "Create a new tree with the given name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := yamlNameMap(args[0])
			tr, err := s.db.NewTree(settings, s.cfg.KeyName)
			if err != nil {
				return err
			}
			s.dirty = true
			fmt.Fprintf(cmd.OutOrStdout(), "created tree %s (root %s)\n", args[0], tr.GetRoot())
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "list-trees",
		Short: "List every known tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			trees, err := s.db.AllTrees()
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(trees))
			for _, tr := range trees {
				ids = append(ids, tr.GetRoot())
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "get-root <tree>",
		Short: "Print a tree's root id and resolved _settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tr, err := s.db.LoadTree(args[0], "")
			if err != nil {
				return err
			}
			settings, err := tr.GetSubtreeViewer("_settings")
			if err != nil {
				return err
			}
			out := make(map[string]any)
			for _, k := range settings.Keys() {
				if v, ok := settings.Get(k); ok {
					if text, ok := v.AsText(); ok {
						out[k] = text
					} else {
						out[k] = "<nested>"
					}
				}
			}
			b, err := yaml.Marshal(out)
			if err != nil {
				return eideticaerr.Wrap(eideticaerr.SerializationFailed, err, "marshal settings")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "root: %s\n%s", tr.GetRoot(), string(b))
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "get-entry <id>",
		Short: "Print a stored entry's shape",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := s.db.Backend().Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id: %s\nroot: %s\nparents: %v\nsubtrees: %v\n",
				e.ID(), e.Root(), e.Parents(), e.Subtrees())
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "save",
		Short: "Persist storage to the configured file",
		RunE: func(cmd *cobra.Command, args []string) error {
			s.save()
			fmt.Fprintln(cmd.OutOrStdout(), "saved")
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "exit",
		Short: "Save storage and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			s.save()
			s.quitting = true
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "exit-no-save",
		Short: "Exit without saving",
		RunE: func(cmd *cobra.Command, args []string) error {
			s.quitting = true
			return nil
		},
	})

	return root
}
