package ctl

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/scienceol/seqpanel/internal/config"
	"github.com/scienceol/seqpanel/pkg/common/uuid"
	"github.com/scienceol/seqpanel/pkg/core/console"
	"github.com/scienceol/seqpanel/pkg/utils"
	"github.com/spf13/cobra"
)

type flags struct {
	yes bool
	env *Env
}

// New is the command line client of a running console.
func New() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:          "ctl",
		Short:        "Drive a running console",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			env, err := LoadEnv(cmd.Context())
			if err != nil {
				return err
			}
			f.env = env
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&f.yes, "yes", "y", false, "confirm the operation")

	root.AddCommand(
		get(f, "status", "/status"),
		get(f, "list", "/snapshot"),
		get(f, "templates", "/templates"),
		history(f),
		add(f),
		validate(f),
		move(f),
		uuids(f, "remove", http.MethodDelete, "/sequence"),
		uuids(f, "copy", http.MethodPost, "/sequence/copy"),
		paste(f),
		post(f, "clear", http.MethodDelete, "/sequence/done"),
		post(f, "start", http.MethodPost, "/start"),
		post(f, "stop", http.MethodPost, "/stop"),
		post(f, "abort", http.MethodPost, "/abort"),
		post(f, "finish", http.MethodPost, "/finish"),
		post(f, "finish-now", http.MethodPost, "/finish_now"),
		delay(f),
		load(f),
		save(f),
		token(),
	)
	return root
}

func (f *flags) client() *client {
	return newClient(f.env, f.yes)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func get(f *flags, use, path string) *cobra.Command {
	return &cobra.Command{
		Use:  use,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out any
			if err := f.client().do(cmd.Context(), http.MethodGet, path, nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func post(f *flags, use, method, path string) *cobra.Command {
	return &cobra.Command{
		Use:  use,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out any
			if err := f.client().do(cmd.Context(), method, path, nil, &out); err != nil {
				return err
			}
			if out == nil {
				return nil
			}
			return printJSON(cmd, out)
		},
	}
}

func history(f *flags) *cobra.Command {
	var page, size int
	cmd := &cobra.Command{
		Use:  "history",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out any
			path := fmt.Sprintf("/history?page=%d&page_size=%d", page, size)
			if err := f.client().do(cmd.Context(), http.MethodGet, path, nil, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page")
	cmd.Flags().IntVar(&size, "page-size", 20, "page size")
	return cmd
}

func add(f *flags) *cobra.Command {
	req := &console.AddReq{}
	var (
		values []string
		index  int
	)
	cmd := &cobra.Command{
		Use:   "add [cmdStr]",
		Short: "Add a sequence from a template (--type) or a command line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				req.CmdStr = args[0]
			}
			vals, err := parseValues(values)
			if err != nil {
				return err
			}
			req.Values = vals
			if cmd.Flags().Changed("index") {
				req.Index = &index
			}
			var out any
			if err := f.client().do(cmd.Context(), http.MethodPost, "/sequence", req, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&req.SeqType, "type", "", "template, e.g. biases")
	cmd.Flags().StringVar(&req.Name, "name", "", "sequence name")
	cmd.Flags().StringVar(&req.Comments, "comments", "", "sequence comments")
	cmd.Flags().StringArrayVar(&values, "set", nil, "template field, key=value")
	cmd.Flags().Int64Var(&req.PreviousID, "previous", 0, "copy a recorded sequence")
	cmd.Flags().IntVar(&index, "index", 0, "insert position")
	cmd.Flags().BoolVar(&req.Valid, "valid", false, "validate right away")
	return cmd
}

func parseValues(kvs []string) (map[string]string, error) {
	vals := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%q is not key=value", kv)
		}
		vals[k] = v
	}
	return vals, nil
}

func parseUUIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, a := range args {
		id, err := uuid.FromString(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func validate(f *flags) *cobra.Command {
	var invalid bool
	cmd := &cobra.Command{
		Use:  "validate uuid...",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseUUIDs(args)
			if err != nil {
				return err
			}
			var out any
			req := &console.ValidateReq{UUIDs: ids, Valid: !invalid}
			if err := f.client().do(cmd.Context(), http.MethodPut, "/sequence/validate", req, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().BoolVar(&invalid, "invalid", false, "back to init")
	return cmd
}

func move(f *flags) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:  "move uuid",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.FromString(args[0])
			if err != nil {
				return err
			}
			return f.client().do(cmd.Context(), http.MethodPut, "/sequence/move", &console.MoveReq{UUID: id, Up: !down}, nil)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "move down instead of up")
	return cmd
}

func uuids(f *flags, use, method, path string) *cobra.Command {
	return &cobra.Command{
		Use:  use + " uuid...",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseUUIDs(args)
			if err != nil {
				return err
			}
			var out any
			if err := f.client().do(cmd.Context(), method, path, &console.UUIDsReq{UUIDs: ids}, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func paste(f *flags) *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:  "paste",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := &console.PasteReq{}
			if cmd.Flags().Changed("index") {
				req.Index = &index
			}
			var out any
			if err := f.client().do(cmd.Context(), http.MethodPost, "/sequence/paste", req, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "insert position, default end of queue")
	return cmd
}

func delay(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "delay minutes",
		Short: "Postpone the first sequence after start",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			return f.client().do(cmd.Context(), http.MethodPut, "/delay", &console.DelayReq{Minutes: minutes}, nil)
		},
	}
}

func load(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:  "load file",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(os.ExpandEnv(args[0]))
			if err != nil {
				return err
			}
			var out any
			if err := f.client().do(cmd.Context(), http.MethodPost, "/script", &console.ScriptReq{Content: string(data)}, &out); err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func save(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:  "save [file]",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := f.client().raw(cmd.Context(), "/script")
			if err != nil {
				return err
			}
			if len(args) == 0 {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(os.ExpandEnv(args[0]), data, 0o644)
		},
	}
}

// token signs an operator token with AUTH_JWT_SECRET.
func token() *cobra.Command {
	return &cobra.Command{
		Use:  "token operator",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := config.Global().Auth
			t, err := utils.SignJWT([]byte(conf.JWTSecret), args[0], time.Duration(conf.TokenTTL)*time.Hour)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), t)
			return err
		},
	}
}
