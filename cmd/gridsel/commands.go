package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/hylla/gridsel/internal/adapters/server"
	"github.com/hylla/gridsel/internal/adapters/server/common"
	"github.com/hylla/gridsel/internal/app"
	"github.com/hylla/gridsel/internal/config"
	"github.com/hylla/gridsel/internal/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the resolved config, data and database paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "logs: %s\n", paths.LogDir)
			return nil
		},
	}
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file populated with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := opts.resolvePaths()
			if err != nil {
				return err
			}
			configPath, cfg, err := opts.resolveConfig(paths)
			if err != nil {
				return err
			}
			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("config %q already exists (use --force to overwrite)", configPath)
			}
			if err := config.Write(configPath, cfg); err != nil {
				return fmt.Errorf("write config %q: %w", configPath, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	cmd.AddCommand(initCmd)
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var httpBind, apiEndpoint, mcpEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the grid over HTTP (REST and MCP)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := opts.open("serve", true)
			if err != nil {
				return err
			}
			defer env.Close()

			cfg := server.Config{
				HTTPBind:      firstNonEmpty(httpBind, env.cfg.Serve.HTTPBind),
				APIEndpoint:   firstNonEmpty(apiEndpoint, env.cfg.Serve.APIEndpoint),
				MCPEndpoint:   firstNonEmpty(mcpEndpoint, env.cfg.Serve.MCPEndpoint),
				ServerName:    env.appName,
				ServerVersion: version,
			}
			env.logger.Info("command flow start", "command", "serve", "http", cfg.HTTPBind, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)
			err = serveCommandRunner(cmd.Context(), cfg, server.Dependencies{
				Grid:   common.NewAppServiceAdapter(env.svc),
				Logger: env.logger.Console(),
			})
			if err != nil {
				env.logger.Error("command flow failed", "command", "serve", "err", err)
				return fmt.Errorf("run serve command: %w", err)
			}
			env.logger.Info("command flow complete", "command", "serve")
			return nil
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "REST API base path (default from config)")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP endpoint path (default from config)")
	return cmd
}

var (
	seedSubjects = []string{"Invoice", "Customer", "Shipment", "Refund", "Ticket", "Contract", "Order"}
	seedVerbs    = []string{"review", "follow-up", "audit", "renewal", "escalation"}
	seedStatuses = []domain.Status{domain.StatusDraft, domain.StatusActive, domain.StatusClosed}
	seedPrios    = []domain.Priority{domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh}
)

func newSeedCommand(opts *rootOptions) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert demo records",
		Long: `Insert demo records into the database. Every seventh record is locked
so disabled rows show up in the grid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			env, err := opts.open("seed", true)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := cmd.Context()
			for i := 1; i <= count; i++ {
				if _, err := env.svc.CreateRecord(ctx, seedRecordInput(i)); err != nil {
					env.logger.Error("seed failed", "index", i, "err", err)
					return fmt.Errorf("seed record %d: %w", i, err)
				}
			}
			env.logger.Info("seed complete", "count", count)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded %s records\n", humanize.Comma(int64(count)))
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 120, "number of records to insert")
	return cmd
}

// seedRecordInput builds the i-th demo record (1-based).
func seedRecordInput(i int) app.CreateRecordInput {
	subject := seedSubjects[(i-1)%len(seedSubjects)]
	verb := seedVerbs[(i-1)%len(seedVerbs)]
	return app.CreateRecordInput{
		Title:    fmt.Sprintf("%s %s #%d", subject, verb, i),
		Status:   seedStatuses[(i-1)%len(seedStatuses)],
		Priority: seedPrios[(i-1)%len(seedPrios)],
		Notes:    fmt.Sprintf("Demo **%s** record.\n\n- batch: %d\n- source: seed", strings.ToLower(subject), (i-1)/25+1),
		Locked:   i%7 == 0,
	}
}

func newListCommand(opts *rootOptions) *cobra.Command {
	var (
		search   string
		status   string
		page     int
		pageSize int
		archived bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print one page of records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := opts.open("list", true)
			if err != nil {
				return err
			}
			defer env.Close()

			result, err := env.svc.ListPage(cmd.Context(), app.PageRequest{
				Query:    domain.Query{Search: search, Status: domain.Status(status), IncludeArchived: archived},
				Page:     page,
				PageSize: pageSize,
			})
			if err != nil {
				return fmt.Errorf("list records: %w", err)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, renderRecordTable(result.Records, time.Now()))
			_, _ = fmt.Fprintf(out, "page %d of %d, %s %s\n",
				result.Page, result.PageCount, humanize.Comma(int64(result.Total)), pluralize(result.Total, "record", "records"))
			return nil
		},
	}
	cmd.Flags().StringVar(&search, "query", "", "case-insensitive title search")
	cmd.Flags().StringVar(&status, "status", "", "status filter (draft|active|closed)")
	cmd.Flags().IntVar(&page, "page", 1, "1-based page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "page size (default from config)")
	cmd.Flags().BoolVar(&archived, "archived", false, "include archived records")
	return cmd
}

// exportRecord is the on-disk shape of one exported record.
type exportRecord struct {
	ID         string     `json:"id" yaml:"id"`
	Title      string     `json:"title" yaml:"title"`
	Status     string     `json:"status" yaml:"status"`
	Priority   string     `json:"priority" yaml:"priority"`
	Notes      string     `json:"notes,omitempty" yaml:"notes,omitempty"`
	Locked     bool       `json:"locked" yaml:"locked"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" yaml:"updated_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty" yaml:"archived_at,omitempty"`
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		format   string
		outPath  string
		search   string
		archived bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "json" && format != "yaml" {
				return fmt.Errorf("unsupported export format %q (want json or yaml)", format)
			}
			env, err := opts.open("export", true)
			if err != nil {
				return err
			}
			defer env.Close()

			records, err := collectRecords(cmd, env.svc, domain.Query{Search: search, IncludeArchived: archived})
			if err != nil {
				return fmt.Errorf("collect records: %w", err)
			}

			var out io.Writer = cmd.OutOrStdout()
			if strings.TrimSpace(outPath) != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer func() {
					_ = f.Close()
				}()
				out = f
			}
			if err := writeExport(out, format, records); err != nil {
				return err
			}
			env.logger.Info("export complete", "format", format, "records", len(records), "out", outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format (json|yaml)")
	cmd.Flags().StringVar(&outPath, "out", "", "write to this file instead of stdout")
	cmd.Flags().StringVar(&search, "query", "", "only export records matching this search")
	cmd.Flags().BoolVar(&archived, "archived", false, "include archived records")
	return cmd
}

// collectRecords walks every page of one query.
func collectRecords(cmd *cobra.Command, svc *app.Service, query domain.Query) ([]exportRecord, error) {
	out := make([]exportRecord, 0)
	for pageNum := 1; ; pageNum++ {
		page, err := svc.ListPage(cmd.Context(), app.PageRequest{Query: query, Page: pageNum, PageSize: app.MaxPageSize})
		if err != nil {
			return nil, err
		}
		for _, rec := range page.Records {
			out = append(out, toExportRecord(rec))
		}
		if !page.HasNext() {
			return out, nil
		}
	}
}

func toExportRecord(rec domain.Record) exportRecord {
	return exportRecord{
		ID:         rec.ID,
		Title:      rec.Title,
		Status:     string(rec.Status),
		Priority:   string(rec.Priority),
		Notes:      rec.Notes,
		Locked:     rec.Locked,
		CreatedAt:  rec.CreatedAt.UTC(),
		UpdatedAt:  rec.UpdatedAt.UTC(),
		ArchivedAt: rec.ArchivedAt,
	}
}

func writeExport(out io.Writer, format string, records []exportRecord) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode yaml export: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode json export: %w", err)
		}
		return nil
	}
}

func newBulkCommand(opts *rootOptions) *cobra.Command {
	var (
		ids      []string
		across   bool
		search   string
		status   string
		priority string
		archived bool
	)
	cmd := &cobra.Command{
		Use:   "bulk <action>",
		Short: "Run one bulk action from the command line",
		Long: `Run one bulk action (archive, restore, delete, set_priority, set_status) on
explicit ids or, with --across, on every record matching --query.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := domain.ParseBulkAction(args[0])
			if err != nil {
				return err
			}
			if !across && len(ids) == 0 {
				return errors.New("pass --id at least once or use --across")
			}
			env, err := opts.open("bulk", true)
			if err != nil {
				return err
			}
			defer env.Close()

			result, err := env.svc.RunBulkAction(cmd.Context(), app.BulkActionInput{
				Action:       action,
				SelectAcross: across,
				IDs:          ids,
				Query:        domain.Query{Search: search, IncludeArchived: archived},
				Priority:     domain.Priority(priority),
				Status:       domain.Status(status),
			})
			if err != nil {
				env.logger.Error("bulk action failed", "action", action, "err", err)
				return fmt.Errorf("run bulk action: %w", err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), result.Message())
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&ids, "id", nil, "record id to target (repeatable)")
	cmd.Flags().BoolVar(&across, "across", false, "target every record matching --query")
	cmd.Flags().StringVar(&search, "query", "", "search text used with --across")
	cmd.Flags().BoolVar(&archived, "archived", false, "include archived records with --across")
	cmd.Flags().StringVar(&status, "status", "", "new status for set_status")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority for set_priority")
	return cmd
}

func newLogCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print recent bulk actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := opts.open("log", true)
			if err != nil {
				return err
			}
			defer env.Close()

			entries, err := env.svc.ListActionLog(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list action log: %w", err)
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no bulk actions recorded")
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderActionLogTable(entries, time.Now()))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to print")
	return cmd
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("62"))).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func renderRecordTable(records []domain.Record, now time.Time) string {
	t := newTable("ID", "Title", "Status", "Priority", "Locked", "Updated")
	for _, rec := range records {
		locked := ""
		if rec.Locked {
			locked = "yes"
		}
		t.Row(shortID(rec.ID), rec.Title, string(rec.Status), string(rec.Priority), locked, humanize.RelTime(rec.UpdatedAt, now, "ago", "from now"))
	}
	return t.String()
}

func renderActionLogTable(entries []domain.ActionLogEntry, now time.Time) string {
	t := newTable("When", "Action", "Scope", "Query", "Requested", "Affected", "Skipped")
	for _, e := range entries {
		scope := "ids"
		if e.SelectAcross {
			scope = "across"
		}
		t.Row(
			humanize.RelTime(e.CreatedAt, now, "ago", "from now"),
			string(e.Action),
			scope,
			e.Query,
			strconv.Itoa(e.Requested),
			strconv.Itoa(e.Affected),
			strconv.Itoa(e.Skipped),
		)
	}
	return t.String()
}

// shortID trims uuids to their first block for table output.
func shortID(id string) string {
	if head, _, ok := strings.Cut(id, "-"); ok && len(head) >= 8 {
		return head
	}
	return id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
