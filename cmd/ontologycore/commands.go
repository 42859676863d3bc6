package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"ontologycore/internal/core"
	"ontologycore/internal/httpapi"
	"ontologycore/pkg/domain"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.HTTP.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			svc, err := a.open(ctx, reg)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()
			return serve(ctx, a, &http.Server{
				Addr:              a.cfg.HTTP.Addr,
				Handler:           httpapi.NewHandler(svc, reg, a.logger),
				ReadHeaderTimeout: 5 * time.Second,
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, a *app, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.logger.Info("http server stopped")
	return nil
}

// window holds the paging flags shared by the search commands.
type window struct {
	offset int
	limit  int
	sort   []string
}

func (w *window) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&w.offset, "offset", 0, "number of results to skip")
	cmd.Flags().IntVarP(&w.limit, "limit", "l", httpapi.DefaultLimit, "maximum number of results")
	cmd.Flags().StringSliceVar(&w.sort, "sort", nil, "sort instructions key[:asc|:desc]")
}

func (w *window) orders() ([]domain.SortOrder, error) {
	return domain.ParseSortOrders(w.sort...)
}

func queryArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// withService opens the service for one command invocation.
func withService(a *app, cmd *cobra.Command, fn func(ctx context.Context, svc *core.Service) error) error {
	ctx := cmd.Context()
	svc, err := a.open(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()
	return fn(ctx, svc)
}

func newClassesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "classes", Short: "Search the ontology class catalog"}
	var ontologies []string
	classFilter := func(args []string) domain.Filter {
		scope := ontologies
		if len(scope) == 0 {
			scope = a.cfg.Terminology.Ontologies
		}
		return domain.NewFilter(queryArg(args), scope...)
	}

	var w window
	search := &cobra.Command{
		Use:   "search [query]",
		Short: "List classes whose label matches the query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sort, err := w.orders()
			if err != nil {
				return err
			}
			return withService(a, cmd, func(ctx context.Context, svc *core.Service) error {
				page, err := svc.SearchClasses(ctx, classFilter(args), w.offset, w.limit, sort...)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), page)
			})
		},
	}
	w.bind(search)

	count := &cobra.Command{
		Use:   "count [query]",
		Short: "Count classes whose label matches the query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(a, cmd, func(ctx context.Context, svc *core.Service) error {
				n, err := svc.CountClasses(ctx, classFilter(args))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			})
		},
	}
	get := &cobra.Command{
		Use:   "get <curie>",
		Short: "Print the stored class with the given CURIE",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(a, cmd, func(ctx context.Context, svc *core.Service) error {
				class, found, err := svc.ClassByCurie(ctx, args[0])
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("class %s not found", args[0])
				}
				return printJSON(cmd.OutOrStdout(), class)
			})
		},
	}

	list := &cobra.Command{
		Use:   "ontologies",
		Short: "List the ontologies with stored classes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(a, cmd, func(ctx context.Context, svc *core.Service) error {
				names, err := svc.Ontologies(ctx)
				if err != nil {
					return err
				}
				for _, name := range names {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.PersistentFlags().StringSliceVarP(&ontologies, "ontology", "o", nil, "ontologies to search (defaults to terminology.ontologies)")
	cmd.AddCommand(search, count, get, list)
	return cmd
}

func newMeasurementsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "measurements", Short: "Search registered measurements"}
	var (
		samples  []string
		excluded []string
		offsetMS int
		pattern  string
	)
	filter := func(args []string) domain.Filter {
		f := domain.NewFilter(queryArg(args), samples...).WithExcluded(excluded...).AtClientTimeOffset(offsetMS)
		if pattern != "" {
			f = f.WithTimePattern(pattern)
		}
		return f
	}

	var w window
	search := &cobra.Command{
		Use:   "search [query]",
		Short: "List measurements of the given samples matching the query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sort, err := w.orders()
			if err != nil {
				return err
			}
			return withService(a, cmd, func(ctx context.Context, svc *core.Service) error {
				page, err := svc.SearchMeasurements(ctx, filter(args), w.offset, w.limit, sort...)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), page)
			})
		},
	}
	w.bind(search)

	count := &cobra.Command{
		Use:   "count [query]",
		Short: "Count measurements of the given samples matching the query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(a, cmd, func(ctx context.Context, svc *core.Service) error {
				n, err := svc.CountMeasurements(ctx, filter(args))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			})
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringSliceVarP(&samples, "sample", "s", nil, "sample identifiers the caller may see")
	flags.StringSliceVar(&excluded, "exclude", nil, "sample identifiers to hide")
	flags.IntVar(&offsetMS, "offset-ms", 0, "client timezone offset in milliseconds")
	flags.StringVar(&pattern, "pattern", "", "client date/time display pattern")
	cmd.AddCommand(search, count)
	return cmd
}

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <curie>",
		Short: "Resolve a CURIE such as GO_0001889 to its term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(a, cmd, func(ctx context.Context, svc *core.Service) error {
				term, found, err := svc.ResolveTerm(ctx, args[0])
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("term %s not found", args[0])
				}
				return printJSON(cmd.OutOrStdout(), term)
			})
		},
	}
}

func newTermsCmd(a *app) *cobra.Command {
	var (
		suggest bool
		w       window
	)
	cmd := &cobra.Command{
		Use:   "terms <query>",
		Short: "Search the remote terminology service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(a, cmd, func(ctx context.Context, svc *core.Service) error {
				find := svc.SearchTerminology
				if suggest {
					find = svc.SuggestTerminology
				}
				terms, err := find(ctx, args[0], w.offset, w.limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), terms)
			})
		},
	}
	cmd.Flags().BoolVar(&suggest, "suggest", false, "use the autocomplete endpoint")
	cmd.Flags().IntVar(&w.offset, "offset", 0, "number of results to skip")
	cmd.Flags().IntVarP(&w.limit, "limit", "l", httpapi.DefaultLimit, "maximum number of results")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import [prefix]",
		Short: "Import class dumps from the blob store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(a, cmd, func(ctx context.Context, svc *core.Service) error {
				results, err := svc.ImportClasses(ctx, queryArg(args))
				for _, r := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "imported %d classes from %s\n", r.Count, r.Object)
				}
				return err
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Skip config loading.
		PersistentPreRun: func(*cobra.Command, []string) {},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "ontologycore", version)
			return err
		},
	}
}
