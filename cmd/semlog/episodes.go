package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/semlog/internal/db"
	"github.com/banshee-data/semlog/internal/events"
	"github.com/banshee-data/semlog/internal/httputil"
)

var (
	episodesDB     string
	episodesServer string
)

var episodesCmd = &cobra.Command{
	Use:   "episodes [episode-id]",
	Short: "List recorded episodes, or the events of one",
	Long: `Episodes reads from a local database (--db) or from a running semlog
server (--server). Without an argument it lists the episodes; with an
episode id it prints that episode's events.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, closeSrc, err := openEpisodeSource(episodesDB, episodesServer, nil)
		if err != nil {
			return err
		}
		defer closeSrc()
		if len(args) == 0 {
			return listEpisodes(cmd.Context(), cmd.OutOrStdout(), src)
		}
		return showEpisode(cmd.Context(), cmd.OutOrStdout(), src, args[0])
	},
}

func init() {
	episodesCmd.Flags().StringVar(&episodesDB, "db", "", "SQLite database to read")
	episodesCmd.Flags().StringVar(&episodesServer, "server", "", "Base URL of a semlog server, e.g. http://localhost:8080")
}

// episodeSource is the read side shared by the database and the HTTP API.
type episodeSource interface {
	Episodes(ctx context.Context) ([]db.Episode, error)
	EpisodeEvents(ctx context.Context, episodeID string) ([]events.Event, error)
}

type remoteEpisodes struct{ c *httputil.Client }

func (r remoteEpisodes) Episodes(ctx context.Context) ([]db.Episode, error) {
	var eps []db.Episode
	err := r.c.GetJSON(ctx, "/api/episodes", &eps)
	return eps, err
}

func (r remoteEpisodes) EpisodeEvents(ctx context.Context, episodeID string) ([]events.Event, error) {
	var evs []events.Event
	err := r.c.GetJSON(ctx, "/api/episodes/"+url.PathEscape(episodeID)+"/events", &evs)
	var se *httputil.StatusError
	if errors.As(err, &se) && se.StatusCode == 404 {
		return nil, fmt.Errorf("%w: %s", db.ErrEpisodeNotFound, episodeID)
	}
	return evs, err
}

// openEpisodeSource picks the database or the server; exactly one must be
// set. client is used for the server and may be nil.
func openEpisodeSource(dbPath, server string, client httputil.HTTPClient) (episodeSource, func(), error) {
	switch {
	case dbPath != "" && server != "":
		return nil, nil, errors.New("--db and --server are mutually exclusive")
	case server != "":
		return remoteEpisodes{httputil.NewClient(client, server)}, func() {}, nil
	case dbPath != "":
		store, err := db.NewDB(dbPath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		return nil, nil, errors.New("one of --db or --server is required")
	}
}

func listEpisodes(ctx context.Context, out io.Writer, src episodeSource) error {
	eps, err := src.Episodes(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EPISODE\tTASK\tSTARTED\tEVENTS\tSTATUS")
	for _, ep := range eps {
		status := "open"
		if ep.FinishedAt != nil {
			status = "finished"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			ep.EpisodeID, ep.TaskID, ep.StartedAt.Format(time.RFC3339), ep.EventCount, status)
	}
	return tw.Flush()
}

func showEpisode(ctx context.Context, out io.Writer, src episodeSource, id string) error {
	evs, err := src.EpisodeEvents(ctx, id)
	if err != nil {
		return err
	}
	printEvents(out, evs)
	return nil
}
