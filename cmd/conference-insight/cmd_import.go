package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joelkehle/conference-insight/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <schedule.json>",
	Short: "Load converted schedule JSON into the database",
	Long: `import reads the day-grouped schedule JSON produced by the spreadsheet
converter ([{date, day, sessions: [...]}]) and upserts the conference, its
instance, speakers, affiliations and sessions in one transaction.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("conference")
		year, _ := cmd.Flags().GetInt("year")
		confType, _ := cmd.Flags().GetString("type")
		location, _ := cmd.Flags().GetString("location")
		website, _ := cmd.Flags().GetString("website")
		if strings.TrimSpace(name) == "" || year <= 0 {
			return fmt.Errorf("--conference and --year are required")
		}

		blob, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read schedule: %w", err)
		}
		var days []store.ScheduleDay
		if err := json.Unmarshal(blob, &days); err != nil {
			return fmt.Errorf("decode schedule %s: %w", args[0], err)
		}

		ctx := cmd.Context()
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		inst := store.ConferenceInstance{
			ConferenceName: name,
			Year:           year,
			Location:       location,
			Website:        website,
		}
		if len(days) > 0 {
			inst.StartDate = strings.TrimSpace(days[0].Date)
			inst.EndDate = strings.TrimSpace(days[len(days)-1].Date)
		}
		instID, res, err := st.ImportConference(ctx, confType, inst, days)
		if err != nil {
			return err
		}

		// a shared redis cache would otherwise keep serving the old schedule
		c, err := openCache(ctx)
		if err != nil {
			log.Warn("cache unavailable; skipping invalidation", "error", err)
		} else if c != nil {
			newService(st, c).Invalidate(ctx, instID)
			c.Close()
		}

		log.Info("schedule imported", "instance_id", instID, "sessions", res.Sessions, "speakers", res.Speakers, "skipped", res.Skipped)
		fmt.Fprintf(cmd.OutOrStdout(), "instance %d: %d sessions, %d speakers, %d skipped\n", instID, res.Sessions, res.Speakers, res.Skipped)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats [instance-id]",
	Short: "Print session, speaker and track counts",
	Long:  "stats prints counts for one instance, or lists all instances when no id is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		svc := newService(st, nil)
		out := cmd.OutOrStdout()

		if len(args) == 0 {
			list, err := svc.Instances(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCONFERENCE\tYEAR\tDATES")
			for _, in := range list {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s..%s\n", in.InstanceID, in.ConferenceName, in.Year, in.StartDate, in.EndDate)
			}
			return w.Flush()
		}

		var id int64
		if _, err := fmt.Sscan(args[0], &id); err != nil {
			return fmt.Errorf("invalid instance id %q", args[0])
		}
		top, _ := cmd.Flags().GetInt("top")
		stats, err := svc.Stats(ctx, id, top)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}
		fmt.Fprintf(out, "%s %d\n", stats.Instance.ConferenceName, stats.Instance.Year)
		fmt.Fprintf(out, "sessions: %d\nspeakers: %d\ndays: %s\n\n", stats.Sessions, stats.Speakers, strings.Join(stats.Dates, ", "))
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TRACK\tSESSIONS")
		for _, t := range stats.TopTracks {
			fmt.Fprintf(w, "%s\t%d\n", t.Topic, t.Count)
		}
		return w.Flush()
	},
}

func init() {
	importCmd.Flags().String("conference", "", "Conference name, e.g. GTC")
	importCmd.Flags().Int("year", 0, "Conference year")
	importCmd.Flags().String("type", "", "Conference type, e.g. industry or academic")
	importCmd.Flags().String("location", "", "Conference location")
	importCmd.Flags().String("website", "", "Conference website")

	statsCmd.Flags().Int("top", 10, "Number of top tracks")
	statsCmd.Flags().Bool("json", false, "Print JSON")
}
