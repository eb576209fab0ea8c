package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dietscore/internal/app"
	"dietscore/internal/history"
	"dietscore/internal/store"
)

// loadForQuery resolves the current tables with no report sinks attached.
func loadForQuery(cmd *cobra.Command) (*stack, error) {
	db, err := openDB(cmd.Context())
	if err != nil {
		return nil, err
	}
	queryCfg := cfg
	queryCfg.ReportPath = ""
	rt := &stack{
		db:      db,
		service: app.New(queryCfg, store.NewSQLStore(db), app.WithLogger(logger)),
		closers: []func() error{db.Close},
	}
	if err := rt.service.Resolve(cmd.Context()); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func runGroup(cmd *cobra.Command, args []string) error {
	memberID, err := parseID(args[0], "member id")
	if err != nil {
		return err
	}
	date, err := store.ParseDate(args[1])
	if err != nil {
		return err
	}
	var chamber *store.Chamber
	if strings.TrimSpace(queryChamber) != "" {
		parsed, err := store.ParseChamber(queryChamber)
		if err != nil {
			return err
		}
		chamber = &parsed
	}

	rt, err := loadForQuery(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	group, found, err := rt.service.GroupForMember(memberID, date, chamber)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(cmd.OutOrStdout(), "member %d had no group on %s\n", memberID, store.FormatDate(date))
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", group.ID, group.Name, group.Chamber)
	return nil
}

func runMembers(cmd *cobra.Command, args []string) error {
	groupID, err := parseID(args[0], "group id")
	if err != nil {
		return err
	}
	date, err := store.ParseDate(args[1])
	if err != nil {
		return err
	}

	rt, err := loadForQuery(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	_, members, err := rt.service.MembersInGroup(groupID, date)
	if err != nil {
		return err
	}
	for _, m := range members {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", m.ID, m.Name)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(cfg.HistoryDir) == "" {
		return fmt.Errorf("HISTORY_DIR is not set")
	}
	commits, err := history.New(cfg.HistoryDir).History(historyLimit)
	if err != nil {
		return err
	}
	for _, c := range commits {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", c.Hash, c.CreatedAt.Format("2006-01-02 15:04:05"), c.Digest)
	}
	return nil
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
